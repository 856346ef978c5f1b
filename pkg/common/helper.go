/*
Copyright 2023 The Nuclio Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package common

import (
	"fmt"
	"os"
	"sort"

	"github.com/samber/lo"
)

// FileExists returns true if the file @ path exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// MapInterfaceInterfaceToMapStringInterface recursively converts map[interface{}]interface{} to
// map[string]interface{}, descending into slices as well. non string keys are formatted with %v
func MapInterfaceInterfaceToMapStringInterface(mapInterfaceInterface map[interface{}]interface{}) map[string]interface{} {
	stringInterfaceMap := make(map[string]interface{}, len(mapInterfaceInterface))

	for key, value := range mapInterfaceInterface {
		stringInterfaceMap[keyToString(key)] = NormalizeValue(value)
	}

	return stringInterfaceMap
}

// NormalizeValue converts every map[interface{}]interface{} found in value into map[string]interface{}
func NormalizeValue(value interface{}) interface{} {
	switch typedValue := value.(type) {
	case map[interface{}]interface{}:
		return MapInterfaceInterfaceToMapStringInterface(typedValue)
	case map[string]interface{}:
		for key, nestedValue := range typedValue {
			typedValue[key] = NormalizeValue(nestedValue)
		}
		return typedValue
	case []interface{}:
		for index, nestedValue := range typedValue {
			typedValue[index] = NormalizeValue(nestedValue)
		}
		return typedValue
	default:
		return value
	}
}

// SortedKeys returns the keys of a string keyed map in ascending order
func SortedKeys[V any](source map[string]V) []string {
	keys := lo.Keys(source)
	sort.Strings(keys)
	return keys
}

func keyToString(key interface{}) string {
	switch typedKey := key.(type) {
	case string:
		return typedKey
	case []byte:
		return string(typedKey)
	default:
		return fmt.Sprintf("%v", typedKey)
	}
}
