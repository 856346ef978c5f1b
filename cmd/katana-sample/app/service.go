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

package app

import (
	"fmt"
	"sort"
	"strconv"
	"sync/atomic"

	"github.com/kusanagi/katana-sdk-go/pkg/api"
	"github.com/kusanagi/katana-sdk-go/pkg/component"

	"github.com/nuclio/errors"
	"github.com/puzpuzpuz/xsync/v3"
)

const usersResourceName = "users"

// userStore keeps users in memory, shared by all workers
type userStore struct {
	users  *xsync.MapOf[string, map[string]interface{}]
	nextID uint64
}

func newUserStore() *userStore {
	return &userStore{
		users: xsync.NewMapOf[string, map[string]interface{}](),
	}
}

func (us *userStore) add(name string) map[string]interface{} {
	user := map[string]interface{}{
		"id":   strconv.FormatUint(atomic.AddUint64(&us.nextID, 1), 10),
		"name": name,
	}

	us.users.Store(user["id"].(string), user)

	return user
}

func (us *userStore) get(id string) (map[string]interface{}, bool) {
	return us.users.Load(id)
}

func (us *userStore) delete(id string) bool {
	_, found := us.users.LoadAndDelete(id)
	return found
}

// list returns users ordered by id
func (us *userStore) list() []map[string]interface{} {
	var users []map[string]interface{}

	us.users.Range(func(id string, user map[string]interface{}) bool {
		users = append(users, user)
		return true
	})

	sort.Slice(users, func(i, j int) bool {
		return userIndex(users[i]) < userIndex(users[j])
	})

	return users
}

func userIndex(user map[string]interface{}) uint64 {
	index, _ := strconv.ParseUint(user["id"].(string), 10, 64)
	return index
}

// NewUsersService creates the sample service, exposing read, list, create and delete actions
func NewUsersService(args []string) (*component.Service, error) {
	service, err := component.NewService(args)
	if err != nil {
		return nil, err
	}

	if err := registerUsersService(service); err != nil {
		return nil, err
	}

	return service, nil
}

func registerUsersService(service *component.Service) error {
	if err := service.SetResource(usersResourceName, newUserStore()); err != nil {
		return errors.Wrap(err, "Failed to set users resource")
	}

	if err := service.Startup(func(component *component.Component) error {
		component.GetLogger().DebugWith("Users service starting",
			"version", component.GetConfiguration().Version)
		return nil
	}); err != nil {
		return err
	}

	for actionName, handler := range map[string]api.ActionHandler{
		"read":   readUser,
		"list":   listUsers,
		"create": createUser,
		"delete": deleteUser,
	} {
		if err := service.Action(actionName, handler); err != nil {
			return errors.Wrapf(err, "Failed to register action %s", actionName)
		}
	}

	return nil
}

func readUser(action *api.Action) (*api.Action, error) {
	store, err := getUserStore(&action.Api)
	if err != nil {
		return nil, err
	}

	id := fmt.Sprint(action.GetParam("id").Value)

	user, found := store.get(id)
	if !found {
		action.Error(fmt.Sprintf("User %s not found", id), 404, "404 Not Found")
		return action, nil
	}

	action.SetEntity(user)
	action.SetLink("self", "/users/"+id)

	return action, nil
}

func listUsers(action *api.Action) (*api.Action, error) {
	store, err := getUserStore(&action.Api)
	if err != nil {
		return nil, err
	}

	users := store.list()
	if users == nil {
		users = []map[string]interface{}{}
	}

	action.SetCollection(users)

	return action, nil
}

func createUser(action *api.Action) (*api.Action, error) {
	store, err := getUserStore(&action.Api)
	if err != nil {
		return nil, err
	}

	if !action.HasParam("name") {
		action.Error("Missing name", 400, "400 Bad Request")
		return action, nil
	}

	user := store.add(fmt.Sprint(action.GetParam("name").Value))

	action.SetEntity(user)

	// undo the creation if the rest of the request fails
	action.Rollback("delete", []*api.Param{
		{Name: "id", Value: user["id"], Type: api.TypeString},
	})

	return action, nil
}

func deleteUser(action *api.Action) (*api.Action, error) {
	store, err := getUserStore(&action.Api)
	if err != nil {
		return nil, err
	}

	id := fmt.Sprint(action.GetParam("id").Value)
	action.SetReturn(store.delete(id))

	return action, nil
}

func getUserStore(handlerApi *api.Api) (*userStore, error) {
	resource, err := handlerApi.GetResource(usersResourceName)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to get users resource")
	}

	store, ok := resource.(*userStore)
	if !ok {
		return nil, errors.Errorf("Unexpected users resource type: %T", resource)
	}

	return store, nil
}
