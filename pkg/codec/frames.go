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

package codec

import (
	"bytes"
	"encoding/binary"
	"io"
	"net"

	"github.com/nuclio/errors"
)

const (
	MaxFrameCount  = 16
	MaxFrameSize   = 64 * 1024 * 1024
	MaxMessageSize = 64 * 1024 * 1024

	frameHeaderSize = 4

	// frames up to this size are allocated upfront, larger ones grow as their bytes arrive
	preallocatedFrameSize = 64 * 1024
)

// WriteFrames writes a multi-frame message as a frame count followed by length prefixed frames,
// all big endian, in a single vectored write
func WriteFrames(writer io.Writer, frames [][]byte) error {
	if len(frames) == 0 || len(frames) > MaxFrameCount {
		return errors.Errorf("Invalid number of frames: %d", len(frames))
	}

	headers := make([]byte, frameHeaderSize*(len(frames)+1))
	binary.BigEndian.PutUint32(headers[:frameHeaderSize], uint32(len(frames)))

	buffers := make(net.Buffers, 0, len(frames)*2+1)
	buffers = append(buffers, headers[:frameHeaderSize])

	for frameIndex, frame := range frames {
		header := headers[frameHeaderSize*(frameIndex+1) : frameHeaderSize*(frameIndex+2)]
		binary.BigEndian.PutUint32(header, uint32(len(frame)))

		buffers = append(buffers, header)
		if len(frame) > 0 {
			buffers = append(buffers, frame)
		}
	}

	_, err := buffers.WriteTo(writer)
	return err
}

// ReadFrames reads a message written by WriteFrames. io errors are returned as is so that
// callers can tell a closed peer (io.EOF) from a malformed message
func ReadFrames(reader io.Reader) ([][]byte, error) {
	header := make([]byte, frameHeaderSize)

	if _, err := io.ReadFull(reader, header); err != nil {
		return nil, err
	}

	frameCount := binary.BigEndian.Uint32(header)
	if frameCount == 0 || frameCount > MaxFrameCount {
		return nil, errors.Wrapf(ErrMalformedEnvelope, "Invalid number of frames: %d", frameCount)
	}

	frames := make([][]byte, 0, frameCount)
	messageSize := uint64(0)

	for frameIndex := uint32(0); frameIndex < frameCount; frameIndex++ {
		if _, err := io.ReadFull(reader, header); err != nil {
			return nil, err
		}

		frameSize := binary.BigEndian.Uint32(header)
		if frameSize > MaxFrameSize {
			return nil, errors.Wrapf(ErrMalformedEnvelope, "Frame %d too large: %d", frameIndex, frameSize)
		}

		messageSize += uint64(frameSize)
		if messageSize > MaxMessageSize {
			return nil, errors.Wrapf(ErrMalformedEnvelope, "Message too large: %d", messageSize)
		}

		frame, err := readFrame(reader, frameSize)
		if err != nil {
			return nil, err
		}

		frames = append(frames, frame)
	}

	return frames, nil
}

// readFrame reads a frame body. the frame header was already read, so an EOF here is unexpected
func readFrame(reader io.Reader, frameSize uint32) ([]byte, error) {
	if frameSize <= preallocatedFrameSize {
		frame := make([]byte, frameSize)
		if _, err := io.ReadFull(reader, frame); err != nil {
			return nil, unexpectedEOF(err)
		}

		return frame, nil
	}

	var frame bytes.Buffer
	frame.Grow(preallocatedFrameSize)

	if _, err := io.CopyN(&frame, reader, int64(frameSize)); err != nil {
		return nil, unexpectedEOF(err)
	}

	return frame.Bytes(), nil
}

func unexpectedEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}

	return err
}
