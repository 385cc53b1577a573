// Copyright 2022 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package encoding

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/juju/errors"
)

// Hex returns the hex form of a 64-bit unsigned integer.
func Hex(v uint64) string {
	return fmt.Sprintf("%016x", v)
}

// WriteInt64 writes an integer to byte stream.
func WriteInt64(w io.Writer, v int64) error {
	return errors.Trace(binary.Write(w, binary.LittleEndian, v))
}

// ReadInt64 reads an integer from byte stream.
func ReadInt64(r io.Reader) (int64, error) {
	var v int64
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, errors.Trace(err)
}

// WriteString writes string to byte stream.
func WriteString(w io.Writer, s string) error {
	return WriteBytes(w, []byte(s))
}

// ReadString reads string from byte stream.
func ReadString(r io.Reader) (string, error) {
	data, err := ReadBytes(r)
	return string(data), err
}

// WriteBytes writes bytes to byte stream.
func WriteBytes(w io.Writer, s []byte) error {
	if err := binary.Write(w, binary.LittleEndian, int32(len(s))); err != nil {
		return errors.Trace(err)
	}
	n, err := w.Write(s)
	if err != nil {
		return errors.Trace(err)
	} else if n != len(s) {
		return errors.New("fail to write bytes")
	}
	return nil
}

// ReadBytes reads bytes from byte stream.
func ReadBytes(r io.Reader) ([]byte, error) {
	var length int32
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return nil, errors.Trace(err)
	}
	if length < 0 {
		return nil, errors.NotValidf("byte length %d", length)
	}
	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, errors.Trace(err)
	}
	return data, nil
}

// WriteSlice writes a length-prefixed slice of fixed-size values to byte stream.
func WriteSlice[T int32 | int64 | float32 | float64](w io.Writer, s []T) error {
	if err := WriteInt64(w, int64(len(s))); err != nil {
		return err
	}
	return errors.Trace(binary.Write(w, binary.LittleEndian, s))
}

// ReadSlice reads a length-prefixed slice written by WriteSlice.
func ReadSlice[T int32 | int64 | float32 | float64](r io.Reader) ([]T, error) {
	n, err := ReadInt64(r)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, errors.NotValidf("slice length %d", n)
	}
	s := make([]T, n)
	if err = binary.Read(r, binary.LittleEndian, s); err != nil {
		return nil, errors.Trace(err)
	}
	return s, nil
}
