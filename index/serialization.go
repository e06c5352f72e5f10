// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package index

import (
	"errors"
	"fmt"

	"github.com/mus-format/mus-go"

	"github.com/poiesic/knowit/core"
)

// wrapUnmarshalErr classifies a decode failure: a buffer shorter than
// the encoded value reports ErrTruncatedData, anything else passes
// through untouched.
func wrapUnmarshalErr(err error) error {
	if errors.Is(err, mus.ErrTooSmallByteSlice) {
		return fmt.Errorf("%w: %v", ErrTruncatedData, err)
	}
	return err
}

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, core.IDMUS.Size(id))
	core.IDMUS.Marshal(id, buf)
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	id, _, err := core.IDMUS.Unmarshal(data)
	if err != nil {
		return 0, wrapUnmarshalErr(err)
	}
	return id, nil
}

// MarshalRecord serializes a Record to bytes.
func MarshalRecord(record *core.Record) []byte {
	buf := make([]byte, core.RecordMUS.Size(*record))
	core.RecordMUS.Marshal(*record, buf)
	return buf
}

// UnmarshalRecord deserializes a Record from bytes.
func UnmarshalRecord(data []byte) (*core.Record, error) {
	record, _, err := core.RecordMUS.Unmarshal(data)
	if err != nil {
		return nil, wrapUnmarshalErr(err)
	}
	return &record, nil
}

// MarshalIndexInfo serializes an IndexInfo to bytes.
func MarshalIndexInfo(info *core.IndexInfo) []byte {
	buf := make([]byte, core.IndexInfoMUS.Size(*info))
	core.IndexInfoMUS.Marshal(*info, buf)
	return buf
}

// UnmarshalIndexInfo deserializes an IndexInfo from bytes.
func UnmarshalIndexInfo(data []byte) (*core.IndexInfo, error) {
	info, _, err := core.IndexInfoMUS.Unmarshal(data)
	if err != nil {
		return nil, wrapUnmarshalErr(err)
	}
	return &info, nil
}
