package badger

import (
	"encoding/binary"
	"fmt"

	"github.com/poiesic/knowit/core"
)

// Key prefixes for different data types
const (
	indexMetaPrefix = "knowmeta"
	recordPrefix    = "knowrec"
)

// makeIndexMetaKey generates the key holding an index's IndexInfo.
func makeIndexMetaKey(name string) []byte {
	return []byte(fmt.Sprintf("%s:%s", indexMetaPrefix, name))
}

// makeRecordKey generates the key for a record within a named index.
// Format: prefix:name\x00id
// Index names never contain NUL, so the separator cannot collide.
func makeRecordKey(name string, id core.ID) []byte {
	prefix := makeRecordScanPrefix(name)
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makeRecordScanPrefix generates the prefix covering all records of a
// named index.
func makeRecordScanPrefix(name string) []byte {
	prefix := recordPrefix + ":"
	buf := make([]byte, len(prefix)+len(name)+1)
	offset := copy(buf, []byte(prefix))
	offset += copy(buf[offset:], []byte(name))
	buf[offset] = 0
	return buf
}
