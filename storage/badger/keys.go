package badger

import (
	"encoding/binary"

	"github.com/poiesic/chunkit/core"
)

// Key prefixes for different data types
const (
	cacheEntryPrefix    = "cherec"
	cacheDocumentPrefix = "chedoc"
)

// makeEntryKey generates a key for a cache entry by fingerprint.
func makeEntryKey(key core.Fingerprint) []byte {
	prefix := cacheEntryPrefix + ":"
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(key))
	return buf
}

// makeDocumentKey generates a composite key for the document index.
// Format: prefix:documentID\x00:fingerprint
func makeDocumentKey(documentID string, key core.Fingerprint) []byte {
	prefix := cacheDocumentPrefix + ":"
	buf := make([]byte, len(prefix)+len(documentID)+1+8)
	offset := copy(buf, prefix)
	offset += copy(buf[offset:], documentID)
	buf[offset] = 0
	offset++
	binary.BigEndian.PutUint64(buf[offset:], uint64(key))
	return buf
}

// makePartialDocumentKey generates the scan prefix for one document's
// index entries.
func makePartialDocumentKey(documentID string) []byte {
	prefix := cacheDocumentPrefix + ":"
	buf := make([]byte, len(prefix)+len(documentID)+1)
	offset := copy(buf, prefix)
	offset += copy(buf[offset:], documentID)
	buf[offset] = 0
	return buf
}

// fingerprintFromDocumentKey recovers the fingerprint suffix of a
// document index key.
func fingerprintFromDocumentKey(key []byte) core.Fingerprint {
	if len(key) < 8 {
		return 0
	}
	return core.Fingerprint(binary.BigEndian.Uint64(key[len(key)-8:]))
}
