package analyzer

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"

	"github.com/MrWong99/callmark/pkg/types"
)

// Fingerprint hashes the matching-relevant content of dicts in order: ids,
// names, scopes, colours and phrases. Descriptions are ignored. Two slices
// with equal content have equal fingerprints.
func Fingerprint(dicts []types.Dictionary) uint64 {
	d := xxhash.New()
	writeUint(d, uint64(len(dicts)))
	for _, dict := range dicts {
		writeDictionary(d, dict)
	}
	return d.Sum64()
}

// dictionaryFingerprint hashes a single dictionary. It keys the prepared
// phrase cache.
func dictionaryFingerprint(dict types.Dictionary) uint64 {
	d := xxhash.New()
	writeDictionary(d, dict)
	return d.Sum64()
}

func writeDictionary(d *xxhash.Digest, dict types.Dictionary) {
	writeUint(d, uint64(dict.ID))
	writeString(d, dict.Name)
	writeString(d, string(dict.AppliesTo))
	writeString(d, dict.Color)
	writeUint(d, uint64(len(dict.Phrases)))
	for _, p := range dict.Phrases {
		writeString(d, p)
	}
}

// writeString length-prefixes s so that adjacent fields can't run together.
func writeString(d *xxhash.Digest, s string) {
	writeUint(d, uint64(len(s)))
	_, _ = d.WriteString(s)
}

func writeUint(d *xxhash.Digest, v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, _ = d.Write(buf[:])
}
