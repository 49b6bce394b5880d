package params

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/fxamacker/cbor/v2"
)

// keyEncMode serializes normalized queries with CBOR core deterministic
// encoding, so byte-equality of the encoding matches semantic equality of
// the query.
var keyEncMode cbor.EncMode

func init() {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("params: build deterministic encoder: %v", err))
	}
	keyEncMode = em
}

// Encode derives a deterministic cache key from q.
//
// Two queries that differ only in the order of set-semantic fields (sites,
// genes) or contain duplicate set members produce the same key. Any
// difference in a value or in an order-sensitive field (SortBy) produces a
// different key. The key is length-bounded: it carries a readable
// mode/method/transform prefix and a 64-bit digest of the canonical
// encoding.
//
// Format: noise:gene-noise:tpm:raw:91c5a2b0de441f03
func Encode(q Query) (string, error) {
	n := q.normalized()

	raw, err := keyEncMode.Marshal(n)
	if err != nil {
		return "", fmt.Errorf("encode cache key: %w", err)
	}

	parts := []string{
		"noise",
		string(n.Mode),
		string(n.Method),
		string(n.Transform),
		fmt.Sprintf("%016x", xxhash.Sum64(raw)),
	}
	return strings.Join(parts, ":"), nil
}

// MustEncode is Encode for callers that have already validated the query.
// It panics on an encoding error, which cannot occur for a well-formed Query.
func MustEncode(q Query) string {
	key, err := Encode(q)
	if err != nil {
		panic(err)
	}
	return key
}
