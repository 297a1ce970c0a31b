package xpmem

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashKey_Deterministic(t *testing.T) {
	assert.Equal(t, hashKey("user:1"), hashKey("user:1"))
}

func TestHashKey_KnownVector(t *testing.T) {
	// SHA-256("abc")
	assert.Equal(t,
		"ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		hashKey("abc"),
	)
}

func TestHashKey_DistinctKeys_DistinctHashes(t *testing.T) {
	assert.NotEqual(t, hashKey("user:1"), hashKey("user:2"))
	assert.NotEqual(t, hashKey(""), hashKey(" "))
}

func TestHashBlob_MatchesKeyHashForSameBytes(t *testing.T) {
	assert.Equal(t, hashKey("payload"), hashBlob([]byte("payload")))
}

func FuzzHashKey_FixedWidthHex(f *testing.F) {
	f.Add("")
	f.Add("user:1")
	f.Add("键")
	f.Fuzz(func(t *testing.T, key string) {
		h := hashKey(key)
		if len(h) != 64 {
			t.Fatalf("hashKey(%q) length = %d, want 64", key, len(h))
		}
		for _, r := range h {
			if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
				t.Fatalf("hashKey(%q) contains non-hex rune %q", key, r)
			}
		}
	})
}
