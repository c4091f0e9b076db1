package httpkit

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// StrongETag hashes the given parts into a quoted strong validator.
func StrongETag(parts ...[]byte) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
		h.Write([]byte{0})
	}
	return `"` + hex.EncodeToString(h.Sum(nil))[:32] + `"`
}

// ETagMatch implements the If-None-Match comparison (weak, list or "*").
func ETagMatch(ifNoneMatch, etag string) bool {
	ifNoneMatch = strings.TrimSpace(ifNoneMatch)
	if ifNoneMatch == "" || etag == "" {
		return false
	}
	if ifNoneMatch == "*" {
		return true
	}
	want := strings.TrimPrefix(etag, "W/")
	for _, c := range strings.Split(ifNoneMatch, ",") {
		if strings.TrimPrefix(strings.TrimSpace(c), "W/") == want {
			return true
		}
	}
	return false
}
