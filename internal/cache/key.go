// Package cache provides the tiered result cache: a shared Redis tier
// consulted first, with a per-process LRU fallback when Redis is down.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// CanonicalKey derives a deterministic cache key from named parameter
// fields. Field names and multi-values are sorted before hashing, so two
// requests with the same parameters in different order share a key.
func CanonicalKey(namespace string, fields map[string][]string) string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for i, name := range names {
		if i > 0 {
			b.WriteByte(';')
		}
		values := append([]string(nil), fields[name]...)
		sort.Strings(values)
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(strings.Join(values, ","))
	}

	sum := sha256.Sum256([]byte(b.String()))
	return namespace + ":" + hex.EncodeToString(sum[:])
}
