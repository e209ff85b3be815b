package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// FingerprintLen is the number of hex characters kept from the digest.
const FingerprintLen = 16

// Fingerprint maps input to a short stable digest.
//
// Strings are truncated to maxChars runes (when maxChars > 0) and then have
// leading, trailing and repeated whitespace collapsed. Any other value is
// round-tripped through JSON, its strings normalized the same way, and
// re-encoded with sorted object keys, so two structurally equal inputs hash
// identically regardless of field order or formatting.
func Fingerprint(input any, maxChars int) (string, error) {
	var canonical []byte
	switch v := input.(type) {
	case string:
		canonical = []byte(normalizeText(v, maxChars))
	default:
		raw, err := json.Marshal(input)
		if err != nil {
			return "", fmt.Errorf("fingerprint: %w", err)
		}
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var tree any
		if err := dec.Decode(&tree); err != nil {
			return "", fmt.Errorf("fingerprint: %w", err)
		}
		canonical, err = json.Marshal(normalizeTree(tree, maxChars))
		if err != nil {
			return "", fmt.Errorf("fingerprint: %w", err)
		}
	}

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])[:FingerprintLen], nil
}

// Truncate returns the first max runes of s. A max <= 0 disables the cap.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	i := 0
	for n := 0; n < max; n++ {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return s[:i]
}

func normalizeText(s string, maxChars int) string {
	return strings.Join(strings.Fields(Truncate(s, maxChars)), " ")
}

func normalizeTree(v any, maxChars int) any {
	switch t := v.(type) {
	case string:
		return normalizeText(t, maxChars)
	case map[string]any:
		for k, child := range t {
			t[k] = normalizeTree(child, maxChars)
		}
		return t
	case []any:
		for i, child := range t {
			t[i] = normalizeTree(child, maxChars)
		}
		return t
	default:
		return v
	}
}
