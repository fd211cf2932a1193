package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// keySeparator joins system and user content inside the hash input so that
// ("ab","c") and ("a","bc") cannot collide.
const keySeparator = "\x1f"

// hashPrefixLen is how many hex characters of the SHA-256 digest the key
// keeps. 128 bits is ample for collision resistance at cache scale.
const hashPrefixLen = 32

// BuildKey derives the content-addressed cache key for a request under the
// given policy. It is a pure function: identical inputs always produce the
// same key, and the namespace prefix keeps categories from ever colliding.
func BuildKey(p Policy, prompt, systemPrompt, userID string) string {
	normalized := normalize(systemPrompt) + keySeparator + normalize(prompt)
	sum := sha256.Sum256([]byte(normalized))
	key := p.Namespace + ":" + hex.EncodeToString(sum[:])[:hashPrefixLen]
	if p.PerUser && userID != "" {
		key += ":u:" + userID
	}
	return key
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
