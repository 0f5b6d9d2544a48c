package order

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateCode(t *testing.T) {
	seen := make(map[string]bool)

	for i := 0; i < 1000; i++ {
		code := GenerateCode()
		assert.Len(t, code, 10)
		for _, c := range code {
			assert.True(t, strings.ContainsRune(codeAlphabet, c), "unexpected char %q", c)
		}
		seen[code] = true
	}

	// 36^10 keyspace: 1000 draws colliding would point at a broken source.
	assert.Len(t, seen, 1000)
}
