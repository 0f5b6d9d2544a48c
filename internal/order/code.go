package order

import (
	"crypto/rand"
	"math/big"
	"time"
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 10
)

// GenerateCode returns a random order code: 10 uppercase alphanumeric
// characters from a cryptographic source. Hard enough to guess that one
// shopper cannot enumerate another's orders; uniqueness is the caller's
// problem (retry on the unique constraint).
func GenerateCode() string {
	buf := make([]byte, codeLength)
	max := big.NewInt(int64(len(codeAlphabet)))

	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// fallback: time-based entropy
			n = big.NewInt(time.Now().UnixNano() % int64(len(codeAlphabet)))
		}
		buf[i] = codeAlphabet[n.Int64()]
	}

	return string(buf)
}
