package room

import (
	"crypto/rand"
	"math/big"
)

const (
	// DefaultIDLength is the length of generated room IDs
	DefaultIDLength = 5

	idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

	// maxIDAttempts bounds collision retries before the ID length grows
	maxIDAttempts = 16
)

// randomID returns a random lowercase alphanumeric token of length n
func randomID(n int) string {
	b := make([]byte, n)
	max := big.NewInt(int64(len(idAlphabet)))
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(err)
		}
		b[i] = idAlphabet[idx.Int64()]
	}
	return string(b)
}

// generateID draws IDs until one is not taken. After maxIDAttempts collisions
// the token grows by one character.
func generateID(gen func(n int) string, length int, taken func(string) bool) string {
	for {
		for i := 0; i < maxIDAttempts; i++ {
			id := gen(length)
			if !taken(id) {
				return id
			}
		}
		length++
	}
}
