package random

import (
	"crypto/rand"
	"math/big"
)

const digits = "0123456789"

// Ambiguous characters (0/O, 1/I) excluded.
const letters = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func Numeric(length int) string {
	return pickFromSet(digits, length)
}

func Code(length int) string {
	return pickFromSet(letters, length)
}

func pickFromSet(set string, length int) string {
	if length <= 0 {
		return ""
	}
	max := big.NewInt(int64(len(set)))
	out := make([]byte, length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			out[i] = set[0]
			continue
		}
		out[i] = set[n.Int64()]
	}
	return string(out)
}
