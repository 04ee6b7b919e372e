package otp

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
)

var codeSpace = big.NewInt(1_000_000)

// Generate returns a uniformly random 6-digit code. Leading zeros are kept.
func Generate() (string, error) {
	return generateFrom(rand.Reader)
}

func generateFrom(r io.Reader) (string, error) {
	n, err := rand.Int(r, codeSpace)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%0*d", CodeLength, n.Int64()), nil
}
