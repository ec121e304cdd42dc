package utils

import (
	"crypto/rand"
	"math/big"
)

const ReferralCodeLength = 6
const letterBytes = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateReferralCode returns a random uppercase alphanumeric code. It does
// not check for collisions; callers do that against the user store.
func GenerateReferralCode() (string, error) {
	return randomString(ReferralCodeLength)
}

func randomString(n int) (string, error) {
	max := big.NewInt(int64(len(letterBytes)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = letterBytes[idx.Int64()]
	}
	return string(b), nil
}
