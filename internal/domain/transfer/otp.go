package transfer

import (
	"crypto/rand"
	"math/big"
	"strconv"
)

const (
	otpMin   = 1000
	otpRange = 9000 // codes fall in [1000, 9999]
)

// GenerateOTP draws a 4-digit code uniformly at random.
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpRange))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+otpMin, 10), nil
}
