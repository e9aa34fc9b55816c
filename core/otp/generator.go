package otp

import (
	"crypto/rand"
	"math/big"
	"strconv"
)

const (
	codeLen = 6
	codeMin = 100000
	codeMax = 999999
)

// GenerateCode produces a uniformly random 6-digit numeric string in
// [100000, 999999].
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeMax-codeMin+1))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(codeMin+n.Int64(), 10), nil
}

// NormalizeCode extracts the maximal numeric prefix of s (a pasted code
// often drags a non-numeric suffix along) and reports whether the result
// is a complete 6-digit code.
func NormalizeCode(s string) (string, bool) {
	var i int
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	code := s[:i]
	return code, len(code) == codeLen
}
