package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	trackingCodePrefix = "PPDB-"
	trackingCodeLen    = 8
	nisPrefix          = "S-"
	nisSuffixLen       = 6

	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	// Password alphabet mixes cases and digits; ambiguous glyphs are
	// dropped since the credential is read back to the applicant.
	passwordAlphabet = "abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

func randomString(alphabet string, n int) (string, error) {
	out := make([]byte, n)
	max := big.NewInt(int64(len(alphabet)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate random string: %w", err)
		}
		out[i] = alphabet[idx.Int64()]
	}
	return string(out), nil
}

// newTrackingCode returns a human-readable application reference.
// Uniform random; uniqueness is enforced by the storage constraint and
// handled by retry at the call site.
func newTrackingCode() (string, error) {
	suffix, err := randomString(codeAlphabet, trackingCodeLen)
	if err != nil {
		return "", err
	}
	return trackingCodePrefix + suffix, nil
}

// newNIS returns a student index code unique within a tenant, again by
// constraint plus retry rather than by construction.
func newNIS() (string, error) {
	suffix, err := randomString(codeAlphabet, nisSuffixLen)
	if err != nil {
		return "", err
	}
	return nisPrefix + suffix, nil
}

// newTempPassword returns a one-time cleartext credential of fixed
// length. Callers hash it before persisting and must never log it.
func newTempPassword(length int) (string, error) {
	if length <= 0 {
		length = 12
	}
	return randomString(passwordAlphabet, length)
}
