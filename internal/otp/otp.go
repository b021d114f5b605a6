// Package otp issues and checks the 4-digit delivery confirmation codes.
// Only a keyed hash of a code is ever handed to storage.
package otp

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"math/big"
	"strconv"
)

const (
	minCode = 1000
	maxCode = 9999
)

// Hasher generates codes and computes HMAC-SHA256 digests over a server
// secret. The digest binds the subject (an order id) so a code issued for
// one order never verifies against another.
type Hasher struct {
	secret []byte
	rand   io.Reader
}

func NewHasher(secret string) (*Hasher, error) {
	if secret == "" {
		return nil, errors.New("otp secret is empty")
	}
	return &Hasher{secret: []byte(secret), rand: rand.Reader}, nil
}

// Generate returns a uniformly random code in [1000, 9999].
func (h *Hasher) Generate() (string, error) {
	n, err := rand.Int(h.rand, big.NewInt(maxCode-minCode+1))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+minCode, 10), nil
}

func (h *Hasher) Hash(subject, code string) string {
	mac := hmac.New(sha256.New, h.secret)
	mac.Write([]byte(subject))
	mac.Write([]byte{':'})
	mac.Write([]byte(code))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the digest for code and compares it in constant time.
// An empty stored digest never verifies.
func (h *Hasher) Verify(subject, code, stored string) bool {
	if stored == "" || code == "" {
		return false
	}
	want, err := hex.DecodeString(stored)
	if err != nil {
		return false
	}
	got, _ := hex.DecodeString(h.Hash(subject, code))
	return hmac.Equal(got, want)
}
