package qrcode

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
	"golang.org/x/crypto/blake2b"
)

const tagSize = 16

var ErrShortSecret = errors.New("qr secret must be at least 16 bytes")

// Signer issues ticket codes of the form "<uuid>.<tag>" where tag is a keyed
// BLAKE2b MAC of the uuid. Codes carry no ticket data; they only let a
// scanner reject forgeries before the store is queried.
type Signer struct {
	key []byte
}

func NewSigner(secret string) (*Signer, error) {
	if len(secret) < 16 {
		return nil, ErrShortSecret
	}
	key := []byte(secret)
	if len(key) > blake2b.Size {
		sum := blake2b.Sum256(key)
		key = sum[:]
	}

	return &Signer{key: key}, nil
}

func (s *Signer) Issue() string {
	id := uuid.NewString()
	return id + "." + s.tag(id)
}

func (s *Signer) Verify(code string) bool {
	id, tag, ok := strings.Cut(code, ".")
	if !ok {
		return false
	}
	if _, err := uuid.Parse(id); err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(tag), []byte(s.tag(id))) == 1
}

func (s *Signer) tag(id string) string {
	h, err := blake2b.New(tagSize, s.key)
	if err != nil {
		// Only reachable with a key longer than 64 bytes, which NewSigner prevents.
		panic(err)
	}
	h.Write([]byte(id))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

// PNG renders code as a square PNG image of size pixels.
func PNG(code string, size int) ([]byte, error) {
	qr, err := qrcode.New(code, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("qrcode.New -> %w", err)
	}

	png, err := qr.PNG(size)
	if err != nil {
		return nil, fmt.Errorf("qr.PNG -> %w", err)
	}

	return png, nil
}
