package qrcode

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSigner(t *testing.T) {
	s, err := NewSigner("0123456789abcdef-test-secret")
	require.NoError(t, err)

	code := s.Issue()
	assert.True(t, s.Verify(code))
	assert.NotEqual(t, code, s.Issue())

	id, _, _ := strings.Cut(code, ".")
	tests := []struct {
		name string
		code string
	}{
		{"empty", ""},
		{"no tag", id},
		{"wrong tag", id + ".AAAAAAAAAAAAAAAAAAAAAA"},
		{"not a uuid", "ticket-1." + s.tag("ticket-1")},
		{"tag from another id", "6b0f1b4e-5d0e-4c1a-9d7e-0d3f7b9b2c11." + strings.SplitN(code, ".", 2)[1]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, s.Verify(tt.code))
		})
	}

	other, err := NewSigner("another-secret-of-enough-length")
	require.NoError(t, err)
	assert.False(t, other.Verify(code))
}

func TestNewSigner_ShortSecret(t *testing.T) {
	_, err := NewSigner("short")
	require.ErrorIs(t, err, ErrShortSecret)
}

func TestPNG(t *testing.T) {
	png, err := PNG("6b0f1b4e-5d0e-4c1a-9d7e-0d3f7b9b2c11.tag", 256)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
}
