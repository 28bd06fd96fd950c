package keypair

import (
	"context"
	"crypto/ed25519"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_RoundTrip(t *testing.T) {
	t.Parallel()

	kp, err := Generate()
	require.NoError(t, err)

	parsed, err := Parse(kp.Marshal())
	require.NoError(t, err)
	assert.Equal(t, kp.PublicKey(), parsed.PublicKey())
}

func TestLoad(t *testing.T) {
	t.Parallel()

	kp, err := FromSeed(make([]byte, ed25519.SeedSize))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "payer.json")
	require.NoError(t, os.WriteFile(path, kp.Marshal(), 0o600))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, kp.PublicKey(), loaded.PublicKey())
}

func TestParse_Invalid(t *testing.T) {
	t.Parallel()

	kp, err := Generate()
	require.NoError(t, err)
	tampered := kp.Marshal()
	// Flip a digit inside the public half of the array.
	tampered[len(tampered)-2]++

	tests := []struct {
		name string
		data []byte
	}{
		{name: "not json", data: []byte("nope")},
		{name: "short", data: []byte("[1,2,3]")},
		{name: "out of range", data: append([]byte("[256"), []byte(",0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0]")...)},
		{name: "public half mismatch", data: tampered},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse(tt.data)
			assert.ErrorIs(t, err, ErrInvalidKey)
		})
	}
}

func TestSign_Verifies(t *testing.T) {
	t.Parallel()

	kp, err := Generate()
	require.NoError(t, err)

	msg := []byte("anchor me")
	sig, err := kp.Sign(context.Background(), msg)
	require.NoError(t, err)

	pub := kp.PublicKey()
	assert.True(t, ed25519.Verify(pub[:], msg, sig[:]))
}
