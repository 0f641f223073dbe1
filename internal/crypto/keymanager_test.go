package crypto

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpen(t *testing.T) {
	blob, err := Seal("eyJhbGciOi.token", "hunter2")
	require.NoError(t, err)
	assert.NotContains(t, string(blob), "eyJhbGciOi")

	got, err := Open(blob, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "eyJhbGciOi.token", got)

	_, err = Open(blob, "wrong")
	assert.Error(t, err)
}

func TestSeal_Validation(t *testing.T) {
	_, err := Seal("token", "")
	assert.Error(t, err)
	_, err = Seal("  ", "pw")
	assert.Error(t, err)
	_, err = Open([]byte(`{"version":2}`), "pw")
	assert.Error(t, err)
	_, err = Open([]byte(`not json`), "pw")
	assert.Error(t, err)
}

func TestLoadSecret(t *testing.T) {
	got, err := LoadSecret(SecretConfig{Raw: " raw-token ", EncryptedPath: "/does/not/exist"})
	require.NoError(t, err)
	assert.Equal(t, "raw-token", got)

	_, err = LoadSecret(SecretConfig{})
	assert.ErrorIs(t, err, ErrNoSecret)

	blob, err := Seal("sealed-token", "pw")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	got, err = LoadSecret(SecretConfig{EncryptedPath: path, Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "sealed-token", got)
}
