package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/unlist/pkg/types"
)

func sampleProfile() *types.Profile {
	return &types.Profile{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.com",
		Phone:     "555-0100",
		City:      "London",
		State:     "LDN",
	}
}

func TestStoreSaveLoadRoundtrip(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Save(sampleProfile()))

	got, err := s.Load()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, sampleProfile(), got)
}

func TestStoreLoadWithoutProfile(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	got, err := s.Load()
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStoreEncryptsAtRest(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.Save(sampleProfile()))

	raw, err := os.ReadFile(filepath.Join(dir, "profile.enc"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "Ada")
	assert.NotContains(t, string(raw), "ada@example.com")

	info, err := os.Stat(filepath.Join(dir, "profile.enc"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestStoreKeyPersistsAcrossOpens(t *testing.T) {
	dir := t.TempDir()
	s1, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, s1.Save(sampleProfile()))

	// A second open reuses the generated key and can still decrypt.
	s2, err := NewStore(dir)
	require.NoError(t, err)
	got, err := s2.Load()
	require.NoError(t, err)
	assert.Equal(t, sampleProfile(), got)
}

func TestStoreRejectsWrongKey(t *testing.T) {
	dir := t.TempDir()
	s1, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, s1.Save(sampleProfile()))

	// Losing the key makes the profile unreadable.
	require.NoError(t, os.Remove(filepath.Join(dir, "secret.key")))
	s2, err := NewStore(dir)
	require.NoError(t, err)

	_, err = s2.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decryption failed")
}

func TestStoreRejectsCorruptKeyFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "secret.key"), []byte("not base64!!"), 0600))

	_, err := NewStore(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt")
}

func TestStoreDelete(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.Save(sampleProfile()))

	require.NoError(t, s.Delete())
	got, err := s.Load()
	require.NoError(t, err)
	assert.Nil(t, got)

	// Deleting again is a no-op.
	require.NoError(t, s.Delete())

	// The key survives, so a re-saved profile is readable.
	require.NoError(t, s.Save(sampleProfile()))
	got, err = s.Load()
	require.NoError(t, err)
	require.NotNil(t, got)
}
