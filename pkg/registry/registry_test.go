package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRegistry() *Registry {
	return &Registry{
		Version: "2026-08-01",
		Brokers: []Broker{
			{
				ID:        "whitepages",
				Name:      "Whitepages",
				URL:       "https://www.whitepages.com",
				Category:  "people_search",
				Method:    "form",
				OptOutURL: "https://www.whitepages.com/suppression-requests",
			},
			{
				ID:                   "spokeo",
				Name:                 "Spokeo",
				URL:                  "https://www.spokeo.com",
				Category:             "people_search",
				Method:               "form",
				OptOutURL:            "https://www.spokeo.com/optout",
				RequiresVerification: "email",
				RelistDays:           90,
				Difficulty:           "easy",
			},
		},
	}
}

func TestRegistryFind(t *testing.T) {
	reg := sampleRegistry()

	b, ok := reg.Find("spokeo")
	require.True(t, ok)
	assert.Equal(t, "Spokeo", b.Name)
	assert.Equal(t, uint(90), b.RelistDays)

	_, ok = reg.Find("nope")
	assert.False(t, ok)
}

func TestRegistrySorted(t *testing.T) {
	reg := sampleRegistry()
	sorted := reg.Sorted()

	require.Len(t, sorted, 2)
	assert.Equal(t, "Spokeo", sorted[0].Name)
	assert.Equal(t, "Whitepages", sorted[1].Name)
	// The original ordering is untouched.
	assert.Equal(t, "whitepages", reg.Brokers[0].ID)
}

func TestCacheRoundtrip(t *testing.T) {
	cache, err := NewCache(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, cache.Save(sampleRegistry()))

	got, err := cache.Load()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, sampleRegistry(), got)
}

func TestCacheLoadWithoutSnapshot(t *testing.T) {
	cache, err := NewCache(t.TempDir())
	require.NoError(t, err)

	got, err := cache.Load()
	require.NoError(t, err)
	assert.Nil(t, got)
}
