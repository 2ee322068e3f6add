package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTomlProviderRoundTripsNetworksAndFocus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "noet.toml")
	p := NewTomlProvider(path)

	nets, err := p.GetNetworks()
	require.NoError(t, err)
	require.Empty(t, nets)

	_, err = p.GetFocus()
	require.ErrorIs(t, err, ErrNotFound)

	want := []NetworkRecord{
		{Path: "docs", ID: "docs", Title: "Docs", Summary: "project documentation"},
		{Path: "notes", ID: "notes", Title: "Notes"},
	}
	require.NoError(t, p.SetNetworks(want))
	require.NoError(t, p.SetFocus("docs"))

	reloaded := NewTomlProvider(path)
	nets, err = reloaded.GetNetworks()
	require.NoError(t, err)
	require.Equal(t, want, nets)

	focus, err := reloaded.GetFocus()
	require.NoError(t, err)
	require.Equal(t, "docs", focus)
}
