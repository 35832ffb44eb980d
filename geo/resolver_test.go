package geo

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewResolver_EmptyPath(t *testing.T) {
	r, err := NewResolver("  ", zerolog.Nop())
	require.NoError(t, err)
	assert.Nil(t, r)

	assert.Equal(t, "", r.Locate("8.8.8.8"))
	_, _, err = r.Lookup("8.8.8.8")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.NoError(t, r.Close())
}

func TestNewResolver_MissingFile(t *testing.T) {
	_, err := NewResolver(filepath.Join(t.TempDir(), "missing.mmdb"), zerolog.Nop())
	assert.Error(t, err)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "Accra, GH", Format("Accra", "GH"))
	assert.Equal(t, "GH", Format("", "GH"))
	assert.Equal(t, "Accra", Format("Accra", ""))
	assert.Equal(t, "", Format("", ""))
}
