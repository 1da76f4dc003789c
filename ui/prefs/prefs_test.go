package prefs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrefsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", prefsFile)

	p := LoadFrom(path)
	assert.Equal(t, "white-shirt-woman", p.String(KeyProduct, "white-shirt-woman"))
	assert.True(t, p.Bool(KeyAnchors, true))

	p.SetString(KeyProduct, "white-mug")
	p.SetString(KeyExportDir, "/tmp/exports")
	p.SetBool(KeyAnchors, false)
	require.NoError(t, p.Save())

	back := LoadFrom(path)
	assert.Equal(t, "white-mug", back.String(KeyProduct, ""))
	assert.Equal(t, "/tmp/exports", back.String(KeyExportDir, "."))
	assert.False(t, back.Bool(KeyAnchors, true))
}

func TestPrefsIgnoresCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), prefsFile)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	p := LoadFrom(path)
	assert.Equal(t, "x", p.String(KeyProduct, "x"))
	assert.Equal(t, path, p.Path())
}

func TestPrefsWrongType(t *testing.T) {
	p := LoadFrom(filepath.Join(t.TempDir(), prefsFile))
	p.SetString(KeyAnchors, "yes")
	assert.True(t, p.Bool(KeyAnchors, true))
	p.SetBool(KeyProduct, true)
	assert.Equal(t, "fallback", p.String(KeyProduct, "fallback"))
}
