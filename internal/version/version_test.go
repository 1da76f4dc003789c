package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	old := Version
	Version = "1.2.3"
	t.Cleanup(func() { Version = old })

	assert.Contains(t, String(), "v1.2.3")
	assert.Contains(t, String(), "commit "+GitCommit)
}
