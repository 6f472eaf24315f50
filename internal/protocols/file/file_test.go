package file

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveAbsolutePath(t *testing.T) {
	path, err := Resolve("file:///tmp/data.csv")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/data.csv", path)
}

func TestResolveRejectsOtherScheme(t *testing.T) {
	_, err := Resolve("http://example.com/data.csv")
	assert.Error(t, err)
}

func TestResolveRejectsEmptyPath(t *testing.T) {
	_, err := Resolve("file://")
	assert.Error(t, err)
}

func TestResolveInvalidURL(t *testing.T) {
	_, err := Resolve("file://%zz")
	assert.Error(t, err)
}
