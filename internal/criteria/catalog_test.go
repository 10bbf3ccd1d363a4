package criteria

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCatalogSplitsGroups(t *testing.T) {
	c := New([]string{"React, Vue", "Go,  golang ", "react", ""})

	assert.Equal(t, []string{"React", "Vue", "Go", "golang"}, c.Names())
	assert.Equal(t, 4, c.Len())
}

func TestCatalogLookup(t *testing.T) {
	c := New([]string{"Machine Learning"})

	name, ok := c.Canonical("machine learning")
	assert.True(t, ok)
	assert.Equal(t, "Machine Learning", name)
	assert.False(t, c.Has("Rust"))

	var empty *Catalog
	assert.Nil(t, empty.Names())
	assert.False(t, empty.Has("Go"))
}
