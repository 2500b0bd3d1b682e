package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1homsi/essence/internal/catalog"
)

func TestParseTags(t *testing.T) {
	tags, err := ParseTags(" RawPointerDeref, InlineAssembly ,,")
	require.NoError(t, err)
	assert.Equal(t, []catalog.Tag{catalog.RawPointerDeref, catalog.InlineAssembly}, tags)

	tags, err = ParseTags("")
	require.NoError(t, err)
	assert.Empty(t, tags)

	_, err = ParseTags("RawPointerDeref,rawpointerderef")
	assert.ErrorContains(t, err, `unknown tag "rawpointerderef"`)
}

func TestLoadCatalogForIR(t *testing.T) {
	_, err := loadCatalog(&options{}, "ir")
	assert.ErrorContains(t, err, "--rules")

	cat, err := loadCatalog(&options{rules: "c"}, "ir")
	require.NoError(t, err)
	assert.Equal(t, "c", cat.Language())

	cat, err = loadCatalog(&options{}, "go")
	require.NoError(t, err)
	assert.Equal(t, "go", cat.Language())
}
