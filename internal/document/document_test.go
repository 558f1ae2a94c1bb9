package document

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/Veraticus/remitos/internal/common"
	"github.com/Veraticus/remitos/internal/model"
	"github.com/Veraticus/remitos/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	data := testutil.BuildPDF(t, "Remito 0001-00001234", "sin numero", "Remito 0002-00000099")

	doc, err := Load("remitos.pdf", data)
	require.NoError(t, err)

	assert.Equal(t, "remitos.pdf", doc.Name)
	assert.Equal(t, model.HashDocument(data), doc.Hash)
	require.Len(t, doc.Pages, 3)

	for i, page := range doc.Pages {
		assert.Equal(t, i, page.Index)
		assert.True(t, bytes.HasPrefix(page.Data, []byte("%PDF")), "page %d should be a standalone PDF", i+1)
	}
	assert.Contains(t, doc.Pages[0].Text, "0001-00001234")
	assert.Contains(t, doc.Pages[2].Text, "0002-00000099")
}

func TestSplit_SinglePagesReload(t *testing.T) {
	pages, err := Split(testutil.BuildPDF(t, "uno", "dos"))
	require.NoError(t, err)
	require.Len(t, pages, 2)

	for _, page := range pages {
		again, err := Split(page.Data)
		require.NoError(t, err)
		assert.Len(t, again, 1)
	}
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load("empty.pdf", nil)
	assert.ErrorIs(t, err, common.ErrEmptyDocument)

	_, err = Load("garbage.pdf", []byte("this is not a pdf"))
	assert.ErrorIs(t, err, common.ErrInvalidPDF)
}

func TestExtractText_Unreadable(t *testing.T) {
	assert.Nil(t, ExtractText([]byte("not a pdf")))
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lote.pdf")
	require.NoError(t, os.WriteFile(path, testutil.BuildPDF(t, "Remito 0003-00000001"), 0600))

	doc, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "lote.pdf", doc.Name)
	require.Len(t, doc.Pages, 1)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Error(t, err)
}
