package main

import (
	"archive/zip"
	"bytes"
	"context"
	"path/filepath"
	"sort"
	"testing"

	"github.com/Veraticus/remitos/internal/document"
	"github.com/Veraticus/remitos/internal/model"
	"github.com/Veraticus/remitos/internal/testutil"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchivePath(t *testing.T) {
	tests := []struct {
		name string
		dir  string
		doc  string
		want string
	}{
		{name: "pdf", dir: "out", doc: "lote.pdf", want: filepath.Join("out", "lote_remitos_clasificados.zip")},
		{name: "no extension", dir: ".", doc: "lote", want: "lote_remitos_clasificados.zip"},
		{name: "empty name", dir: "out", doc: "", want: filepath.Join("out", "remitos_clasificados.zip")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, archivePath(tt.dir, tt.doc))
		})
	}
}

func TestResolveStartIndex(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	cmd := &cobra.Command{}
	cmd.SetContext(ctx)
	cmd.SetErr(&bytes.Buffer{})

	doc := &model.Document{Hash: "h", Name: "lote.pdf", Pages: make([]model.Page, 5)}

	start, err := resolveStartIndex(cmd, db, doc, false, 0)
	require.NoError(t, err)
	assert.Zero(t, start)

	start, err = resolveStartIndex(cmd, db, doc, false, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, start)

	_, err = resolveStartIndex(cmd, db, doc, false, 6)
	assert.Error(t, err)

	// Nothing stored yet.
	start, err = resolveStartIndex(cmd, db, doc, true, 0)
	require.NoError(t, err)
	assert.Zero(t, start)

	resume := 4
	require.NoError(t, db.SaveProgress(ctx, &model.DocumentProgress{Hash: "h", Name: "lote.pdf", PageCount: 5, ResumeIndex: &resume}))
	start, err = resolveStartIndex(cmd, db, doc, true, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, start)

	require.NoError(t, db.SaveProgress(ctx, &model.DocumentProgress{Hash: "h", Name: "lote.pdf", PageCount: 5}))
	start, err = resolveStartIndex(cmd, db, doc, true, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, start)
}

func TestClassifyCommand(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	pdfPath := testutil.WritePDF(t, "lote.pdf",
		"Remito 0010-00000005",
		"sin datos",
		"Remito 0002-00000099",
	)
	outDir := t.TempDir()
	dbPath := filepath.Join(t.TempDir(), "remitos.db")

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs([]string{
		"classify", pdfPath,
		"--database", dbPath,
		"--output", outDir,
		"--no-progress",
		"--log-level", "error",
	})
	require.NoError(t, rootCmd.ExecuteContext(context.Background()))

	assert.Contains(t, stdout.String(), "2 of 3 pages classified")

	archive := filepath.Join(outDir, "lote_remitos_clasificados.zip")
	zr, err := zip.OpenReader(archive)
	require.NoError(t, err)
	defer func() { _ = zr.Close() }()

	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)

		rc, err := f.Open()
		require.NoError(t, err)
		var page bytes.Buffer
		_, err = page.ReadFrom(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())

		pages, err := document.Split(page.Bytes())
		require.NoError(t, err, "%s should be a single-page PDF", f.Name)
		assert.Len(t, pages, 1)
	}
	sort.Strings(names)
	assert.Equal(t, []string{
		"Remitos Clasificados/000001_0002-00000099.pdf",
		"Remitos Clasificados/000002_0010-00000005.pdf",
		"Remitos Clasificados/SIN_REMITO_2.pdf",
	}, names)
}
