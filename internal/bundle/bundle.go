// Package bundle packs sequenced pages into a ZIP archive.
package bundle

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/Veraticus/remitos/internal/model"
	"github.com/Veraticus/remitos/internal/sequence"
)

// Archive layout.
const (
	FolderName  = "Remitos Clasificados"
	ArchiveName = "remitos_clasificados.zip"
)

// ErrMissingPage is returned when an entry refers to a page not in the document.
var ErrMissingPage = errors.New("entry refers to unknown page")

// Write stores every entry's page under FolderName in a ZIP written to w.
// Entries are written in sequence order.
func Write(w io.Writer, pages []model.Page, entries []sequence.Entry, modified time.Time) error {
	byIndex := make(map[int]model.Page, len(pages))
	for _, p := range pages {
		byIndex[p.Index] = p
	}

	zw := zip.NewWriter(w)
	for _, entry := range entries {
		page, ok := byIndex[entry.PageIndex]
		if !ok {
			_ = zw.Close()
			return fmt.Errorf("%w: page %d", ErrMissingPage, entry.PageIndex+1)
		}

		header := &zip.FileHeader{
			Name:     path.Join(FolderName, entry.Name),
			Method:   zip.Deflate,
			Modified: modified,
		}
		fw, err := zw.CreateHeader(header)
		if err != nil {
			_ = zw.Close()
			return fmt.Errorf("failed to add %s: %w", entry.Name, err)
		}
		if _, err := fw.Write(page.Data); err != nil {
			_ = zw.Close()
			return fmt.Errorf("failed to write %s: %w", entry.Name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	return nil
}

// WriteFile writes the archive to path atomically.
func WriteFile(dst string, pages []model.Page, entries []sequence.Entry) error {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".remitos-*.zip")
	if err != nil {
		return fmt.Errorf("failed to create temporary archive: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := Write(tmp, pages, entries, time.Now()); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close archive: %w", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return fmt.Errorf("failed to move archive into place: %w", err)
	}
	return nil
}
