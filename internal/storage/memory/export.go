package memory

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/vfproof/keyframer/pkg/core"
)

// ExportVersion is written to every export file.
const ExportVersion = 1

const (
	exportName     = "bookmarks.json"
	exportNameGzip = "bookmarks.json.gz"
)

// BookmarkExport is the root JSON structure
type BookmarkExport struct {
	Version   int             `json:"version"`
	Bookmarks []core.Bookmark `json:"bookmarks"`
}

// exportJSON writes all bookmarks, gzipped when CompressOutput is set.
// Must be called with mu held.
func (b *Backend) exportJSON() error {
	export := BookmarkExport{
		Version:   ExportVersion,
		Bookmarks: b.sorted(),
	}

	filename := exportName
	if b.cfg.CompressOutput {
		filename = exportNameGzip
	}
	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	// Ensure output directory exists
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := writeExport(outputPath, export, b.cfg.CompressOutput); err != nil {
		return err
	}

	b.lastExportPath = outputPath
	return nil
}

// load reads the export written by a previous run. The gzip file wins when
// both exist and CompressOutput is set.
func (b *Backend) load() ([]core.Bookmark, error) {
	candidates := []string{exportName, exportNameGzip}
	if b.cfg.CompressOutput {
		candidates = []string{exportNameGzip, exportName}
	}

	for _, name := range candidates {
		path := filepath.Join(b.cfg.OutputDir, name)
		export, err := readExport(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if export.Version != ExportVersion {
			return nil, fmt.Errorf("unsupported export version %d in %s", export.Version, path)
		}
		return export.Bookmarks, nil
	}
	return nil, nil
}

func readExport(path string) (BookmarkExport, error) {
	var export BookmarkExport

	f, err := os.Open(path)
	if err != nil {
		return export, err
	}
	defer f.Close()

	var r io.Reader = f
	if filepath.Ext(path) == ".gz" {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return export, fmt.Errorf("failed to open gzip export %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	if err := json.NewDecoder(r).Decode(&export); err != nil {
		return export, fmt.Errorf("failed to decode export %s: %w", path, err)
	}
	return export, nil
}

// writeExport fails if any part of the file could not be flushed, so a
// truncated export is never reported as written.
func writeExport(path string, data BookmarkExport, compress bool) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := encodeExport(f, data, compress); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}

func encodeExport(w io.Writer, data BookmarkExport, compress bool) error {
	if !compress {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}

	gz := gzip.NewWriter(w)
	if err := json.NewEncoder(gz).Encode(data); err != nil {
		gz.Close()
		return err
	}
	// Close writes the compressed body and trailer
	return gz.Close()
}
