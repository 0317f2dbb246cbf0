// Package export writes persisted widgets to disk as standalone HTML
// documents, ready to ship next to the 3D scene.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/ziadkadry99/popup-studio/internal/logging"
	"github.com/ziadkadry99/popup-studio/internal/progress"
	"github.com/ziadkadry99/popup-studio/internal/widgetstore"
)

// ManifestName is the index file written next to the exported documents.
const ManifestName = "manifest.json"

// pageSize bounds each store query.
const pageSize = 200

// Options controls an export run.
type Options struct {
	OutputDir string
	Filter    Filter
	Reporter  progress.Reporter
}

// ManifestEntry describes one exported document.
type ManifestEntry struct {
	Object     string    `json:"object"`
	TemplateID string    `json:"template_id"`
	File       string    `json:"file"`
	Hash       string    `json:"hash"`
	Revision   int       `json:"revision"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Manifest lists every document of an export, ordered by object.
type Manifest struct {
	GeneratedAt time.Time       `json:"generated_at"`
	Widgets     []ManifestEntry `json:"widgets"`
}

// FileName returns the document name for object. Object names are escaped
// so that separators and dots stay inside one file name.
func FileName(object string) string {
	return url.PathEscape(object) + ".html"
}

// Run writes every widget matched by opts.Filter to opts.OutputDir and
// returns the manifest it wrote.
func Run(ctx context.Context, store *widgetstore.Store, opts Options) (*Manifest, error) {
	if err := opts.Filter.Validate(); err != nil {
		return nil, err
	}
	if opts.Reporter == nil {
		opts.Reporter = progress.Discard{}
	}
	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	var selected []widgetstore.Widget
	for offset := 0; ; offset += pageSize {
		page, err := store.List(ctx, widgetstore.ListFilter{Limit: pageSize, Offset: offset})
		if err != nil {
			return nil, err
		}
		for _, w := range page {
			if opts.Filter.Match(w.Object) {
				selected = append(selected, w)
			}
		}
		if len(page) < pageSize {
			break
		}
	}

	log := logging.With().Str("component", "export").Str("dir", opts.OutputDir).Logger()
	manifest := &Manifest{GeneratedAt: time.Now().UTC(), Widgets: []ManifestEntry{}}

	opts.Reporter.Start(len(selected))
	defer opts.Reporter.Finish()

	for i, w := range selected {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := w.Bundle.Verify(w.Object); err != nil {
			// A stored bundle that would not open is skipped, not fatal.
			log.Warn().Err(err).Str("object", w.Object).Msg("skipping widget")
			continue
		}
		name := FileName(w.Object)
		if err := writeFile(filepath.Join(opts.OutputDir, name), []byte(w.Bundle.Document())); err != nil {
			return nil, err
		}
		manifest.Widgets = append(manifest.Widgets, ManifestEntry{
			Object:     w.Object,
			TemplateID: w.TemplateID,
			File:       name,
			Hash:       w.BundleHash,
			Revision:   w.Revision,
			UpdatedAt:  w.UpdatedAt,
		})
		opts.Reporter.Update(i+1, w.Object)
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding manifest: %w", err)
	}
	if err := writeFile(filepath.Join(opts.OutputDir, ManifestName), data); err != nil {
		return nil, err
	}
	log.Info().Int("widgets", len(manifest.Widgets)).Msg("export complete")
	return manifest, nil
}

// writeFile replaces path atomically.
func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".export-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
