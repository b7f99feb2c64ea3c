// Package folder implements the filesystem connector: a recursive scan
// restricted to allow-listed extensions, incremental sync keyed by
// (path, mtime), optional fsnotify watching, and routing of binary
// formats through the external text extractor.
package folder

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/meridiansearch/meridian/domain/connector"
	"github.com/meridiansearch/meridian/domain/document"
)

// binaryExtensions are routed to the text extractor instead of being read
// as UTF-8.
var binaryExtensions = map[string]struct{}{
	".pdf":  {},
	".docx": {},
	".xlsx": {},
	".pptx": {},
	".odt":  {},
}

// maxFileBytes bounds how much of one file is indexed.
const maxFileBytes = 8 << 20

// Runner executes folder connector syncs.
type Runner struct {
	documents document.Store
	extractor *ExtractorClient
}

// NewRunner creates a Runner. A nil extractor disables binary formats:
// they are skipped with a log entry.
func NewRunner(documents document.Store, extractor *ExtractorClient) *Runner {
	return &Runner{documents: documents, extractor: extractor}
}

// Run performs one incremental scan.
func (r *Runner) Run(ctx context.Context, c connector.Connector, sink connector.ProgressSink) (connector.Counters, error) {
	cfg, ok := c.Config().(connector.FolderConfig)
	if !ok {
		return connector.Counters{}, fmt.Errorf("connector %s: config is not a folder config", c.ID())
	}

	files, err := scan(cfg)
	if err != nil {
		return connector.Counters{}, err
	}
	sink.Log("info", "folder scanned", map[string]any{"files": len(files)})

	source := make([]document.SourceEntry, 0, len(files))
	mtimes := make(map[string]time.Time, len(files))
	for _, f := range files {
		source = append(source, document.NewSourceEntry(f.path, f.modTime))
		mtimes[f.path] = f.modTime
	}

	indexed, err := r.documents.ListForSource(ctx, c.ID().String())
	if err != nil {
		return connector.Counters{}, fmt.Errorf("list indexed entries: %w", err)
	}

	diff := connector.ComputeDiff(source, indexed)
	if diff.Empty() {
		sink.Log("info", "index already current", nil)
		return connector.Counters{}, nil
	}
	sink.SetCounters(diff.Counters())

	for _, path := range diff.Fetch() {
		if err := ctx.Err(); err != nil {
			return diff.Counters(), err
		}
		if err := r.indexFile(ctx, c, path, mtimes[path]); err != nil {
			sink.Log("warn", "file skipped", map[string]any{"path": path, "error": err.Error()})
		}
	}

	if len(diff.Removed()) > 0 {
		keep := make([]string, 0, len(source))
		for _, e := range source {
			keep = append(keep, e.ExternalID())
		}
		if _, err := r.documents.DeleteBySourceKeeping(ctx, c.ID().String(), keep); err != nil {
			return diff.Counters(), fmt.Errorf("delete-sweep: %w", err)
		}
	}

	return diff.Counters(), nil
}

// indexFile reads or extracts one file and upserts it.
func (r *Runner) indexFile(ctx context.Context, c connector.Connector, path string, modTime time.Time) error {
	content, err := r.fileText(ctx, path)
	if err != nil {
		return err
	}

	doc := document.New(c.ID().String(), path, filepath.Base(path), content, "folder:file").
		WithLastModified(modTime).
		WithAttributes(document.NewAttributes(map[string]any{
			"path":      path,
			"extension": strings.ToLower(filepath.Ext(path)),
		}))

	if _, _, err := r.documents.Upsert(ctx, doc); err != nil {
		return fmt.Errorf("upsert file: %w", err)
	}
	return nil
}

func (r *Runner) fileText(ctx context.Context, path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if _, binary := binaryExtensions[ext]; binary {
		if r.extractor == nil {
			return "", fmt.Errorf("no text extractor configured for %s files", ext)
		}
		return r.extractor.Extract(ctx, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(io.LimitReader(f, maxFileBytes))
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return string(data), nil
}

// scannedFile is one allow-listed file found during the walk.
type scannedFile struct {
	path    string
	modTime time.Time
}

// scan walks the configured root collecting allow-listed files. Hidden
// directories are skipped.
func scan(cfg connector.FolderConfig) ([]scannedFile, error) {
	allowed := make(map[string]struct{}, len(cfg.Extensions))
	for _, ext := range cfg.Extensions {
		allowed[normalizeExt(ext)] = struct{}{}
	}

	var files []scannedFile
	err := filepath.WalkDir(cfg.Path, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if name := d.Name(); strings.HasPrefix(name, ".") && path != cfg.Path {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := allowed[strings.ToLower(filepath.Ext(path))]; !ok {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, scannedFile{path: path, modTime: info.ModTime().UTC().Truncate(time.Second)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", cfg.Path, err)
	}
	return files, nil
}

// Watch re-runs the connector when allow-listed files change, debouncing
// bursts of filesystem events. Blocks until the context is cancelled.
func (r *Runner) Watch(ctx context.Context, c connector.Connector, sink connector.ProgressSink) error {
	cfg, ok := c.Config().(connector.FolderConfig)
	if !ok {
		return fmt.Errorf("connector %s: config is not a folder config", c.ID())
	}
	if !cfg.Watch {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// Watch every directory under the root; fsnotify is not recursive.
	err = filepath.WalkDir(cfg.Path, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() && !strings.HasPrefix(d.Name(), ".") {
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("watch %s: %w", cfg.Path, err)
	}

	allowed := make(map[string]struct{}, len(cfg.Extensions))
	for _, ext := range cfg.Extensions {
		allowed[normalizeExt(ext)] = struct{}{}
	}

	const debounce = 2 * time.Second
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op.Has(fsnotify.Create) {
				if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
					_ = watcher.Add(event.Name)
					continue
				}
			}
			if _, relevant := allowed[strings.ToLower(filepath.Ext(event.Name))]; !relevant {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
				timerC = timer.C
			} else {
				timer.Reset(debounce)
			}
		case <-timerC:
			timer, timerC = nil, nil
			if _, err := r.Run(ctx, c, sink); err != nil && ctx.Err() == nil {
				sink.Log("warn", "watch-triggered sync failed", map[string]any{"error": err.Error()})
			}
		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			sink.Log("warn", "watcher error", map[string]any{"error": watchErr.Error()})
		}
	}
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

