package embedding

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"

	"github.com/meridiansearch/meridian/domain/search"
)

// localBatchMax is the maximum number of texts per pipeline run.
const localBatchMax = 10

// ortSingleton holds the process-wide ONNX Runtime session and pipeline.
// ORT only allows one active session per process, so all LocalEmbedder
// instances must share it. The mutex serializes both initialization and
// inference (ORT is not thread-safe).
var ortSingleton struct {
	session  *hugot.Session
	pipeline *pipelines.FeatureExtractionPipeline
	mu       sync.Mutex
	ready    bool
}

// LocalEmbedder provides embedding generation with a sentence-transformer
// ONNX model via hugot, with no network dependency.
//
// The model can come from two sources (checked in order):
//  1. Model files on disk, a subdirectory of cacheDir containing
//     tokenizer.json.
//  2. Statically embedded in the binary (build tag embed_model), extracted
//     to cacheDir on first use.
type LocalEmbedder struct {
	cacheDir  string
	dimension int
}

// NewLocalEmbedder creates a LocalEmbedder that looks for model files in
// cacheDir. If no model exists on disk and the embed_model build tag was
// used, the embedded model is extracted to cacheDir automatically.
func NewLocalEmbedder(cacheDir string, dimension int) *LocalEmbedder {
	if dimension <= 0 {
		dimension = 384
	}
	return &LocalEmbedder{cacheDir: cacheDir, dimension: dimension}
}

// Available reports whether a usable model exists, either compiled into
// the binary (embed_model build tag) or present on disk in cacheDir.
func (e *LocalEmbedder) Available() bool {
	if hasEmbeddedModel {
		return true
	}
	_, err := e.diskModelPath()
	return err == nil
}

// Embed maps one text to a vector.
func (e *LocalEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	vectors, err := e.runBatch(ctx, []string{Truncate(text)})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// BatchEmbed maps texts to vectors in input order, splitting across
// pipeline runs of localBatchMax.
func (e *LocalEmbedder) BatchEmbed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return [][]float64{}, nil
	}
	if len(texts) > search.MaxEmbedBatch {
		return nil, fmt.Errorf("batch embed: %d texts exceeds limit %d", len(texts), search.MaxEmbedBatch)
	}

	truncated := make([]string, len(texts))
	for i, t := range texts {
		truncated[i] = Truncate(t)
	}

	out := make([][]float64, 0, len(truncated))
	for start := 0; start < len(truncated); start += localBatchMax {
		end := start + localBatchMax
		if end > len(truncated) {
			end = len(truncated)
		}
		vectors, err := e.runBatch(ctx, truncated[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}
	return out, nil
}

// Dimension returns the fixed vector width.
func (e *LocalEmbedder) Dimension() int { return e.dimension }

func (e *LocalEmbedder) runBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := e.initialize(); err != nil {
		return nil, fmt.Errorf("%w: %w", search.ErrModelUnavailable, err)
	}

	// Hold the singleton mutex for inference — ORT is not thread-safe.
	ortSingleton.mu.Lock()
	defer ortSingleton.mu.Unlock()

	result, err := ortSingleton.pipeline.RunPipeline(texts)
	if err != nil {
		return nil, fmt.Errorf("run embedding pipeline: %w", err)
	}

	vectors := make([][]float64, len(result.Embeddings))
	for i, vec32 := range result.Embeddings {
		vec64 := make([]float64, len(vec32))
		for j, v := range vec32 {
			vec64[j] = float64(v)
		}
		vectors[i] = vec64
	}
	return vectors, nil
}

func (e *LocalEmbedder) initialize() error {
	ortSingleton.mu.Lock()
	defer ortSingleton.mu.Unlock()

	if ortSingleton.ready {
		return nil
	}

	session, err := newHugotSession()
	if err != nil {
		return fmt.Errorf("create hugot session: %w", err)
	}

	modelPath, err := e.resolveModelPath()
	if err != nil {
		_ = session.Destroy()
		return err
	}

	config := hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "builtin-embeddings",
		Options: []hugot.FeatureExtractionOption{
			pipelines.WithNormalization(),
		},
	}
	pipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		_ = session.Destroy()
		return fmt.Errorf("create feature extraction pipeline: %w", err)
	}

	ortSingleton.session = session
	ortSingleton.pipeline = pipeline
	ortSingleton.ready = true
	return nil
}

// resolveModelPath returns the path to a usable model directory: model
// files already on disk first, then the statically embedded model.
func (e *LocalEmbedder) resolveModelPath() (string, error) {
	if diskPath, err := e.diskModelPath(); err == nil {
		return diskPath, nil
	}

	if !hasEmbeddedModel {
		return "", fmt.Errorf("no model found in %s and no embedded model compiled in (build with -tags embed_model)", e.cacheDir)
	}

	if err := os.MkdirAll(e.cacheDir, 0o755); err != nil {
		return "", fmt.Errorf("create cache directory: %w", err)
	}

	return extractEmbeddedModel(embeddedModelFS, e.cacheDir)
}

// diskModelPath looks for a model subdirectory containing tokenizer.json
// inside cacheDir.
func (e *LocalEmbedder) diskModelPath() (string, error) {
	entries, err := os.ReadDir(e.cacheDir)
	if err != nil {
		return "", fmt.Errorf("read model directory %s: %w", e.cacheDir, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		candidate := filepath.Join(e.cacheDir, entry.Name())
		if _, statErr := os.Stat(filepath.Join(candidate, "tokenizer.json")); statErr == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no model subdirectory with tokenizer.json found in %s", e.cacheDir)
}

// extractEmbeddedModel writes the statically embedded model files to
// targetDir and returns the path to the model subdirectory.
func extractEmbeddedModel(embedded fs.FS, targetDir string) (string, error) {
	modelsFS, err := fs.Sub(embedded, "models")
	if err != nil {
		return "", fmt.Errorf("access embedded models: %w", err)
	}

	entries, err := fs.ReadDir(modelsFS, ".")
	if err != nil {
		return "", fmt.Errorf("read embedded models: %w", err)
	}

	var modelSubdir string
	for _, entry := range entries {
		if entry.IsDir() {
			modelSubdir = entry.Name()
			break
		}
	}
	if modelSubdir == "" {
		return "", fmt.Errorf("no model directory found in embedded models")
	}

	modelPath := filepath.Join(targetDir, modelSubdir)

	// Skip extraction if already present.
	if _, statErr := os.Stat(filepath.Join(modelPath, "tokenizer.json")); statErr == nil {
		return modelPath, nil
	}

	modelFS, err := fs.Sub(modelsFS, modelSubdir)
	if err != nil {
		return "", fmt.Errorf("access model subdirectory: %w", err)
	}

	err = fs.WalkDir(modelFS, ".", func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		target := filepath.Join(modelPath, path)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		data, readErr := fs.ReadFile(modelFS, path)
		if readErr != nil {
			return fmt.Errorf("read embedded file %s: %w", path, readErr)
		}
		if mkdirErr := os.MkdirAll(filepath.Dir(target), 0o755); mkdirErr != nil {
			return fmt.Errorf("create directory for %s: %w", path, mkdirErr)
		}
		return os.WriteFile(target, data, 0o644)
	})
	if err != nil {
		return "", fmt.Errorf("extract embedded model: %w", err)
	}

	return modelPath, nil
}
