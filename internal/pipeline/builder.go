// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"envforge-cli/internal/container"
	"envforge-cli/internal/fetch"
	"envforge-cli/pkg/forgefile"
)

// Compile-time interface check
var _ Builder = (*ImageBuilder)(nil)

type (
	// Builder turns a manifest into a ready-to-run image.
	// Implementations should cache built images based on content hashes
	// so an unchanged environment reuses its image without rebuilding.
	Builder interface {
		// Build creates or retrieves the image for a manifest.
		// The cleanup function removes temporary build resources (not the
		// cached image).
		Build(ctx context.Context, f *forgefile.Forgefile) (*Result, error)
	}

	// Result contains the output of a build.
	Result struct {
		// ImageTag is the tag of the built image (e.g., "envforge:abc123")
		ImageTag string

		// CacheHit is true when the image already existed and no build ran.
		CacheHit bool

		// Payloads maps each staged payload URL to its sha256 digest.
		// Recorded in the lockfile for drift detection.
		Payloads map[string]string

		// Cleanup removes the temporary build context. May be nil when the
		// build was served from cache.
		Cleanup func()
	}

	// BuilderOption configures an ImageBuilder.
	BuilderOption func(*ImageBuilder)

	// ImageBuilder builds environment images with a container engine.
	//
	// Built images are cached based on a hash of:
	// - Base image digest (or name when the image is not local)
	// - The generated Dockerfile, which encodes every step and payload pin
	//
	// This allows fast reuse when the manifest hasn't changed.
	ImageBuilder struct {
		engine  container.Engine
		fetcher *fetch.Fetcher
		config  *Config
		logger  *log.Logger
	}
)

// WithFetcher sets the fetcher used to stage payloads (tests point this at
// httptest servers).
func WithFetcher(f *fetch.Fetcher) BuilderOption {
	return func(b *ImageBuilder) {
		b.fetcher = f
	}
}

// WithLogger sets the logger for build progress.
func WithLogger(logger *log.Logger) BuilderOption {
	return func(b *ImageBuilder) {
		b.logger = logger
	}
}

// NewImageBuilder creates a new ImageBuilder.
func NewImageBuilder(engine container.Engine, cfg *Config, opts ...BuilderOption) *ImageBuilder {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	b := &ImageBuilder{
		engine:  engine,
		fetcher: fetch.NewFetcher(),
		config:  cfg,
		logger: log.NewWithOptions(os.Stderr, log.Options{
			Prefix: "envforge",
		}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Config returns the builder's configuration.
func (b *ImageBuilder) Config() *Config {
	return b.config
}

// Build creates or retrieves the cached image for the manifest. Steps run
// strictly in declaration order and the build stops at the first failure; a
// failed build leaves no tagged image.
func (b *ImageBuilder) Build(ctx context.Context, f *forgefile.Forgefile) (*Result, error) {
	tag, err := b.ImageTag(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate image tag: %w", err)
	}

	// Check if cached image exists (skip if ForceRebuild is set)
	if !b.config.ForceRebuild {
		exists, _ := b.engine.ImageExists(ctx, tag) //nolint:errcheck // Error treated as "not found"
		if exists {
			b.logger.Info("image up to date", "tag", tag)
			return &Result{ImageTag: tag, CacheHit: true}, nil
		}
	}

	buildCtx, payloads, cleanup, err := b.prepareBuildContext(ctx, f)
	if err != nil {
		return nil, err
	}

	if err := b.buildImage(ctx, f, buildCtx, tag); err != nil {
		cleanup()
		return nil, err
	}

	b.logger.Info("image built", "tag", tag, "steps", len(f.Steps))

	return &Result{
		ImageTag: tag,
		Payloads: payloads,
		Cleanup:  cleanup,
	}, nil
}

// ImageTag returns the tag the manifest builds to without building it.
// Manifests with an explicit tag use it verbatim; otherwise the tag is
// content-addressed.
func (b *ImageBuilder) ImageTag(ctx context.Context, f *forgefile.Forgefile) (string, error) {
	if f.Tag != "" {
		return f.Tag, nil
	}

	cacheKey, err := b.calculateCacheKey(ctx, f)
	if err != nil {
		return "", err
	}
	return b.buildTag(cacheKey[:12]), nil
}

// IsImageBuilt checks if the manifest's image already exists in the cache.
func (b *ImageBuilder) IsImageBuilt(ctx context.Context, f *forgefile.Forgefile) (bool, error) {
	tag, err := b.ImageTag(ctx, f)
	if err != nil {
		return false, err
	}
	return b.engine.ImageExists(ctx, tag)
}

// buildTag constructs the image tag with optional suffix.
// When TagSuffix is set, the tag format is "envforge:<hash>-<suffix>".
// This enables test isolation by making each test's images unique.
func (b *ImageBuilder) buildTag(hash string) string {
	if b.config.TagSuffix != "" {
		return fmt.Sprintf("envforge:%s-%s", hash, b.config.TagSuffix)
	}
	return fmt.Sprintf("envforge:%s", hash)
}

// calculateCacheKey generates a unique key for the manifest. The generated
// Dockerfile encodes every step, pin, and payload name, so hashing it covers
// the whole recipe.
func (b *ImageBuilder) calculateCacheKey(ctx context.Context, f *forgefile.Forgefile) (string, error) {
	h := sha256.New()

	// Prefer the local image digest so a re-pulled base invalidates the cache.
	imageID, err := b.engine.ImageDigest(ctx, f.BaseImage)
	if err != nil || imageID == "" {
		imageID = f.BaseImage
	}
	h.Write([]byte("image:" + imageID))
	h.Write([]byte("dockerfile:" + generateDockerfile(f)))

	return hex.EncodeToString(h.Sum(nil)), nil
}

// prepareBuildContext creates a temporary directory holding the generated
// Dockerfile and every staged payload. Payload downloads go through the
// on-disk payload cache, so repeated builds of pinned steps don't touch the
// network.
func (b *ImageBuilder) prepareBuildContext(ctx context.Context, f *forgefile.Forgefile) (buildContextDir string, payloads map[string]string, cleanup func(), err error) {
	parent := filepath.Join(b.config.CacheDir, "build")
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", nil, nil, fmt.Errorf("failed to create build context parent directory: %w", err)
	}

	tmpDir, err := os.MkdirTemp(parent, "ctx-*")
	if err != nil {
		return "", nil, nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	cleanup = func() {
		_ = os.RemoveAll(tmpDir) // Cleanup temp dir; error non-critical
	}

	if err := os.MkdirAll(filepath.Join(tmpDir, payloadDir), 0o755); err != nil {
		cleanup()
		return "", nil, nil, fmt.Errorf("failed to create payload directory: %w", err)
	}

	payloads = make(map[string]string)
	for _, i := range f.FetchSteps() {
		step := &f.Steps[i]
		b.logger.Info("staging payload", "step", step.DisplayName())

		digest, err := b.stagePayload(ctx, i, step, tmpDir)
		if err != nil {
			cleanup()
			return "", nil, nil, ClassifyFetchError(step, err)
		}
		payloads[step.URL] = digest
	}

	dockerfilePath := filepath.Join(tmpDir, "Dockerfile")
	if err := os.WriteFile(dockerfilePath, []byte(generateDockerfile(f)), 0o644); err != nil {
		cleanup()
		return "", nil, nil, fmt.Errorf("failed to write Dockerfile: %w", err)
	}

	return tmpDir, payloads, cleanup, nil
}

// stagePayload places the payload for a fetch or download step into the build
// context, downloading through the payload cache. A cached file whose digest
// no longer matches the step's pin is discarded and fetched again.
func (b *ImageBuilder) stagePayload(ctx context.Context, index int, step *forgefile.Step, buildCtx string) (string, error) {
	cached, err := b.cachedPayloadPath(step)
	if err != nil {
		return "", err
	}

	if digest, err := CalculateFileHash(cached); err == nil {
		if step.SHA256 == "" || digest == step.SHA256 {
			dst := filepath.Join(buildCtx, payloadDir, payloadFileName(index, step))
			if err := CopyFile(cached, dst); err != nil {
				return "", err
			}
			return digest, nil
		}
		_ = os.Remove(cached) // Stale pin; re-download below
	}

	var payload *fetch.Payload
	if step.Kind == forgefile.StepFetch {
		payload, err = b.fetcher.DownloadArchive(ctx, step.URL, cached, step.SHA256)
	} else {
		payload, err = b.fetcher.DownloadFile(ctx, step.URL, cached, step.SHA256)
	}
	if err != nil {
		return "", err
	}

	dst := filepath.Join(buildCtx, payloadDir, payloadFileName(index, step))
	if err := CopyFile(payload.Path, dst); err != nil {
		return "", err
	}
	return payload.SHA256, nil
}

// cachedPayloadPath returns where a step's payload lives in the on-disk
// cache. The URL hash prefix keeps distinct URLs with the same file name
// apart.
func (b *ImageBuilder) cachedPayloadPath(step *forgefile.Step) (string, error) {
	dir := filepath.Join(b.config.CacheDir, payloadDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create payload cache directory: %w", err)
	}

	urlSum := sha256.Sum256([]byte(step.URL))
	name := fmt.Sprintf("%s-%s", hex.EncodeToString(urlSum[:8]), urlFileName(step.URL))
	return filepath.Join(dir, name), nil
}

// buildImage runs the engine build. The build log is captured alongside the
// configured output so a failure can be attributed to the step that caused
// it.
func (b *ImageBuilder) buildImage(ctx context.Context, f *forgefile.Forgefile, buildCtx, tag string) error {
	var logBuf bytes.Buffer

	out := b.config.BuildOutput
	if out == nil {
		out = os.Stderr
	}
	sink := io.MultiWriter(out, &logBuf)

	buildOpts := container.BuildOptions{
		ContextDir: buildCtx,
		Dockerfile: "Dockerfile",
		Tag:        tag,
		NoCache:    b.config.NoCache,
		Pull:       b.config.Pull,
		Stdout:     sink,
		Stderr:     sink,
	}

	if err := b.engine.Build(ctx, buildOpts); err != nil {
		return ClassifyBuildFailure(f, logBuf.String(), err)
	}

	return nil
}
