// Package fetch is the default discovery/download collaborator. It lands
// configured upstream files with go-getter, verifies checksums, and rate
// limits requests so government data portals are not hammered.
package fetch

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-getter"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/veridata/ingot/config"
	"github.com/veridata/ingot/errors"
	"github.com/veridata/ingot/tabular"
)

// Source lands the configured upstream files for a release.
// Implements pipeline.Discovery.
type Source struct {
	cfg     config.FetchConfig
	sources []config.SourceConfig
	limiter *rate.Limiter
	getters map[string]getter.Getter
	logger  *zap.SugaredLogger
}

// NewSource creates a source over the configured upstream entries.
func NewSource(cfg config.FetchConfig, sources []config.SourceConfig, logger *zap.SugaredLogger) *Source {
	perMinute := cfg.RequestsPerMinute
	if perMinute <= 0 {
		perMinute = 30
	}

	// Local sources must be copied, not symlinked: a landed file has to
	// outlive the upstream so re-runs can reuse it.
	getters := make(map[string]getter.Getter, len(getter.Getters))
	for scheme, g := range getter.Getters {
		getters[scheme] = g
	}
	getters["file"] = &getter.FileGetter{Copy: true}

	return &Source{
		cfg:     cfg,
		sources: sources,
		limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), 1),
		getters: getters,
		logger:  logger,
	}
}

// Discover lists the configured source files for a release. Sizes and
// modification times are filled in after download.
func (s *Source) Discover(_ context.Context, releaseID string) ([]tabular.SourceFile, error) {
	if len(s.sources) == 0 {
		return nil, errors.Newf("no sources configured for release %s", releaseID)
	}

	files := make([]tabular.SourceFile, 0, len(s.sources))
	for _, src := range s.sources {
		files = append(files, tabular.SourceFile{
			URL:         src.URL,
			Name:        src.Name,
			ContentType: src.ContentType,
			Checksum:    src.Checksum,
		})
	}
	return files, nil
}

// Download fetches every listed file into the release's landing directory
// and returns the raw batch. Files already landed with a matching checksum
// are not fetched again, keeping re-runs idempotent and cheap.
func (s *Source) Download(ctx context.Context, releaseID, batchID string, files []tabular.SourceFile) (*tabular.RawBatch, error) {
	dir := filepath.Join(s.cfg.LandingDir, releaseID, batchID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create landing dir")
	}

	batch := &tabular.RawBatch{
		ReleaseID: releaseID,
		BatchID:   batchID,
		Content:   make(map[string][]byte),
	}

	for _, file := range files {
		dst := filepath.Join(dir, file.Name)

		content, err := s.readLanded(dst, file.Checksum)
		if err != nil {
			if err := s.fetch(ctx, file.URL, dst); err != nil {
				return nil, errors.Wrapf(err, "failed to fetch %s", file.Name)
			}
			content, err = os.ReadFile(dst)
			if err != nil {
				return nil, errors.Wrapf(err, "failed to read landed file %s", file.Name)
			}
			if file.Checksum != "" && tabular.Checksum(content) != file.Checksum {
				return nil, errors.Newf("checksum mismatch for %s", file.Name)
			}
		}

		landed := file
		landed.Size = int64(len(content))
		if info, statErr := os.Stat(dst); statErr == nil {
			landed.LastModified = info.ModTime().UTC()
		}
		if landed.Checksum == "" {
			landed.Checksum = tabular.Checksum(content)
		}

		batch.Files = append(batch.Files, landed)
		batch.Content[file.Name] = content
	}

	s.logger.Infow("Release landed",
		"release", releaseID,
		"batch", batchID,
		"files", len(batch.Files),
		"dir", dir,
	)
	return batch, nil
}

// readLanded returns the previously landed content when it matches the
// expected checksum.
func (s *Source) readLanded(path, checksum string) ([]byte, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if checksum != "" && tabular.Checksum(content) != checksum {
		return nil, errors.Newf("stale landed file %s", path)
	}
	return content, nil
}

// fetch downloads one file with go-getter, honoring the rate limit and
// the configured timeout.
func (s *Source) fetch(ctx context.Context, url, dst string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	fetchCtx := ctx
	if s.cfg.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, time.Duration(s.cfg.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	client := &getter.Client{
		Ctx:     fetchCtx,
		Src:     url,
		Dst:     dst,
		Mode:    getter.ClientModeFile,
		Getters: s.getters,
	}

	s.logger.Debugw("Fetching source file", "url", url, "dst", dst)
	if err := client.Get(); err != nil {
		os.Remove(dst)
		return err
	}
	return nil
}
