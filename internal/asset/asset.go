// Package asset decides what poster and thumbnail URL gets persisted for a
// movie. The default keeps upstream URLs; the resize policy mirrors images
// locally at a bounded width.
package asset

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/dustin/go-humanize"
	"github.com/phimhub/ingest/internal/util"
)

// Kind names the image slot
type Kind string

const (
	KindPoster Kind = "poster"
	KindThumb  Kind = "thumb"
)

// Policy maps an upstream image URL to the URL to persist. On failure it
// returns src together with the error, so callers can always use the URL.
type Policy interface {
	Process(ctx context.Context, movieSlug string, kind Kind, src string) (string, error)
}

// Passthrough keeps upstream URLs untouched
type Passthrough struct{}

func (Passthrough) Process(ctx context.Context, movieSlug string, kind Kind, src string) (string, error) {
	return src, nil
}

// ResizeConfig configures the Resize policy
type ResizeConfig struct {
	Dir          string
	PublicPrefix string
	MaxWidth     int
	Quality      int
	MaxBytes     int64
	Timeout      time.Duration
}

// Resize downloads each image, scales it down to MaxWidth and stores it as
// JPEG under Dir. Images already on disk are not fetched again.
type Resize struct {
	cfg    ResizeConfig
	client *http.Client
}

// NewResize validates cfg and prepares the output directory
func NewResize(cfg ResizeConfig) (*Resize, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("%w: assets.dir is required for resize mode", util.ErrInvalidConfig)
	}
	if cfg.MaxWidth <= 0 {
		cfg.MaxWidth = 600
	}
	if cfg.Quality <= 0 || cfg.Quality > 100 {
		cfg.Quality = 85
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 10 << 20
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create asset dir: %w", err)
	}
	return &Resize{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}, nil
}

func (r *Resize) Process(ctx context.Context, movieSlug string, kind Kind, src string) (string, error) {
	if src == "" || movieSlug == "" {
		return src, nil
	}

	name := fmt.Sprintf("%s-%s.jpg", movieSlug, kind)
	if filepath.Base(name) != name || strings.HasPrefix(name, ".") {
		return src, fmt.Errorf("%w: unsafe asset name %q", util.ErrInvalidInput, movieSlug)
	}
	dest := filepath.Join(r.cfg.Dir, name)
	public := r.publicURL(name)

	if _, err := os.Stat(dest); err == nil {
		return public, nil
	}

	if err := r.fetchAndResize(ctx, src, dest); err != nil {
		return src, fmt.Errorf("%s %s: %w", kind, movieSlug, err)
	}
	return public, nil
}

func (r *Resize) publicURL(name string) string {
	if r.cfg.PublicPrefix == "" {
		return name
	}
	return strings.TrimRight(r.cfg.PublicPrefix, "/") + "/" + name
}

func (r *Resize) fetchAndResize(ctx context.Context, src, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", src, resp.StatusCode)
	}

	body := io.LimitReader(resp.Body, r.cfg.MaxBytes+1)
	img, err := imaging.Decode(&countingReader{r: body, max: r.cfg.MaxBytes}, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	if img.Bounds().Dx() > r.cfg.MaxWidth {
		img = imaging.Resize(img, r.cfg.MaxWidth, 0, imaging.Lanczos)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".asset-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := imaging.Encode(tmp, img, imaging.JPEG, imaging.JPEGQuality(r.cfg.Quality)); err != nil {
		tmp.Close()
		return fmt.Errorf("encode: %w", err)
	}
	info, err := tmp.Stat()
	if err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return err
	}

	util.DebugLog("asset: %s -> %s (%s)", src, filepath.Base(dest), humanize.Bytes(uint64(info.Size())))
	return nil
}

// countingReader fails once more than max bytes were read
type countingReader struct {
	r   io.Reader
	n   int64
	max int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	if c.n > c.max {
		return n, fmt.Errorf("image larger than %s", humanize.Bytes(uint64(c.max)))
	}
	return n, err
}
