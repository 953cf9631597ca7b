package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"

	appLog "chronogrid/internal/log"
)

// Default capture parameters. The height fits the default six weeks per
// view plus the header.
const (
	DefaultWidth      = 1280
	DefaultHeight     = 960
	DefaultTimeoutSec = 30

	// ReadySelector is set by /grid once every rendered week is in the DOM.
	ReadySelector = `[data-ready="true"]`
)

// Options defines parameters for a Chromium-based screenshot capture.
type Options struct {
	// URL to capture, e.g. "http://127.0.0.1:8080/grid".
	URL string

	// OutputPath is where the PNG screenshot is written.
	OutputPath string

	// Width and Height are the viewport dimensions in pixels. If zero,
	// DefaultWidth / DefaultHeight are used.
	Width  int
	Height int

	// Timeout bounds the entire capture operation.
	Timeout time.Duration
}

func (o *Options) normalize() error {
	if o.URL == "" {
		return fmt.Errorf("capture: URL is required")
	}
	if o.OutputPath == "" {
		return fmt.Errorf("capture: OutputPath is required")
	}
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Timeout <= 0 {
		o.Timeout = time.Duration(DefaultTimeoutSec) * time.Second
	}
	return nil
}

// GridPNG launches a headless Chromium via chromedp, opens the grid page,
// waits for it to report ready and writes a full-page PNG to
// opts.OutputPath. The file is replaced atomically so /preview.png never
// serves a half-written image.
func GridPNG(parentCtx context.Context, opts Options) error {
	if err := opts.normalize(); err != nil {
		return err
	}

	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	started := time.Now()
	var png []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(opts.URL),
		chromedp.WaitVisible(ReadySelector, chromedp.ByQuery),
		// Small extra delay to allow final paints.
		chromedp.Sleep(300 * time.Millisecond),
		chromedp.FullScreenshot(&png, 100),
	}
	if err := chromedp.Run(ctx, tasks); err != nil {
		return fmt.Errorf("capture: chromedp run failed: %w", err)
	}

	if err := writeAtomic(opts.OutputPath, png); err != nil {
		return fmt.Errorf("capture: failed to write PNG: %w", err)
	}
	appLog.Info("grid captured", "path", opts.OutputPath, "bytes", len(png), "took", time.Since(started).String())
	return nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".preview-*.png")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
