package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"

	appLog "evcal/internal/log"
)

const (
	DefaultWidth   = 800
	DefaultHeight  = 480
	DefaultTimeout = 30 * time.Second

	readySelector = `[data-ready="true"]`
)

// Options describes one screenshot of the month page.
type Options struct {
	// URL to capture, e.g. "http://127.0.0.1:8080/calendar".
	URL string
	// OutputPath is where the PNG is written.
	OutputPath string

	Width   int
	Height  int
	Timeout time.Duration
}

func (o *Options) normalize() error {
	if o.URL == "" {
		return errors.New("capture: URL is required")
	}
	if o.OutputPath == "" {
		return errors.New("capture: OutputPath is required")
	}
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return nil
}

// CalendarPNG opens opts.URL in headless Chromium, waits until the page
// marks itself ready and writes a full-page PNG to opts.OutputPath.
func CalendarPNG(parent context.Context, opts Options) error {
	if err := opts.normalize(); err != nil {
		return err
	}

	ctx, cancel := chromedp.NewContext(parent)
	defer cancel()
	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	var png []byte
	err := chromedp.Run(ctx,
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(opts.URL),
		chromedp.WaitVisible(readySelector, chromedp.ByQuery),
		chromedp.FullScreenshot(&png, 100),
	)
	if err != nil {
		return fmt.Errorf("capture: chromedp run failed: %w", err)
	}
	return writeFileAtomic(opts.OutputPath, png)
}

// Hook adapts a capture to the refresh scheduler: failures are logged
// and never stop the schedule.
func Hook(opts Options) func(ctx context.Context) {
	return func(ctx context.Context) {
		start := time.Now()
		if err := CalendarPNG(ctx, opts); err != nil {
			appLog.Error("calendar capture failed", err, "url", opts.URL)
			return
		}
		appLog.Info("calendar captured", "output", opts.OutputPath, "took", time.Since(start))
	}
}

// writeFileAtomic keeps /preview.png from ever serving a half-written file.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".preview-*.png")
	if err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("capture: failed to write PNG: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}
