// Package transfer streams a source URL to local disk in fixed-size chunks,
// reporting throttled progress and validating the actual byte count against
// the per-file ceiling and the caller's remaining-quota snapshot afterwards.
// The declared content-length may be absent, wrong, or exceeded by the
// stream, so the post-hoc checks are the authoritative ones.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/tgfetch/url-uploader-bot/internal/models"
)

const chunkSize = 1 << 20 // 1 MiB

// ProgressFunc receives throttled transfer progress. hasETA is false when
// the total size or current speed is unknown.
type ProgressFunc func(done, total int64, speed float64, eta time.Duration, hasETA bool)

// Error wraps a network or I/O failure during streaming.
type Error struct {
	Cause error
}

func (e *Error) Error() string { return fmt.Sprintf("transfer failed: %v", e.Cause) }
func (e *Error) Unwrap() error { return e.Cause }

// ErrCeilingExceeded reports a breach of the absolute per-file size ceiling.
var ErrCeilingExceeded = errors.New("file exceeds the per-file size ceiling")

// QuotaBreachError reports that the transferred byte count does not fit in
// the remaining daily budget.
type QuotaBreachError struct {
	Size      int64
	Remaining int64
}

func (e *QuotaBreachError) Error() string {
	return fmt.Sprintf("file of %s exceeds the remaining daily budget of %s",
		HumanReadable(e.Size), HumanReadable(e.Remaining))
}

type Engine struct {
	client   *http.Client
	interval time.Duration
	ceiling  int64
}

// NewEngine builds a transfer engine. The progress interval is floor-clamped
// to one second.
func NewEngine(proxyURL string, interval time.Duration, ceiling int64) *Engine {
	if interval < time.Second {
		interval = time.Second
	}
	transport := &http.Transport{Proxy: http.ProxyFromEnvironment}
	if proxyURL != "" {
		if parsed, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(parsed)
		} else {
			log.Printf("Warning: invalid PROXY_URL %q: %v", proxyURL, err)
		}
	}
	return &Engine{
		client:   &http.Client{Transport: transport},
		interval: interval,
		ceiling:  ceiling,
	}
}

// Download streams the URL to destPath. Progress is reported at most once
// per interval plus one final call with eta=0. On any failure, and on a
// ceiling or quota breach, the partial file is removed.
func (e *Engine) Download(ctx context.Context, rawURL, destPath string, remaining int64, limited bool, onProgress ProgressFunc) (*models.TransferResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &Error{Cause: err}
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, &Error{Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, &Error{Cause: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	total := resp.ContentLength
	if total < 0 {
		total = 0
	}

	f, err := os.Create(destPath)
	if err != nil {
		return nil, &Error{Cause: err}
	}

	var done int64
	start := time.Now()
	lastEmit := start
	buf := make([]byte, chunkSize)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				f.Close()
				os.Remove(destPath)
				return nil, &Error{Cause: werr}
			}
			done += int64(n)
			if now := time.Now(); now.Sub(lastEmit) >= e.interval {
				emitProgress(onProgress, done, total, start)
				lastEmit = now
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			f.Close()
			os.Remove(destPath)
			return nil, &Error{Cause: rerr}
		}
	}

	if err := f.Close(); err != nil {
		os.Remove(destPath)
		return nil, &Error{Cause: err}
	}

	elapsed := time.Since(start)
	var speed float64
	if elapsed.Seconds() > 0 {
		speed = float64(done) / elapsed.Seconds()
	}
	if onProgress != nil {
		onProgress(done, total, speed, 0, true)
	}

	if err := e.validateSize(done, remaining, limited); err != nil {
		os.Remove(destPath)
		return nil, err
	}

	return &models.TransferResult{
		LocalPath: destPath,
		ByteCount: done,
		Elapsed:   elapsed,
	}, nil
}

// ValidateFile applies the post-download ceiling and quota checks to a file
// produced outside the engine (the resolver's download path). A breach
// removes the file.
func (e *Engine) ValidateFile(path string, remaining int64, limited bool) (int64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, &Error{Cause: err}
	}
	if err := e.validateSize(fi.Size(), remaining, limited); err != nil {
		os.Remove(path)
		return 0, err
	}
	return fi.Size(), nil
}

func (e *Engine) validateSize(size, remaining int64, limited bool) error {
	if e.ceiling > 0 && size > e.ceiling {
		return ErrCeilingExceeded
	}
	if limited && size > remaining {
		return &QuotaBreachError{Size: size, Remaining: remaining}
	}
	return nil
}

func emitProgress(fn ProgressFunc, done, total int64, start time.Time) {
	if fn == nil {
		return
	}
	elapsed := time.Since(start).Seconds()
	var speed float64
	if elapsed > 0 {
		speed = float64(done) / elapsed
	}
	var eta time.Duration
	hasETA := false
	if speed > 0 && total > 0 {
		eta = time.Duration(float64(total-done) / speed * float64(time.Second))
		hasETA = true
	}
	fn(done, total, speed, eta, hasETA)
}
