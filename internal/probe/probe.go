// Package probe resolves a URL into either a direct-file descriptor or a
// list of selectable encodings, merging a lightweight header probe with the
// external format resolver.
package probe

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/tgfetch/url-uploader-bot/internal/models"
)

const headTimeout = 10 * time.Second

// HeadInfo is what the header-only probe learned. Zero values mean unknown;
// probe failures are swallowed and reported as unknown, never fatal.
type HeadInfo struct {
	Size        int64
	ContentType string
	Filename    string
}

// MediaInfo is the resolver's view of a URL.
type MediaInfo struct {
	Title        string
	ThumbnailURL string
	Formats      []models.MediaFormat
}

// FormatResolver is the external format-resolution service.
type FormatResolver interface {
	Resolve(ctx context.Context, url string) (*MediaInfo, error)
}

// Result is the merged probe outcome. For SourceMultiFormat the resolver's
// metadata supersedes the header probe, which remains only as a size hint.
type Result struct {
	Kind         models.SourceKind
	Head         HeadInfo
	Title        string
	ThumbnailURL string
	Filename     string // direct-file candidate, already sanitized
	Formats      []models.MediaFormat
}

type Prober struct {
	client   *http.Client
	resolver FormatResolver
	ceiling  int64
}

func NewProber(resolver FormatResolver, proxyURL string, ceiling int64) *Prober {
	transport := &http.Transport{Proxy: http.ProxyFromEnvironment}
	if proxyURL != "" {
		if parsed, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(parsed)
		} else {
			log.Printf("Warning: invalid PROXY_URL %q: %v", proxyURL, err)
		}
	}
	return &Prober{
		client: &http.Client{
			Timeout:   headTimeout,
			Transport: transport,
		},
		resolver: resolver,
		ceiling:  ceiling,
	}
}

// Head issues a redirect-following HEAD request. Any failure degrades to an
// empty HeadInfo.
func (p *Prober) Head(ctx context.Context, rawURL string) HeadInfo {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return HeadInfo{}
	}
	resp, err := p.client.Do(req)
	if err != nil {
		log.Printf("Head probe failed for %s: %v", rawURL, err)
		return HeadInfo{}
	}
	defer resp.Body.Close()

	info := HeadInfo{
		ContentType: resp.Header.Get("Content-Type"),
		Filename:    ParseContentDisposition(resp.Header.Get("Content-Disposition")),
	}
	if resp.ContentLength > 0 {
		info.Size = resp.ContentLength
	}
	return info
}

// Probe runs the header probe and the format resolver and merges the two.
// remaining/limited describe today's size budget for the secondary filter.
func (p *Prober) Probe(ctx context.Context, rawURL string, remaining int64, limited bool) *Result {
	head := p.Head(ctx, rawURL)

	info, err := p.resolver.Resolve(ctx, rawURL)
	if err != nil {
		log.Printf("Format resolution failed for %s, falling back to direct: %v", rawURL, err)
	}
	if info != nil && len(info.Formats) > 0 {
		formats := FilterByCeiling(info.Formats, p.ceiling)
		formats = FilterBySizeBudget(formats, remaining, limited)
		SortByHeight(formats)
		if len(formats) > 0 {
			title := info.Title
			if title == "" {
				title = head.Filename
			}
			if title == "" {
				title = "video"
			}
			return &Result{
				Kind:         models.SourceMultiFormat,
				Head:         head,
				Title:        title,
				ThumbnailURL: info.ThumbnailURL,
				Formats:      formats,
			}
		}
	}

	name := head.Filename
	if name == "" {
		name = FilenameFromURL(rawURL)
	} else if len(name) > maxURLNameLen {
		name = LongURLFilename
	}
	return &Result{
		Kind:     models.SourceDirectFile,
		Head:     head,
		Title:    name,
		Filename: SanitizeFilename(name),
	}
}
