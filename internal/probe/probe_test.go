package probe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tgfetch/url-uploader-bot/internal/models"
)

const gib = int64(1024 * 1024 * 1024)

type stubResolver struct {
	info *MediaInfo
	err  error
}

func (s *stubResolver) Resolve(ctx context.Context, url string) (*MediaInfo, error) {
	return s.info, s.err
}

func TestFilterBySizeBudget_Scenario(t *testing.T) {
	// 1080p/1.5GB, 720p/800MB, 480p/400MB against a 900MB remaining budget.
	mb := int64(1024 * 1024)
	formats := []models.MediaFormat{
		{ID: "f1", Ext: "mp4", Height: 1080, Size: 1536 * mb},
		{ID: "f2", Ext: "mp4", Height: 720, Size: 800 * mb},
		{ID: "f3", Ext: "mp4", Height: 480, Size: 400 * mb},
	}

	filtered := FilterBySizeBudget(formats, 900*mb, true)
	SortByHeight(filtered)

	if len(filtered) != 2 {
		t.Fatalf("expected 2 formats, got %d", len(filtered))
	}
	if filtered[0].Height != 720 || filtered[1].Height != 480 {
		t.Errorf("expected [720, 480], got [%d, %d]", filtered[0].Height, filtered[1].Height)
	}
}

func TestFilterBySizeBudget_FallbackWhenAllDropped(t *testing.T) {
	formats := []models.MediaFormat{
		{ID: "f1", Height: 1080, Size: 5 * gib},
		{ID: "f2", Height: 720, Size: 3 * gib},
	}

	filtered := FilterBySizeBudget(formats, gib, true)
	if len(filtered) != 2 {
		t.Errorf("expected fallback to the unfiltered list, got %d formats", len(filtered))
	}
}

func TestFilterByCeiling(t *testing.T) {
	formats := []models.MediaFormat{
		{ID: "big", Size: 3 * gib},
		{ID: "ok", Size: gib},
		{ID: "unknown", Size: 0},
	}

	filtered := FilterByCeiling(formats, 2*gib)
	if len(filtered) != 2 {
		t.Fatalf("expected 2 formats, got %d", len(filtered))
	}
	for _, f := range filtered {
		if f.ID == "big" {
			t.Error("oversized format survived the ceiling filter")
		}
	}
}

func TestSortByHeight_UnknownLast(t *testing.T) {
	formats := []models.MediaFormat{
		{ID: "a", Height: 0},
		{ID: "b", Height: 720},
		{ID: "c", Height: 1080},
	}

	SortByHeight(formats)

	if formats[0].Height != 1080 || formats[1].Height != 720 || formats[2].Height != 0 {
		t.Errorf("unexpected order: %v", formats)
	}
}

func TestHead(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("expected HEAD request, got %s", r.Method)
		}
		w.Header().Set("Content-Type", "video/mp4")
		w.Header().Set("Content-Disposition", `attachment; filename="clip.mp4"`)
		w.Header().Set("Content-Length", "1024")
	}))
	defer srv.Close()

	p := NewProber(&stubResolver{err: errors.New("unused")}, "", 2*gib)
	info := p.Head(context.Background(), srv.URL)

	if info.Size != 1024 {
		t.Errorf("Size = %d, expected 1024", info.Size)
	}
	if info.ContentType != "video/mp4" {
		t.Errorf("ContentType = %q", info.ContentType)
	}
	if info.Filename != "clip.mp4" {
		t.Errorf("Filename = %q, expected clip.mp4", info.Filename)
	}
}

func TestHead_FailureDegrades(t *testing.T) {
	p := NewProber(&stubResolver{}, "", 2*gib)
	info := p.Head(context.Background(), "http://127.0.0.1:1/nope")

	if info.Size != 0 || info.Filename != "" {
		t.Errorf("expected zero HeadInfo on failure, got %+v", info)
	}
}

func TestProbe_MultiFormat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "2048")
	}))
	defer srv.Close()

	res := &stubResolver{info: &MediaInfo{
		Title:        "Some Video",
		ThumbnailURL: "https://cdn.example.com/t.jpg",
		Formats: []models.MediaFormat{
			{ID: "22", Ext: "mp4", Height: 720, Size: 100},
			{ID: "37", Ext: "mp4", Height: 1080, Size: 200},
		},
	}}

	p := NewProber(res, "", 2*gib)
	result := p.Probe(context.Background(), srv.URL, 0, false)

	if result.Kind != models.SourceMultiFormat {
		t.Fatalf("Kind = %v, expected multi-format", result.Kind)
	}
	if result.Title != "Some Video" {
		t.Errorf("Title = %q", result.Title)
	}
	if result.Formats[0].Height != 1080 {
		t.Errorf("expected highest resolution first, got %d", result.Formats[0].Height)
	}
	if result.Head.Size != 2048 {
		t.Errorf("head size hint lost: %d", result.Head.Size)
	}
}

func TestProbe_DirectFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="report.pdf"`)
	}))
	defer srv.Close()

	p := NewProber(&stubResolver{err: errors.New("no extractors matched")}, "", 2*gib)
	result := p.Probe(context.Background(), srv.URL, 0, false)

	if result.Kind != models.SourceDirectFile {
		t.Fatalf("Kind = %v, expected direct", result.Kind)
	}
	if result.Filename != "report.pdf" {
		t.Errorf("Filename = %q, expected report.pdf", result.Filename)
	}
}

func TestProbe_DirectFallbackFromURLPath(t *testing.T) {
	p := NewProber(&stubResolver{err: errors.New("nope")}, "", 2*gib)
	result := p.Probe(context.Background(), "http://127.0.0.1:1/archive.zip", 0, false)

	if result.Kind != models.SourceDirectFile {
		t.Fatalf("Kind = %v, expected direct", result.Kind)
	}
	if result.Filename != "archive.zip" {
		t.Errorf("Filename = %q, expected archive.zip", result.Filename)
	}
}
