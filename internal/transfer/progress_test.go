package transfer

import (
	"strings"
	"testing"
	"time"
)

func TestHumanReadable(t *testing.T) {
	tests := []struct {
		size     int64
		expected string
	}{
		{0, "0B"},
		{512, "512B"},
		{1024, "1KB"},
		{1536, "1.5KB"},
		{1024 * 1024, "1MB"},
		{800 * 1024 * 1024, "800MB"},
		{1536 * 1024 * 1024, "1.5GB"},
		{2 * 1024 * 1024 * 1024, "2GB"},
	}

	for _, test := range tests {
		if got := HumanReadable(test.size); got != test.expected {
			t.Errorf("HumanReadable(%d) = %q, expected %q", test.size, got, test.expected)
		}
	}
}

func TestFormatETA(t *testing.T) {
	tests := []struct {
		d        time.Duration
		expected string
	}{
		{30 * time.Second, "30s"},
		{90 * time.Second, "1m 30s"},
		{0, "0s"},
		{-time.Second, "0s"},
	}

	for _, test := range tests {
		if got := FormatETA(test.d); got != test.expected {
			t.Errorf("FormatETA(%v) = %q, expected %q", test.d, got, test.expected)
		}
	}
}

func TestProgressText(t *testing.T) {
	text := ProgressText("Downloading...", 512, 1024, 256, 2*time.Second, true)

	if !strings.HasPrefix(text, "Downloading... 50%") {
		t.Errorf("unexpected prefix line: %q", text)
	}
	if !strings.Contains(text, "Done: 512B / 1KB") {
		t.Errorf("missing Done line: %q", text)
	}
	if !strings.Contains(text, "Speed: 256B/s") {
		t.Errorf("missing Speed line: %q", text)
	}
	if !strings.Contains(text, "ETA: 2s") {
		t.Errorf("missing ETA line: %q", text)
	}
}

func TestProgressText_UnknownTotal(t *testing.T) {
	text := ProgressText("Downloading...", 512, 0, 0, 0, false)

	if !strings.HasPrefix(text, "Downloading... 0%") {
		t.Errorf("unknown total should render 0%%: %q", text)
	}
	if strings.Contains(text, "Speed:") || strings.Contains(text, "ETA:") {
		t.Errorf("speed/eta lines should be omitted: %q", text)
	}
}
