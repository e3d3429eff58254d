package upload

import (
	"testing"

	"github.com/tgfetch/url-uploader-bot/internal/models"
)

func TestEffectiveUploadType(t *testing.T) {
	tests := []struct {
		name     string
		prefType string
		fileName string
		expected string
	}{
		{"video pref, video file", models.UploadTypeVideo, "movie.mp4", models.UploadTypeVideo},
		{"video pref, uppercase ext", models.UploadTypeVideo, "MOVIE.MKV", models.UploadTypeVideo},
		{"video pref, non-video file", models.UploadTypeVideo, "archive.zip", models.UploadTypeDocument},
		{"document pref, video file", models.UploadTypeDocument, "movie.mp4", models.UploadTypeDocument},
		{"no pref set", "", "movie.mp4", models.UploadTypeDocument},
	}
	for _, test := range tests {
		prefs := models.Preferences{UploadType: test.prefType}
		if got := EffectiveUploadType(prefs, test.fileName); got != test.expected {
			t.Errorf("%s: EffectiveUploadType = %q, expected %q", test.name, got, test.expected)
		}
	}
}
