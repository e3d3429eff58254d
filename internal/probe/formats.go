package probe

import (
	"sort"

	"github.com/tgfetch/url-uploader-bot/internal/models"
)

// FilterByCeiling drops formats whose reported size exceeds the absolute
// per-file ceiling. Unknown sizes (0) are kept.
func FilterByCeiling(formats []models.MediaFormat, ceiling int64) []models.MediaFormat {
	if ceiling <= 0 {
		return formats
	}
	out := make([]models.MediaFormat, 0, len(formats))
	for _, f := range formats {
		if f.Size > 0 && f.Size > ceiling {
			continue
		}
		out = append(out, f)
	}
	return out
}

// FilterBySizeBudget drops formats that would not fit in today's remaining
// quota. If that would remove every option, the input list is returned
// unchanged: better to offer choices that get re-validated later than none.
func FilterBySizeBudget(formats []models.MediaFormat, remaining int64, limited bool) []models.MediaFormat {
	if !limited {
		return formats
	}
	out := make([]models.MediaFormat, 0, len(formats))
	for _, f := range formats {
		if f.Size > 0 && f.Size > remaining {
			continue
		}
		out = append(out, f)
	}
	if len(out) == 0 {
		return formats
	}
	return out
}

// SortByHeight orders formats by descending vertical resolution; unknown
// heights sort last.
func SortByHeight(formats []models.MediaFormat) {
	sort.SliceStable(formats, func(i, j int) bool {
		return formats[i].Height > formats[j].Height
	})
}
