// Package resolver adapts yt-dlp as the external format-resolution service:
// metadata extraction without download, and format-pinned downloads with
// throttled progress.
package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/lrstanley/go-ytdlp"

	"github.com/tgfetch/url-uploader-bot/internal/models"
	"github.com/tgfetch/url-uploader-bot/internal/probe"
	"github.com/tgfetch/url-uploader-bot/internal/transfer"
)

var allowedExts = map[string]bool{"mp4": true, "webm": true, "mkv": true}

type Service struct {
	proxyURL         string
	cookiesFile      string
	progressInterval time.Duration
}

func New(proxyURL, cookiesFile string, progressInterval time.Duration) *Service {
	if progressInterval < time.Second {
		progressInterval = time.Second
	}
	return &Service{
		proxyURL:         proxyURL,
		cookiesFile:      cookiesFile,
		progressInterval: progressInterval,
	}
}

// Install fetches the yt-dlp binary if it is not already available.
func Install(ctx context.Context) error {
	_, err := ytdlp.Install(ctx, nil)
	return err
}

type rawInfo struct {
	Title     string      `json:"title"`
	Thumbnail string      `json:"thumbnail"`
	Formats   []rawFormat `json:"formats"`
}

type rawFormat struct {
	FormatID       string `json:"format_id"`
	Ext            string `json:"ext"`
	Height         int    `json:"height"`
	Vcodec         string `json:"vcodec"`
	Acodec         string `json:"acodec"`
	Filesize       int64  `json:"filesize"`
	FilesizeApprox int64  `json:"filesize_approx"`
}

// Resolve extracts title, thumbnail and the usable formats for a URL without
// downloading anything. Only entries with both audio and video and a known
// container extension are kept.
func (s *Service) Resolve(ctx context.Context, url string) (*probe.MediaInfo, error) {
	dl := ytdlp.New().
		SkipDownload().
		DumpSingleJSON().
		NoPlaylist().
		Quiet()
	s.applyNetworkOptions(dl)

	res, err := dl.Run(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("yt-dlp resolution failed: %v", err)
	}

	var info rawInfo
	if err := json.Unmarshal([]byte(res.Stdout), &info); err != nil {
		return nil, fmt.Errorf("failed to parse yt-dlp output: %v", err)
	}

	return convertInfo(info), nil
}

func convertInfo(info rawInfo) *probe.MediaInfo {
	formats := make([]models.MediaFormat, 0, len(info.Formats))
	for _, f := range info.Formats {
		if f.Vcodec == "none" || f.Acodec == "none" {
			continue
		}
		if !allowedExts[f.Ext] {
			continue
		}
		size := f.Filesize
		if size == 0 {
			size = f.FilesizeApprox
		}
		formats = append(formats, models.MediaFormat{
			ID:     f.FormatID,
			Ext:    f.Ext,
			Height: f.Height,
			Size:   size,
		})
	}

	return &probe.MediaInfo{
		Title:        info.Title,
		ThumbnailURL: info.Thumbnail,
		Formats:      formats,
	}
}

// Download fetches the URL with the chosen format id to outPath and returns
// the path of the produced file. yt-dlp may append a container extension
// when merging, so the candidates are probed after the run.
func (s *Service) Download(ctx context.Context, url, formatID, outPath string, onProgress transfer.ProgressFunc) (string, error) {
	dl := ytdlp.New().
		Format(formatID).
		Output(outPath).
		NoPlaylist().
		ForceOverwrites()
	s.applyNetworkOptions(dl)

	if onProgress != nil {
		dl.ProgressFunc(s.progressInterval, func(update ytdlp.ProgressUpdate) {
			done := int64(update.DownloadedBytes)
			total := int64(update.TotalBytes)
			var speed float64
			if !update.Started.IsZero() {
				if elapsed := time.Since(update.Started).Seconds(); elapsed > 0 {
					speed = float64(done) / elapsed
				}
			}
			eta := update.ETA()
			onProgress(done, total, speed, eta, total > 0 && eta > 0)
		})
	}

	if _, err := dl.Run(ctx, url); err != nil {
		return "", fmt.Errorf("yt-dlp download failed: %v", err)
	}

	if _, err := os.Stat(outPath); err == nil {
		return outPath, nil
	}
	for _, ext := range []string{".mp4", ".mkv", ".webm"} {
		if _, err := os.Stat(outPath + ext); err == nil {
			return outPath + ext, nil
		}
	}
	return "", fmt.Errorf("file not found after yt-dlp download: %s", outPath)
}

func (s *Service) applyNetworkOptions(dl *ytdlp.Command) {
	if s.proxyURL != "" {
		dl.Proxy(s.proxyURL)
	}
	if s.cookiesFile != "" {
		if _, err := os.Stat(s.cookiesFile); err == nil {
			dl.Cookies(s.cookiesFile)
		} else if !os.IsNotExist(err) {
			log.Printf("Warning: cookies file %s not readable: %v", s.cookiesFile, err)
		}
	}
}
