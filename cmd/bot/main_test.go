package main

import (
	"os"
	"testing"

	"github.com/tgfetch/url-uploader-bot/internal/configuration"
)

func TestMain(m *testing.M) {
	// Setup code here (runs once before all tests in this package)
	println("Setting up tests for main package...")

	exitCode := m.Run()

	println("Tearing down tests for main package...")
	os.Exit(exitCode)
}

func TestConfigDefaultsLoad(t *testing.T) {
	// Smoke test: wiring depends on Load never returning nil sections.
	cfg := configuration.Load()
	if cfg.Server.Port == "" {
		t.Error("server port default missing")
	}
	if cfg.Limits.MaxFileSize <= 0 {
		t.Error("per-file ceiling default missing")
	}
	if cfg.DownloadDir == "" {
		t.Error("download dir default missing")
	}
}
