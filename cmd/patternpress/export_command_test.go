package main

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"patternpress/internal/api"
)

func TestWriteDataURI(t *testing.T) {
	payload := []byte("fake png bytes")
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(payload)
	target := filepath.Join(t.TempDir(), "out.png")

	if err := writeDataURI(target, uri); err != nil {
		t.Fatalf("writeDataURI: %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != string(payload) {
		t.Fatal("decoded payload mismatch")
	}
}

func TestWriteDataURIBareBase64(t *testing.T) {
	payload := []byte{0x89, 0x50, 0x4e, 0x47}
	target := filepath.Join(t.TempDir(), "out.png")

	if err := writeDataURI(target, base64.StdEncoding.EncodeToString(payload)); err != nil {
		t.Fatalf("writeDataURI: %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if len(data) != len(payload) {
		t.Fatalf("wrote %d bytes, want %d", len(data), len(payload))
	}
}

func TestWriteDataURIRejectsGarbage(t *testing.T) {
	if err := writeDataURI(filepath.Join(t.TempDir(), "out.png"), "!!!not base64!!!"); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestQueueRowsPreferErrorDetail(t *testing.T) {
	rows := queueRows([]api.QueueJob{
		{ID: 1, SourceName: "ok.png", Status: "completed", ProgressPercent: 100, ProgressMessage: "Complete"},
		{ID: 2, SourceName: "bad.png", Status: "failed", ErrorMessage: "editor crashed", ProgressMessage: "Rendering"},
	})
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}
	if rows[0][4] != "Complete" {
		t.Errorf("completed detail = %q", rows[0][4])
	}
	if rows[1][4] != "editor crashed" {
		t.Errorf("failed detail = %q, want error message", rows[1][4])
	}
	if rows[1][2] != "Failed" {
		t.Errorf("status label = %q, want Failed", rows[1][2])
	}
}
