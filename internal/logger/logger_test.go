package logger

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      Level
		want    zapcore.Level
		wantErr bool
	}{
		{LevelDebug, zapcore.DebugLevel, false},
		{"", zapcore.InfoLevel, false},
		{"WARN", zapcore.WarnLevel, false},
		{"warning", zapcore.WarnLevel, false},
		{LevelError, zapcore.ErrorLevel, false},
		{"verbose", zapcore.InfoLevel, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.in), func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("level = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "run.log")
	l, closeFn, err := New(Options{Level: LevelInfo, Path: path, Format: "json"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	l.Debug("hidden")
	l.Info("visible", zap.String("square", "e4"))
	_ = l.Sync()
	if err := closeFn(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	if !strings.Contains(out, `"msg":"visible"`) || !strings.Contains(out, `"square":"e4"`) {
		t.Errorf("log file missing entry: %s", out)
	}
	if strings.Contains(out, "hidden") {
		t.Error("debug entry written at info level")
	}
}

func TestNewRejectsFormat(t *testing.T) {
	if _, _, err := New(Options{Format: "xml"}); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestGetDefaultsToNop(t *testing.T) {
	if Get() == nil {
		t.Fatal("Get returned nil")
	}
}

func TestStartOperation(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := zap.New(core)

	done := StartOperation(l, "analyze", zap.String("source", "game.mp4"))
	done(nil)
	fail := StartOperation(l, "analyze")
	fail(errors.New("decode failed"))

	entries := logs.All()
	if len(entries) != 4 {
		t.Fatalf("entries = %d, want 4", len(entries))
	}
	if entries[1].Message != "operation_complete" || entries[3].Message != "operation_failed" {
		t.Errorf("messages = %q, %q", entries[1].Message, entries[3].Message)
	}
	if entries[3].Level != zapcore.ErrorLevel {
		t.Errorf("failure logged at %v", entries[3].Level)
	}
	if entries[1].ContextMap()["source"] != "game.mp4" {
		t.Errorf("fields not carried: %v", entries[1].ContextMap())
	}
}
