package types

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestWithRequestID_GetRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-abc")
	if got := GetRequestID(ctx); got != "req-abc" {
		t.Errorf("GetRequestID() = %q, want %q", got, "req-abc")
	}
	if got := GetRequestID(context.Background()); got != "" {
		t.Errorf("GetRequestID(empty) = %q, want empty", got)
	}
}

func TestLoggerFrom(t *testing.T) {
	fallback := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	if LoggerFrom(context.Background(), fallback) != fallback {
		t.Fatal("expected fallback on empty context")
	}

	var buf bytes.Buffer
	scoped := slog.New(slog.NewTextHandler(&buf, nil)).With("request_id", "req-1")
	ctx := WithLogger(context.Background(), scoped)
	LoggerFrom(ctx, fallback).Info("hello")
	if !strings.Contains(buf.String(), "request_id=req-1") {
		t.Errorf("scoped logger not used: %q", buf.String())
	}
}
