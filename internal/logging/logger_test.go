package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"off", zerolog.Disabled},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}
	for _, tc := range tests {
		if got := parseLevel(tc.input); got != tc.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
	if ValidLevel("bogus") || !ValidLevel("warn") {
		t.Errorf("ValidLevel mismatch")
	}
}

func TestInitWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})
	defer Init(DefaultConfig())

	l := WithComponent("sqlite")
	l.Debug().Str("user_id", "u1").Msg("loaded events")

	out := buf.String()
	for _, want := range []string{`"level":"debug"`, `"component":"sqlite"`, `"user_id":"u1"`, `"message":"loaded events"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("output %s missing %s", out, want)
		}
	}
}

func TestCtxAddsRequestID(t *testing.T) {
	var buf bytes.Buffer
	prev := Logger()
	SetLogger(NewTestLogger(&buf))
	defer SetLogger(prev)
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	ctx := ContextWithRequestID(context.Background(), "req-123")
	Ctx(ctx).Info().Msg("handled")

	if !strings.Contains(buf.String(), `"request_id":"req-123"`) {
		t.Fatalf("request id missing from %s", buf.String())
	}

	buf.Reset()
	Ctx(context.Background()).Info().Msg("no id")
	if strings.Contains(buf.String(), "request_id") {
		t.Fatalf("unexpected request id in %s", buf.String())
	}
}

func TestCtxPrefersStoredLogger(t *testing.T) {
	var buf bytes.Buffer
	ctx := ContextWithLogger(context.Background(), NewTestLogger(&buf).With().Str("component", "rest").Logger())
	Ctx(ctx).Warn().Msg("slow request")

	if !strings.Contains(buf.String(), `"component":"rest"`) {
		t.Fatalf("stored logger not used: %s", buf.String())
	}
	if NewRequestID() == NewRequestID() {
		t.Fatalf("request ids must be unique")
	}
}
