package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"", LevelInfo, false},
		{"info", LevelInfo, false},
		{"DEBUG", LevelDebug, false},
		{" warn ", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"trace", LevelTrace, false},
		{"loud", LevelInfo, true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestHasFmtVerb(t *testing.T) {
	if !hasFmtVerb("value is %d") {
		t.Errorf("expected %q to be detected", "%d")
	}
	if hasFmtVerb("100%% done") {
		t.Error("escaped percent should not count as a verb")
	}
	if hasFmtVerb("plain message") {
		t.Error("plain message has no verbs")
	}
}

func TestLoggingFormats(t *testing.T) {
	var buf bytes.Buffer
	Init(&LogConfig{Level: LevelDebug, Output: &buf})
	defer Init(nil)

	L_info("model %s ready", "llama3")
	L_warn("fallback", "model", "gpt-4o")
	L_debug("plain")

	out := buf.String()
	for _, want := range []string{"model llama3 ready", "fallback", "model=gpt-4o", "plain"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestSetLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	Init(&LogConfig{Level: LevelInfo, Output: &buf})
	defer Init(nil)

	SetLevel(LevelError)
	L_info("hidden")
	L_error("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line should be filtered:\n%s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("error line missing:\n%s", out)
	}
}
