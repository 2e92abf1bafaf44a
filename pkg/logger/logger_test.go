package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewWritesStructuredJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", JSON: true, Output: &buf})

	log.WithFields(Fields{"component": "test"}).Info("hello", Fields{"n": 1})

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if line["msg"] != "hello" {
		t.Errorf("msg = %v", line["msg"])
	}
	if line["component"] != "test" {
		t.Errorf("component = %v", line["component"])
	}
	if line["n"] != float64(1) {
		t.Errorf("n = %v", line["n"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Output: &buf})

	log.Info("quiet", nil)
	if buf.Len() != 0 {
		t.Errorf("info line emitted below warn level: %q", buf.String())
	}

	log.Warn("loud", nil)
	if !strings.Contains(buf.String(), "loud") {
		t.Errorf("warn line missing: %q", buf.String())
	}
}

func TestBadLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "nonsense", Output: &buf})

	log.Debug("hidden", nil)
	if buf.Len() != 0 {
		t.Errorf("debug line emitted at info level: %q", buf.String())
	}
	log.Info("shown", nil)
	if buf.Len() == 0 {
		t.Error("info line missing")
	}
}

func TestNopNeverPanics(t *testing.T) {
	log := Nop()
	log.Debug("x", nil)
	log.Info("x", Fields{"k": "v"})
	log.Warn("x", nil)
	log.Error("x", nil)
	log.WithFields(Fields{"k": "v"}).Info("x", nil)
}
