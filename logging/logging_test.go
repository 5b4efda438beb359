package logging

import (
	"testing"

	"github.com/apex/log"
)

func TestWithFieldReturnsEntry(t *testing.T) {
	entry := WithField("component", "test")
	if entry == nil {
		t.Fatal("WithField() returned nil")
	}
}

func TestLoggerDefaultLevel(t *testing.T) {
	if Logger.Level != log.InfoLevel {
		t.Errorf("default Logger.Level = %v, want %v", Logger.Level, log.InfoLevel)
	}
}
