// Package logging contains the structured logger shared across speedcore,
// set up in a Docker-friendly way.
package logging

import (
	"os"

	"github.com/apex/log"
	"github.com/apex/log/handlers/json"
)

// Logger logs messages on standard error in structured JSON format, to
// simplify processing. Emitting logs on standard error is consistent with
// standard practice when dockerising an Apache or Nginx instance.
var Logger = log.Logger{
	Handler: json.New(os.Stderr),
	Level:   log.InfoLevel,
}

// WithField attaches a single field to a log entry without requiring the
// caller to import apex/log directly.
func WithField(key string, value interface{}) *log.Entry {
	return Logger.WithField(key, value)
}
