// Package engineconfig loads the YAML document describing speedcore's
// engine-wide tunables, mirroring the config-file convention in
// internal/config of the example pack's IP-selector tool.
package engineconfig

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/speedcore-project/speedcore/spec"
)

// Config holds the knobs a deployment may want to override from their
// spec.md defaults.
type Config struct {
	MinServerVersion    float64 `yaml:"min_server_version"`
	LatencySamples      int     `yaml:"latency_samples"`
	JitterSamples       int     `yaml:"jitter_samples"`
	SelectorSampleSize  int     `yaml:"selector_sample_size"`
	HTTPTimeoutSeconds  int     `yaml:"http_timeout_seconds"`
	TrimSkipLowQuartile bool    `yaml:"trim_skip_low_quartile"`
	TrimDropHighest     int     `yaml:"trim_drop_highest"`
	// PerWorkerRateCapBps sets, in bits per second, the refill rate of each
	// throughput worker's golang.org/x/time/rate limiter, which spaces out
	// the start of its transfers (see throughput.Run). 0 disables it.
	PerWorkerRateCapBps float64 `yaml:"per_worker_rate_cap_bps"`
}

// Default returns the configuration matching spec.md's hardcoded defaults.
func Default() Config {
	return Config{
		MinServerVersion:    spec.MinSupportedServerVersion,
		LatencySamples:      spec.LatencySampleSize,
		JitterSamples:       spec.DefaultJitterSampleSize,
		SelectorSampleSize:  5,
		HTTPTimeoutSeconds:  int(spec.DefaultHTTPTimeout.Seconds()),
		TrimSkipLowQuartile: false,
		TrimDropHighest:     0,
	}
}

// Load reads and parses a YAML config file at path over Default()'s values:
// a field absent from the document keeps its default, and a field written in
// the document, even as zero, takes the written value.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
