// Package profile chooses download/upload TestConfig pairs from a preflight
// speed measurement (spec.md §4.6, bit-exact table in spec.md §6).
package profile

import "github.com/speedcore-project/speedcore/model"

// Preflight is the fixed configuration used for the preflight download that
// feeds Select.
var Preflight = model.TestConfig{
	StartSize:     600000,
	MaxSize:       2000000,
	IncrSize:      125000,
	BufferSize:    4096,
	MinTestTimeMs: 10000,
	Concurrency:   2,
	Label:         "preflight",
}

var (
	slowDownload = model.TestConfig{
		StartSize: 100000, MaxSize: 5000000, IncrSize: 100000,
		BufferSize: 4096, MinTestTimeMs: 20000, Concurrency: 2,
		Label: "slow",
	}
	slowUpload = model.TestConfig{
		StartSize: 50000, MaxSize: 3500000, IncrSize: 50000,
		BufferSize: 4096, MinTestTimeMs: 20000, Concurrency: 2,
		Label: "slow",
	}
	narrowDownload = model.TestConfig{
		StartSize: 1000000, MaxSize: 100000000, IncrSize: 500000,
		BufferSize: 16384, MinTestTimeMs: 20000, Concurrency: 4,
		Label: "narrow",
	}
	narrowUpload = model.TestConfig{
		StartSize: 500000, MaxSize: 70000000, IncrSize: 250000,
		BufferSize: 16384, MinTestTimeMs: 20000, Concurrency: 4,
		Label: "narrow",
	}
	broadbandDownload = model.TestConfig{
		StartSize: 2500000, MaxSize: 100000000, IncrSize: 750000,
		BufferSize: 65536, MinTestTimeMs: 20000, Concurrency: 16,
		Label: "broadband",
	}
	broadbandUpload = model.TestConfig{
		StartSize: 1250000, MaxSize: 70000000, IncrSize: 375000,
		BufferSize: 65536, MinTestTimeMs: 20000, Concurrency: 8,
		Label: "broadband",
	}
	fiberDownload = model.TestConfig{
		StartSize: 5000000, MaxSize: 100000000, IncrSize: 1000000,
		BufferSize: 131072, MinTestTimeMs: 20000, Concurrency: 32,
		Label: "fiber",
	}
	fiberUpload = model.TestConfig{
		StartSize: 2500000, MaxSize: 70000000, IncrSize: 500000,
		BufferSize: 131072, MinTestTimeMs: 20000, Concurrency: 16,
		Label: "fiber",
	}
)

// Select returns the (download, upload) TestConfig pair for a preflight
// speed in Mbit/s, per the fixed table in spec.md §4.6:
//
//	preSpeed <= 4            -> slow
//	4 < preSpeed <= 30       -> narrow
//	30 < preSpeed < 150      -> broadband
//	preSpeed >= 150          -> fiber
func Select(preSpeedMbps float64) (download, upload model.TestConfig) {
	switch {
	case preSpeedMbps > 4 && preSpeedMbps <= 30:
		return narrowDownload, narrowUpload
	case preSpeedMbps > 30 && preSpeedMbps < 150:
		return broadbandDownload, broadbandUpload
	case preSpeedMbps >= 150:
		return fiberDownload, fiberUpload
	default:
		return slowDownload, slowUpload
	}
}
