// Package model holds the data types shared by speedcore's measurement
// engine: the entities that flow catalogue → selector → latency →
// throughput → session, per spec.md §3.
package model

import "github.com/google/uuid"

// IPInfo is the caller's geolocation, fetched once per session and treated
// as immutable thereafter.
type IPInfo struct {
	IPAddress string
	ISP       string
	Latitude  float64
	Longitude float64
}

// ServerInfo describes one candidate measurement server from the catalogue.
// DistanceKm is derived from the caller's IPInfo at load time and is
// immutable afterward.
type ServerInfo struct {
	ID           int
	URL          string
	Host         string // "hostname:port"
	Name         string
	Country      string
	CountryCode  string
	Sponsor      string
	Latitude     float64
	Longitude    float64
	DistanceKm   float64
}

// TestConfig is a value type selecting transfer parameters for one
// direction of one throughput test.
type TestConfig struct {
	StartSize      int64
	MaxSize        int64
	IncrSize       int64
	BufferSize     int
	MinTestTimeMs  int64
	Concurrency    int
	Label          string
}

// Sample is one completed transfer's measurement, discarded after
// aggregation.
type Sample struct {
	TransferredBytes int64
	ElapsedMs        int64
}

// RateBps returns the sample's rate in bits per second, per spec.md §4.5:
// (bytes*8) / (elapsed_ms/1000).
func (s Sample) RateBps() float64 {
	if s.ElapsedMs <= 0 {
		return 0
	}
	return float64(s.TransferredBytes*8) / (float64(s.ElapsedMs) / 1000.0)
}

// Latency is a tagged Measured(ms)|NotMeasured variant, used in place of a
// LONG_MAX sentinel so a missing measurement can never poison arithmetic
// (spec.md §9 REDESIGN note).
type Latency struct {
	ms      int64
	Measured bool
}

// NewLatency wraps a measured round-trip time in milliseconds.
func NewLatency(ms int64) Latency {
	return Latency{ms: ms, Measured: true}
}

// Ms returns the measured round-trip time and true, or (0, false) if the
// latency was never measured.
func (l Latency) Ms() (int64, bool) {
	if !l.Measured {
		return 0, false
	}
	return l.ms, true
}

// Less reports whether l is a measured value strictly lower than other, or
// other is unmeasured and l is measured. Two unmeasured values are never
// Less than one another.
func (l Latency) Less(other Latency) bool {
	if !l.Measured {
		return false
	}
	if !other.Measured {
		return true
	}
	return l.ms < other.ms
}

// SessionState holds everything the facade mutates between sequential
// steps: the last measured latency, up/down speed, and cached lookups.
type SessionState struct {
	Latency       Latency
	JitterMs      int64
	DownloadMbps  float64
	UploadMbps    float64
	IPInfo        IPInfo
	ServerList    []ServerInfo
	SelectedServer ServerInfo
	ShareURL      string
}

// NewClientID mints a UUID used to tag a ProtocolClient or Session for log
// correlation, falling back to a random v4 if the time-based v1 generator
// fails (mirrors magic/net.go's fallback pattern).
func NewClientID() string {
	id, err := uuid.NewUUID()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
