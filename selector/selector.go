// Package selector picks the best measurement server from a sorted
// candidate list (spec.md §4.3).
package selector

import (
	"github.com/m-lab/go/warnonerror"

	"github.com/speedcore-project/speedcore/errorsx"
	"github.com/speedcore-project/speedcore/latency"
	"github.com/speedcore-project/speedcore/metrics"
	"github.com/speedcore-project/speedcore/model"
	"github.com/speedcore-project/speedcore/protocolclient"
	"github.com/speedcore-project/speedcore/spec"
)

// ProgressCallback is invoked once per evaluated candidate with true on
// success, false on rejection. It is the sole progress signal and must
// never influence selection.
type ProgressCallback func(success bool)

// BestServer iterates list nearest-first and evaluates candidates until
// sampleSize+1 have succeeded or the list is exhausted. Connect and version
// failures are free: remaining is only spent on candidates that pass both
// checks, mirroring the continue-before-decrement structure of the
// original findBestServerWithin. It returns the candidate with the
// smallest observed latency; if none succeeded it returns the first list
// element with an unmeasured latency, leaving a subsequent SetServer
// authoritative.
func BestServer(list []model.ServerInfo, minVersion float64, sampleSize int, cb ProgressCallback) (model.ServerInfo, model.Latency) {
	if len(list) == 0 {
		return model.ServerInfo{}, model.Latency{}
	}
	best := list[0]
	bestLatency := model.Latency{}
	remaining := sampleSize

	for _, candidate := range list {
		ok, lat := evaluate(candidate, minVersion)
		if cb != nil {
			cb(ok)
		}
		if !ok {
			metrics.CandidateCount.WithLabelValues("rejected").Inc()
			continue
		}
		metrics.CandidateCount.WithLabelValues("accepted").Inc()
		if !bestLatency.Measured || lat.Less(bestLatency) {
			bestLatency = lat
			best = candidate
		}
		if remaining <= 0 {
			break
		}
		remaining--
	}
	return best, bestLatency
}

// evaluate connects to one candidate, rejects it for a failed connection or
// a version below minVersion, and otherwise measures its latency as the
// minimum of spec.LatencySampleSize pings.
func evaluate(candidate model.ServerInfo, minVersion float64) (bool, model.Latency) {
	client := protocolclient.New(candidate)
	if err := client.Connect(); err != nil {
		return false, model.Latency{}
	}
	defer warnonerror.Close(closeFunc(client.Close), "selector: could not close candidate client")

	if client.Version() < minVersion {
		return false, model.Latency{}
	}
	lat, err := latency.TestLatency(client, spec.LatencySampleSize)
	if err != nil {
		return false, model.Latency{}
	}
	return true, lat
}

// SetServer binds server to the session: it verifies the version
// requirement and re-measures latency, failing if either check fails.
func SetServer(server model.ServerInfo, minVersion float64) (model.Latency, error) {
	client := protocolclient.New(server)
	if err := client.Connect(); err != nil {
		return model.Latency{}, errorsx.Wrap(err, errorsx.ErrNetworkUnreachable, "setServer: could not connect")
	}
	defer warnonerror.Close(closeFunc(client.Close), "selector: could not close client")

	if client.Version() < minVersion {
		return model.Latency{}, errorsx.New(errorsx.ErrNoCandidate, "setServer: unsupported server version")
	}
	lat, err := latency.TestLatency(client, spec.LatencySampleSize)
	if err != nil {
		return model.Latency{}, errorsx.Wrap(err, errorsx.ErrProtocolFailure, "setServer: latency measurement failed")
	}
	return lat, nil
}

type closeFunc func()

func (f closeFunc) Close() error {
	f()
	return nil
}
