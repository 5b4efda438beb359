// Package latency measures round-trip latency and jitter against a
// measurement server (spec.md §4.4).
package latency

import (
	"math"

	"github.com/m-lab/go/warnonerror"

	"github.com/speedcore-project/speedcore/errorsx"
	"github.com/speedcore-project/speedcore/model"
	"github.com/speedcore-project/speedcore/protocolclient"
	"github.com/speedcore-project/speedcore/spec"
)

// TestLatency sends n pings over an already-connected client and returns
// the minimum successful round-trip in milliseconds. Any ping failure
// aborts the whole measurement with a failure, per spec.md §4.4.
func TestLatency(client *protocolclient.Client, n int) (model.Latency, error) {
	best := model.Latency{}
	for i := 0; i < n; i++ {
		ms, err := client.Ping()
		if err != nil {
			return model.Latency{}, errorsx.Wrap(err, errorsx.ErrProtocolFailure, "ping failed during latency test")
		}
		candidate := model.NewLatency(ms)
		if !best.Measured || candidate.Less(best) {
			best = candidate
		}
	}
	return best, nil
}

// Jitter opens its own connection to server, issues n pings (defaulting to
// spec.DefaultJitterSampleSize when n<=0), and returns
// ceil(sum(|Δ|)/(successful_count-1)), the mean of the deltas between
// consecutive successful samples; fewer than two successful samples give 0.
// The client is closed on every exit path.
func Jitter(server model.ServerInfo, n int) (int64, error) {
	if n <= 0 {
		n = spec.DefaultJitterSampleSize
	}
	client := protocolclient.New(server)
	if err := client.Connect(); err != nil {
		return 0, errorsx.Wrap(err, errorsx.ErrNetworkUnreachable, "jitter: could not connect")
	}
	defer warnonerror.Close(closerFunc(client.Close), "latency: could not close jitter client")

	var sumAbsDelta float64
	var successCount int
	var previous int64
	havePrevious := false

	for i := 0; i < n; i++ {
		ms, err := client.Ping()
		if err != nil {
			continue
		}
		successCount++
		if havePrevious {
			sumAbsDelta += math.Abs(float64(ms - previous))
		} else {
			havePrevious = true
		}
		previous = ms
	}
	if successCount <= 1 {
		return 0, nil
	}
	// successCount samples contribute successCount-1 deltas.
	return int64(math.Ceil(sumAbsDelta / float64(successCount-1))), nil
}

// closerFunc adapts a plain func() to io.Closer for warnonerror.Close.
type closerFunc func()

func (f closerFunc) Close() error {
	f()
	return nil
}
