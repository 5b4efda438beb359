// Package throughput implements the adaptive concurrent throughput driver
// (spec.md §4.5): a configurable number of parallel workers each running an
// increasing-size transfer loop until a time budget expires, aggregated
// into a single Mbit/s figure.
package throughput

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/VividCortex/ewma"
	"github.com/m-lab/go/warnonerror"
	"golang.org/x/time/rate"

	"github.com/speedcore-project/speedcore/logging"
	"github.com/speedcore-project/speedcore/metrics"
	"github.com/speedcore-project/speedcore/model"
	"github.com/speedcore-project/speedcore/protocolclient"
)

var errUnknownDirection = errors.New("throughput: unknown direction")

// Direction selects which protocol operation a worker drives.
type Direction string

// Directions understood by Run.
const (
	Download = Direction("download")
	Upload   = Direction("upload")
)

// TrimPolicy controls per-worker sample trimming before averaging. The
// current default, {false, 0}, trims nothing — matching the commented-out
// policy in the reference implementation (spec.md §4.5, §9 Open Question).
// A future policy may set SkipLowQuartile when a worker produced >= 10
// samples and DropHighest to drop the highest few.
type TrimPolicy struct {
	SkipLowQuartile bool
	DropHighest     int
}

// SampleCallback is invoked by a worker after every transfer attempt,
// reporting success or failure. It is the sole per-sample progress signal
// and must never block meaningfully; it may be invoked concurrently by
// multiple workers.
type SampleCallback func(success bool)

// RateCallback is invoked with a live, EWMA-smoothed bits-per-second
// estimate as a worker accumulates samples. Unlike SampleCallback's
// boolean signal, this gives callers a human-facing "current speed"
// readout distinct from the bit-exact aggregation Run returns.
type RateCallback func(direction Direction, smoothedBps float64)

// Run spawns exactly config.Concurrency workers, each opening its own
// connection and executing direction's transfer loop until
// config.MinTestTimeMs elapses or config.MaxSize is reached, then joins all
// workers before returning. The result is
// (sum of per-worker mean bits-per-second) / 1,048,576 — see spec.md §4.5's
// "Unit note"; this division is bit-exact and load-bearing for interop. A
// completely failed test returns 0; cb and rateCb may be nil.
//
// perWorkerCapBps, if positive, gives each worker its own token-bucket
// limiter refilled at perWorkerCapBps/8 tokens per second with a burst of
// config.BufferSize; before each transfer the worker waits for
// config.BufferSize tokens. The wait only spaces out the start of
// transfers: it lies outside the timed transfer, so it does not bound the
// per-sample rates or the value Run returns. 0 disables the limiter, which
// is the default policy (spec.md §9 Open Question).
func Run(server model.ServerInfo, config model.TestConfig, direction Direction, trim TrimPolicy, perWorkerCapBps float64, cb SampleCallback, rateCb RateCallback) float64 {
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		sumBps float64
	)

	for i := 0; i < config.Concurrency; i++ {
		var limiter *rate.Limiter
		if perWorkerCapBps > 0 {
			limiter = rate.NewLimiter(rate.Limit(perWorkerCapBps/8), int(config.BufferSize))
		}
		wg.Add(1)
		metrics.ActiveWorkers.Inc()
		go func() {
			defer wg.Done()
			defer metrics.ActiveWorkers.Dec()
			mean := runWorker(server, config, direction, trim, limiter, cb, rateCb)
			mu.Lock()
			sumBps += mean
			mu.Unlock()
		}()
	}
	wg.Wait()

	mbps := sumBps / (1024 * 1024)
	metrics.TestRate.WithLabelValues(string(direction)).Observe(mbps)
	metrics.TestCount.WithLabelValues(string(direction)).Inc()
	return mbps
}

// runWorker executes one worker's lifetime: one connection, the
// increasing-size transfer loop, and the worker's mean bits-per-second
// across its successful samples. On connect failure it reports a single
// cb(false) and contributes 0, per spec.md §4.5's concurrency failure
// policy.
func runWorker(server model.ServerInfo, config model.TestConfig, direction Direction, trim TrimPolicy, limiter *rate.Limiter, cb SampleCallback, rateCb RateCallback) float64 {
	client := protocolclient.New(server)
	if err := client.Connect(); err != nil {
		if cb != nil {
			cb(false)
		}
		return 0
	}
	defer warnonerror.Close(closeFunc(client.Close), "throughput: could not close worker client")

	buf := protocolclient.RandomBuffer(config.BufferSize)
	smoother := ewma.NewMovingAverage()

	curr := config.StartSize
	started := time.Now()
	var samples []model.Sample

	for curr < config.MaxSize {
		if limiter != nil {
			if err := limiter.WaitN(context.Background(), int(config.BufferSize)); err != nil {
				break
			}
		}
		ms, err := transfer(client, direction, curr, buf)
		if err != nil {
			if cb != nil {
				cb(false)
			}
		} else {
			sample := model.Sample{TransferredBytes: curr, ElapsedMs: ms}
			samples = append(samples, sample)
			smoother.Add(sample.RateBps())
			if rateCb != nil {
				rateCb(direction, smoother.Value())
			}
			if cb != nil {
				cb(true)
			}
		}
		curr += config.IncrSize
		if time.Since(started).Milliseconds() > config.MinTestTimeMs {
			break
		}
	}

	return aggregateWorker(samples, trim)
}

func transfer(client *protocolclient.Client, direction Direction, size int64, buf []byte) (int64, error) {
	switch direction {
	case Download:
		return client.Download(size, buf)
	case Upload:
		return client.Upload(size, buf)
	default:
		logging.WithField("direction", direction).Error("unknown throughput direction")
		return 0, errUnknownDirection
	}
}

// aggregateWorker sorts a worker's samples ascending and returns the
// arithmetic mean of bits-per-second across the (possibly trimmed) middle
// range. With the default TrimPolicy{} this is a plain mean over all
// samples.
func aggregateWorker(samples []model.Sample, trim TrimPolicy) float64 {
	if len(samples) == 0 {
		return 0
	}
	rates := make([]float64, len(samples))
	for i, s := range samples {
		rates[i] = s.RateBps()
	}
	sort.Float64s(rates)

	skip := 0
	drop := trim.DropHighest
	if trim.SkipLowQuartile && len(rates) >= 10 {
		skip = len(rates) / 4
	}
	if drop > len(rates)-skip {
		drop = len(rates) - skip
	}
	end := len(rates) - drop
	if end <= skip {
		return 0
	}

	var sum float64
	for _, r := range rates[skip:end] {
		sum += r
	}
	return sum / float64(end-skip)
}

type closeFunc func()

func (f closeFunc) Close() error {
	f()
	return nil
}
