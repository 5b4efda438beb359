// Package session implements the sequential state-machine facade described
// in spec.md §4.7: ipInfo → serverList → bestServer/setServer → latency → jitter →
// downloadSpeed → uploadSpeed → share. Each step depends on its
// predecessor; re-invoking a step out of order returns errorsx.ErrInvalidOrder.
package session

import (
	"context"

	"github.com/m-lab/go/warnonerror"

	"github.com/speedcore-project/speedcore"
	"github.com/speedcore-project/speedcore/catalogue"
	"github.com/speedcore-project/speedcore/engineconfig"
	"github.com/speedcore-project/speedcore/errorsx"
	"github.com/speedcore-project/speedcore/ipinfo"
	"github.com/speedcore-project/speedcore/latency"
	"github.com/speedcore-project/speedcore/logging"
	"github.com/speedcore-project/speedcore/model"
	"github.com/speedcore-project/speedcore/profile"
	"github.com/speedcore-project/speedcore/protocolclient"
	"github.com/speedcore-project/speedcore/selector"
	"github.com/speedcore-project/speedcore/share"
	"github.com/speedcore-project/speedcore/throughput"
)

// Step names the facade's state machine positions, in the fixed order
// spec.md §4.7 requires.
type Step int

// Steps, in the order the facade must traverse them.
const (
	Created Step = iota
	IPInfoFetched
	ServerListed
	ServerSelected
	LatencyMeasured
	JitterMeasured
	DownloadMeasured
	UploadMeasured
	Shared
)

func (s Step) String() string {
	names := [...]string{
		"Created", "IPInfoFetched", "ServerListed", "ServerSelected",
		"LatencyMeasured", "JitterMeasured", "DownloadMeasured", "UploadMeasured", "Shared",
	}
	if int(s) < 0 || int(s) >= len(names) {
		return "Unknown"
	}
	return names[s]
}

// Session holds SessionState and the current position in the facade's
// state machine. It is owned and mutated only by its own methods, never
// concurrently with the throughput workers it spawns internally.
type Session struct {
	cfg     engineconfig.Config
	fetcher speedcore.Fetcher
	hasher  speedcore.Hasher

	step  Step
	state model.SessionState

	preflightMbps float64
	id            string
}

// New returns a Session ready for FetchIPInfo, using cfg for engine-wide
// tunables and fetcher/hasher as the HTTP and hashing collaborators.
func New(cfg engineconfig.Config, fetcher speedcore.Fetcher, hasher speedcore.Hasher) *Session {
	return &Session{cfg: cfg, fetcher: fetcher, hasher: hasher, step: Created, id: model.NewClientID()}
}

// State returns a copy of the session's current SessionState.
func (s *Session) State() model.SessionState { return s.state }

// Step returns the facade's current position.
func (s *Session) Step() Step { return s.step }

func (s *Session) requireStep(previous Step, transition string) error {
	if s.step != previous {
		return errorsx.New(errorsx.ErrInvalidOrder, transition+": expected step "+previous.String()+", got "+s.step.String())
	}
	return nil
}

// FetchIPInfo retrieves and caches the caller's geolocation. It is the
// first step after Created.
func (s *Session) FetchIPInfo(ctx context.Context, url string) error {
	if err := s.requireStep(Created, "fetchIPInfo"); err != nil {
		return err
	}
	info, err := ipinfo.Fetch(ctx, s.fetcher, url)
	if err != nil {
		return err
	}
	s.state.IPInfo = info
	s.step = IPInfoFetched
	return nil
}

// FetchServerList fetches and caches the catalogue, sorted by distance from
// the cached IPInfo.
func (s *Session) FetchServerList(ctx context.Context, url string) error {
	if err := s.requireStep(IPInfoFetched, "fetchServerList"); err != nil {
		return err
	}
	servers, err := catalogue.FetchServers(ctx, s.fetcher, url, s.state.IPInfo)
	if err != nil {
		return err
	}
	s.state.ServerList = servers
	s.step = ServerListed
	return nil
}

// SelectBestServer evaluates candidates from the cached list until
// sampleSize+1 have succeeded (failed candidates are not counted, see
// selector.BestServer) and binds the best one to the session.
func (s *Session) SelectBestServer(sampleSize int, cb selector.ProgressCallback) error {
	if err := s.requireStep(ServerListed, "bestServer"); err != nil {
		return err
	}
	if sampleSize <= 0 {
		sampleSize = s.cfg.SelectorSampleSize
	}
	best, lat := selector.BestServer(s.state.ServerList, s.cfg.MinServerVersion, sampleSize, cb)
	s.state.SelectedServer = best
	s.state.Latency = lat
	s.step = ServerSelected
	logging.WithField("server", best.Host).Info("selected best server")
	return nil
}

// SetServer explicitly binds server, bypassing candidate iteration,
// re-verifying its version and re-measuring latency.
func (s *Session) SetServer(server model.ServerInfo) error {
	if err := s.requireStep(ServerListed, "setServer"); err != nil {
		return err
	}
	lat, err := selector.SetServer(server, s.cfg.MinServerVersion)
	if err != nil {
		return err
	}
	s.state.SelectedServer = server
	s.state.Latency = lat
	s.step = ServerSelected
	return nil
}

// MeasureLatency re-measures latency against the selected server,
// transitioning ServerSelected -> LatencyMeasured. The value obtained
// during selection already lives in SessionState.Latency; this step exists
// because spec.md §4.7 names it as a distinct, explicit transition.
func (s *Session) MeasureLatency(n int) error {
	if err := s.requireStep(ServerSelected, "measureLatency"); err != nil {
		return err
	}
	if n <= 0 {
		n = s.cfg.LatencySamples
	}
	client := protocolclient.New(s.state.SelectedServer)
	if err := client.Connect(); err != nil {
		return errorsx.Wrap(err, errorsx.ErrNetworkUnreachable, "measureLatency: could not connect")
	}
	defer warnonerror.Close(closeFunc(client.Close), "session: could not close latency client")
	lat, err := latency.TestLatency(client, n)
	if err != nil {
		return err
	}
	s.state.Latency = lat
	s.step = LatencyMeasured
	return nil
}

// MeasureJitter computes jitter against the selected server.
func (s *Session) MeasureJitter(n int) error {
	if err := s.requireStep(LatencyMeasured, "jitter"); err != nil {
		return err
	}
	if n <= 0 {
		n = s.cfg.JitterSamples
	}
	ms, err := latency.Jitter(s.state.SelectedServer, n)
	if err != nil {
		return err
	}
	s.state.JitterMs = ms
	s.step = JitterMeasured
	return nil
}

// trimPolicy builds the per-worker trim policy from the session's
// engineconfig tunables.
func (s *Session) trimPolicy() throughput.TrimPolicy {
	return throughput.TrimPolicy{
		SkipLowQuartile: s.cfg.TrimSkipLowQuartile,
		DropHighest:     s.cfg.TrimDropHighest,
	}
}

// MeasureDownloadSpeed runs the preflight test to classify the link, picks
// a profile via package profile, then runs the full download throughput
// test and caches both the measured speed and the preflight figure, from
// which MeasureUploadSpeed selects its upload config. The per-worker trim
// policy is taken from the session's engineconfig.
func (s *Session) MeasureDownloadSpeed(cb throughput.SampleCallback, rateCb throughput.RateCallback) error {
	if err := s.requireStep(JitterMeasured, "downloadSpeed"); err != nil {
		return err
	}
	s.preflightMbps = throughput.Run(s.state.SelectedServer, profile.Preflight, throughput.Download, throughput.TrimPolicy{}, 0, nil, nil)
	downloadCfg, _ := profile.Select(s.preflightMbps)

	mbps := throughput.Run(s.state.SelectedServer, downloadCfg, throughput.Download, s.trimPolicy(), s.cfg.PerWorkerRateCapBps, cb, rateCb)
	s.state.DownloadMbps = mbps
	s.step = DownloadMeasured
	return nil
}

// MeasureUploadSpeed runs the upload throughput test using the profile
// selected by the preceding download step's preflight measurement. The
// per-worker trim policy is taken from the session's engineconfig.
func (s *Session) MeasureUploadSpeed(cb throughput.SampleCallback, rateCb throughput.RateCallback) error {
	if err := s.requireStep(DownloadMeasured, "uploadSpeed"); err != nil {
		return err
	}
	_, uploadCfg := profile.Select(s.preflightMbps)
	mbps := throughput.Run(s.state.SelectedServer, uploadCfg, throughput.Upload, s.trimPolicy(), s.cfg.PerWorkerRateCapBps, cb, rateCb)
	s.state.UploadMbps = mbps
	s.step = UploadMeasured
	return nil
}

// Share submits the result and caches the shareable image URL.
func (s *Session) Share(ctx context.Context, shareURL string) (string, error) {
	if err := s.requireStep(UploadMeasured, "share"); err != nil {
		return "", err
	}
	url, err := share.Submit(ctx, s.fetcher, s.hasher, shareURL, s.state.SelectedServer, s.state)
	if err != nil {
		return "", err
	}
	s.state.ShareURL = url
	s.step = Shared
	return url, nil
}

type closeFunc func()

func (f closeFunc) Close() error {
	f()
	return nil
}
