// speedcore-probe is a thin command-line wiring demo for package session.
// It is not the focus of the module: rendering a human-facing report is out
// of scope (spec.md §1), so this tool just drives the facade end to end and
// prints the resulting SessionState fields.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/apex/log"

	"github.com/speedcore-project/speedcore/engineconfig"
	"github.com/speedcore-project/speedcore/httpfetch"
	"github.com/speedcore-project/speedcore/logging"
	"github.com/speedcore-project/speedcore/md5hash"
	"github.com/speedcore-project/speedcore/session"
	"github.com/speedcore-project/speedcore/throughput"
)

var (
	ipInfoURL    = flag.String("ip-info-url", "http://www.speedtest.net/speedtest-config.php", "IP-info endpoint")
	serverListURL = flag.String("server-list-url", "http://www.speedtest.net/speedtest-servers.php", "Server catalogue endpoint")
	shareURL     = flag.String("share-url", "", "Share endpoint; skipped if empty")
	configPath   = flag.String("config", "", "Optional engineconfig YAML path")
)

func main() {
	flag.Parse()
	logging.Logger.Level = log.InfoLevel

	cfg := engineconfig.Default()
	if *configPath != "" {
		loaded, err := engineconfig.Load(*configPath)
		if err != nil {
			logging.WithField("path", *configPath).WithError(err).Error("could not load config, using defaults")
		} else {
			cfg = loaded
		}
	}

	fetcher := httpfetch.NewWithTimeout(time.Duration(cfg.HTTPTimeoutSeconds) * time.Second)
	sess := session.New(cfg, fetcher, md5hash.Hasher{})
	ctx := context.Background()

	if err := run(ctx, sess); err != nil {
		logging.WithField("step", sess.Step().String()).WithError(err).Error("probe failed")
		os.Exit(1)
	}

	state := sess.State()
	logging.Logger.WithFields(log.Fields{
		"download_mbps": state.DownloadMbps,
		"upload_mbps":   state.UploadMbps,
		"jitter_ms":     state.JitterMs,
		"server":        state.SelectedServer.Host,
		"share_url":     state.ShareURL,
	}).Info("probe complete")
}

func run(ctx context.Context, sess *session.Session) error {
	if err := sess.FetchIPInfo(ctx, *ipInfoURL); err != nil {
		return err
	}
	if err := sess.FetchServerList(ctx, *serverListURL); err != nil {
		return err
	}
	if err := sess.SelectBestServer(0, func(ok bool) {
		logging.WithField("accepted", ok).Debug("candidate evaluated")
	}); err != nil {
		return err
	}
	if err := sess.MeasureLatency(0); err != nil {
		return err
	}
	if err := sess.MeasureJitter(0); err != nil {
		return err
	}
	if err := sess.MeasureDownloadSpeed(nil, reportRate); err != nil {
		return err
	}
	if err := sess.MeasureUploadSpeed(nil, reportRate); err != nil {
		return err
	}
	if *shareURL != "" {
		if _, err := sess.Share(ctx, *shareURL); err != nil {
			return err
		}
	}
	return nil
}

func reportRate(direction throughput.Direction, smoothedBps float64) {
	logging.Logger.WithFields(log.Fields{
		"direction": string(direction),
		"mbps":      smoothedBps / (1024 * 1024),
	}).Debug("live rate")
}
