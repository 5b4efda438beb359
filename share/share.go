// Package share builds and submits the "share result" payload described in
// spec.md §6, delegating the MD5 digest and the HTTP POST to injected
// collaborators so this package never needs crypto/md5 or net/http itself.
package share

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/speedcore-project/speedcore"
	"github.com/speedcore-project/speedcore/errorsx"
	"github.com/speedcore-project/speedcore/httpfetch"
	"github.com/speedcore-project/speedcore/model"
	"github.com/speedcore-project/speedcore/spec"
)

// apiKey is the fixed key baked into the hash pre-image, mirroring the
// reference client's SPEED_TEST_API_KEY constant. Submitting results
// against a real endpoint with this key is the caller's choice; speedcore
// only builds the payload.
const apiKey = "SPEEDTEST-GO"

// Submit builds the share payload for state against server, posts it to
// shareURL via fetcher, and returns the shareable PNG URL built from the
// response's resultid field.
func Submit(ctx context.Context, fetcher speedcore.Fetcher, hasher speedcore.Hasher, shareURL string, server model.ServerInfo, state model.SessionState) (string, error) {
	pingMs, _ := state.Latency.Ms()
	uploadScaled := state.UploadMbps * 1024
	downloadScaled := state.DownloadMbps * 1024

	preimage := fmt.Sprintf("%d-%.2f-%.2f-%s", pingMs, uploadScaled, downloadScaled, apiKey)
	hexDigest := hasher.HexDigest(preimage)

	form := url.Values{}
	form.Set("ping", fmt.Sprintf("%d", pingMs))
	form.Set("upload", fmt.Sprintf("%.2f", uploadScaled))
	form.Set("download", fmt.Sprintf("%.2f", downloadScaled))
	form.Set("pingselect", "1")
	form.Set("recommendedserverid", fmt.Sprintf("%d", server.ID))
	form.Set("accuracy", "1")
	form.Set("serverid", fmt.Sprintf("%d", server.ID))
	form.Set("hash", hexDigest)

	status, body, err := fetcher.Fetch(ctx, http.MethodPost, shareURL, form.Encode())
	if err != nil {
		return "", errorsx.Wrap(err, errorsx.ErrCatalogueFailure, "share request failed")
	}
	if status < 200 || status >= 300 || len(body) == 0 {
		return "", errorsx.New(errorsx.ErrCatalogueFailure, "non-2xx or empty share response")
	}

	values := httpfetch.ParseQueryString(string(body))
	resultID, ok := values["resultid"]
	if !ok || resultID == "" {
		return "", errorsx.New(errorsx.ErrCatalogueFailure, "share response missing resultid")
	}
	return spec.ShareResultURLPrefix + resultID + spec.ShareResultURLSuffix, nil
}
