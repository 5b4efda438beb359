// Package speedcore defines the collaborator interfaces the measurement
// engine depends on but never implements itself: the one-shot HTTP fetch
// used for the IP-info, server-list and share endpoints, and the MD5
// hex-digest used by the share payload. Both are external collaborators per
// spec.md §1 — reference implementations live in httpfetch and md5hash, but
// engine packages only ever see these interfaces.
package speedcore

import "context"

// Fetcher issues a single HTTP request and returns the status code and
// body. method is "GET" or "POST"; for POST, body is the URL-encoded form
// payload.
type Fetcher interface {
	Fetch(ctx context.Context, method, url, body string) (status int, respBody []byte, err error)
}

// Hasher computes a hex-encoded digest of a string, used for the share
// endpoint's "hash" field (an MD5 hex digest in the reference deployment,
// per spec.md §6). speedcore's own packages never import crypto/md5 so that
// this boundary stays swappable and testable without a real hash.
type Hasher interface {
	HexDigest(s string) string
}
