// Package spec contains constants defined by the speedtest measurement
// protocol that speedcore implements.
package spec

import "time"

const (
	// CmdHello is the client's handshake line.
	CmdHello = "HI"
	// ReplyHello is the prefix of the server's handshake reply.
	ReplyHello = "HELLO"
	// CmdPing is the ping verb.
	CmdPing = "PING"
	// ReplyPong is the prefix of a successful ping reply.
	ReplyPong = "PONG "
	// CmdDownload is the download verb.
	CmdDownload = "DOWNLOAD"
	// CmdUpload is the upload verb.
	CmdUpload = "UPLOAD"
	// ReplyUploadOK is the prefix of a successful upload acknowledgement.
	ReplyUploadOK = "OK "
	// CmdQuit is the best-effort disconnect verb.
	CmdQuit = "QUIT"
)

// EarthRadiusKm is the sphere radius used by the haversine distance
// calculation in package geo.
const EarthRadiusKm = 6371.0

// MinSupportedServerVersion is the lowest server protocol version that
// speedcore will negotiate with. Servers reporting an older version are
// rejected by the server selector.
const MinSupportedServerVersion = 2.0

// LatencySampleSize is the number of PING samples a candidate evaluation or
// a setServer call takes the minimum of (spec.md §4.3/§4.4, K=10).
const LatencySampleSize = 10

// DefaultJitterSampleSize is the default number of PING samples jitter is
// computed over (spec.md §4.4, default n=40).
const DefaultJitterSampleSize = 40

// DefaultHTTPTimeout is the default timeout HTTP helpers carry, per
// spec.md §5.
const DefaultHTTPTimeout = 20 * time.Second

// ShareResultURLPrefix is prepended to the resultid returned by the share
// endpoint to build the shareable PNG URL.
const ShareResultURLPrefix = "http://www.speedtest.net/result/"

// ShareResultURLSuffix closes out the shareable PNG URL.
const ShareResultURLSuffix = ".png"
