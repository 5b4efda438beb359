// Package protocolclient implements the line-level client protocol spoken
// to a measurement server over TCP (spec.md §4.1, §6). One Client owns at
// most one connection and is not safe for concurrent use by multiple
// callers — each throughput worker constructs and owns its own Client.
package protocolclient

import (
	"bufio"
	"fmt"
	"math/rand"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/m-lab/go/warnonerror"

	"github.com/speedcore-project/speedcore/errorsx"
	"github.com/speedcore-project/speedcore/logging"
	"github.com/speedcore-project/speedcore/model"
	"github.com/speedcore-project/speedcore/spec"
)

// dialTimeout bounds the TCP handshake. It is intentionally short: a
// measurement server that can't accept a connection quickly is not one we
// want to wait on.
const dialTimeout = 5 * time.Second

// Client is a single connection to one ServerInfo. The zero value is idle;
// Connect establishes the socket and reads the HELLO handshake.
type Client struct {
	server  model.ServerInfo
	conn    net.Conn
	reader  *bufio.Reader
	version float64
	id      string
}

// New returns an idle client targeting server. Connect must be called
// before any other method.
func New(server model.ServerInfo) *Client {
	return &Client{server: server, version: -1, id: model.NewClientID()}
}

// Connect opens a TCP stream to the host:port parsed from server.Host,
// sends "HI", and expects a "HELLO <version> ..." reply. Failure at any
// step leaves the client closed.
func (c *Client) Connect() error {
	host, port, err := ParseHostPort(c.server.Host)
	if err != nil {
		return errorsx.Wrap(err, errorsx.ErrNetworkUnreachable, "invalid host")
	}
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, strconv.Itoa(port)), dialTimeout)
	if err != nil {
		return errorsx.Trace(errorsx.Wrap(err, errorsx.ErrNetworkUnreachable, "dial failed"), "protocolclient.Connect")
	}
	c.conn = conn
	c.reader = bufio.NewReader(conn)

	if err := c.writeLine(spec.CmdHello); err != nil {
		c.Close()
		return errorsx.Trace(errorsx.Wrap(err, errorsx.ErrProtocolFailure, "could not send HI"), "protocolclient.Connect")
	}
	line, err := c.readLine()
	if err != nil {
		c.Close()
		return errorsx.Trace(errorsx.Wrap(err, errorsx.ErrProtocolFailure, "could not read HELLO"), "protocolclient.Connect")
	}
	fields := strings.Fields(line)
	if len(fields) < 2 || fields[0] != spec.ReplyHello {
		c.Close()
		return errorsx.Wrap(fmt.Errorf("got %q", line), errorsx.ErrProtocolFailure, "unexpected handshake reply")
	}
	v, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		c.Close()
		return errorsx.Wrap(err, errorsx.ErrProtocolFailure, "unparseable server version")
	}
	c.version = v
	return nil
}

// Version returns the version recorded at Connect time, or -1 if the
// client never connected.
func (c *Client) Version() float64 {
	return c.version
}

// Ping sends "PING <t>" with an opaque monotonic token and reports the
// round-trip time in milliseconds. The source sends the echo back in its
// reply; speedcore does not verify it matches, per spec.md §9's Open
// Question.
func (c *Client) Ping() (ms int64, err error) {
	token := time.Now().UnixNano()
	start := time.Now()
	if err := c.writeLine(fmt.Sprintf("%s %d", spec.CmdPing, token)); err != nil {
		return 0, errorsx.Wrap(err, errorsx.ErrProtocolFailure, "could not send PING")
	}
	line, err := c.readLine()
	if err != nil {
		return 0, errorsx.Wrap(err, errorsx.ErrProtocolFailure, "could not read PONG")
	}
	if !strings.HasPrefix(line, spec.ReplyPong) {
		return 0, errorsx.Wrap(fmt.Errorf("got %q", line), errorsx.ErrProtocolFailure, "unexpected ping reply")
	}
	return time.Since(start).Milliseconds(), nil
}

// Download sends "DOWNLOAD <size>" then reads exactly size bytes using buf
// as the read scratch space, reporting elapsed wall time in milliseconds.
// buf is owned by the caller (one per worker, reused for its whole
// lifetime per spec.md §9) and its contents are irrelevant. Any short read
// (zero or negative) is a failure.
func (c *Client) Download(size int64, buf []byte) (ms int64, err error) {
	if err := c.writeLine(fmt.Sprintf("%s %d", spec.CmdDownload, size)); err != nil {
		return 0, errorsx.Wrap(err, errorsx.ErrProtocolFailure, "could not send DOWNLOAD")
	}
	var received int64
	start := time.Now()
	for received < size {
		n, err := c.reader.Read(buf)
		if n < 1 || err != nil {
			return 0, errorsx.Wrap(err, errorsx.ErrProtocolFailure, "short read during DOWNLOAD")
		}
		received += int64(n)
	}
	return time.Since(start).Milliseconds(), nil
}

// Upload sends "UPLOAD <size>" followed by size-len("UPLOAD <size>\n")
// bytes of payload terminated with '\n', taken from buf (caller-owned,
// initialised once to arbitrary content per spec.md §9), and expects a
// reply beginning with "OK <size> ". The timer covers only the writes —
// the server's acknowledgement round-trip is deliberately excluded, per
// spec.md §9 (load-bearing for throughput numbers).
func (c *Client) Upload(size int64, buf []byte) (ms int64, err error) {
	cmd := fmt.Sprintf("%s %d\n", spec.CmdUpload, size)
	payload := size - int64(len(cmd))
	if payload < 0 {
		return 0, errorsx.Wrap(fmt.Errorf("size %d too small for command overhead", size), errorsx.ErrProtocolFailure, "invalid upload size")
	}
	if _, err := c.conn.Write([]byte(cmd)); err != nil {
		return 0, errorsx.Wrap(err, errorsx.ErrProtocolFailure, "could not send UPLOAD")
	}

	chunk := int64(len(buf))
	start := time.Now()
	remaining := payload
	for remaining > 0 {
		n := chunk
		last := false
		if remaining-n <= 0 {
			n = remaining
			last = true
		}
		out := buf[:n]
		if last && n > 0 {
			out[n-1] = '\n'
		}
		written, err := c.conn.Write(out)
		if int64(written) != n || err != nil {
			return 0, errorsx.Wrap(err, errorsx.ErrProtocolFailure, "short write during UPLOAD")
		}
		remaining -= n
	}
	elapsed := time.Since(start).Milliseconds()

	reply, err := c.readLine()
	if err != nil {
		return 0, errorsx.Wrap(err, errorsx.ErrProtocolFailure, "could not read upload acknowledgement")
	}
	want := fmt.Sprintf("%s%d ", spec.ReplyUploadOK, size)
	if !strings.HasPrefix(reply, want) {
		return 0, errorsx.Wrap(fmt.Errorf("got %q", reply), errorsx.ErrProtocolFailure, "unexpected upload acknowledgement")
	}
	return elapsed, nil
}

// Close sends a best-effort QUIT and releases the socket. It is idempotent
// and safe to call on a client that never connected.
func (c *Client) Close() {
	if c.conn == nil {
		return
	}
	if err := c.writeLine(spec.CmdQuit); err != nil {
		logging.WithField("id", c.id).WithError(errorsx.Trace(err, "protocolclient.Close")).Debug("could not send QUIT")
	}
	warnonerror.Close(c.conn, "protocolclient: could not close connection")
	c.conn = nil
	c.reader = nil
}

func (c *Client) writeLine(s string) error {
	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	_, err := c.conn.Write([]byte(s))
	return err
}

// readLine reads one byte at a time until a '\n' or '\r' terminator,
// consuming but not including it, mirroring the framing discipline in
// spec.md §4.1 and legacy/protocol's reader.
func (c *Client) readLine() (string, error) {
	var sb strings.Builder
	for {
		b, err := c.reader.ReadByte()
		if err != nil {
			return "", err
		}
		if b == '\n' || b == '\r' {
			break
		}
		sb.WriteByte(b)
	}
	return sb.String(), nil
}

// ParseHostPort splits "host:port" at the first ':'. A malformed host
// yields port 0, which subsequently fails Connect, per spec.md §8 property
// 9.
func ParseHostPort(hostport string) (string, int, error) {
	idx := strings.IndexByte(hostport, ':')
	if idx < 0 {
		return hostport, 0, nil
	}
	host := hostport[:idx]
	port, err := strconv.Atoi(hostport[idx+1:])
	if err != nil {
		logging.WithField("hostport", hostport).Debug("malformed port")
		return host, 0, nil
	}
	return host, port, nil
}

// RandomBuffer allocates a chunk-sized buffer filled with arbitrary bytes,
// for a worker to initialise once and reuse across its Upload calls.
func RandomBuffer(size int) []byte {
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = byte(rand.Intn(256))
	}
	return buf
}
