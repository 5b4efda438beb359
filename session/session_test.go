package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"

	"github.com/m-lab/go/rtx"

	"github.com/speedcore-project/speedcore/engineconfig"
	"github.com/speedcore-project/speedcore/errorsx"
	"github.com/speedcore-project/speedcore/model"
)

type fakeFetcher struct {
	// responses maps a URL to its canned (status, body) pair.
	responses map[string]fakeResponse
}

type fakeResponse struct {
	status int
	body   string
}

func (f fakeFetcher) Fetch(ctx context.Context, method, rawURL, body string) (int, []byte, error) {
	resp, ok := f.responses[rawURL]
	if !ok {
		return 0, nil, fmt.Errorf("no canned response for %s", rawURL)
	}
	return resp.status, []byte(resp.body), nil
}

type fakeHasher struct{}

func (fakeHasher) HexDigest(s string) string { return "deadbeef" }

// measurementServer accepts connections forever, speaking the handshake,
// PING and DOWNLOAD/UPLOAD protocol, until stop is called.
func measurementServer(t *testing.T) (addr string, stop func()) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	rtx.Must(err, "could not start fake server")
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go serveOneConn(conn)
		}
	}()
	return ln.Addr().String(), func() { ln.Close() }
}

func serveOneConn(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "HI":
			fmt.Fprint(conn, "HELLO 3.7\n")
		case "PING":
			fmt.Fprintf(conn, "PONG %s\n", fields[1])
		case "DOWNLOAD":
			var size int
			fmt.Sscanf(fields[1], "%d", &size)
			conn.Write(make([]byte, size))
		case "UPLOAD":
			var size int
			fmt.Sscanf(fields[1], "%d", &size)
			remaining := size - len(line) - 1
			buf := make([]byte, 8192)
			for remaining > 0 {
				n := len(buf)
				if remaining < n {
					n = remaining
				}
				read, err := r.Read(buf[:n])
				if err != nil {
					return
				}
				remaining -= read
			}
			fmt.Fprintf(conn, "OK %d DONE\n", size)
		case "QUIT":
			return
		}
	}
}

func TestSessionStepsOutOfOrder(t *testing.T) {
	sess := New(engineconfig.Default(), fakeFetcher{}, fakeHasher{})

	if err := sess.FetchServerList(context.Background(), "http://example.com/servers"); !errors.Is(err, errorsx.ErrInvalidOrder) {
		t.Errorf("FetchServerList() before FetchIPInfo returned %v, want ErrInvalidOrder", err)
	}
	if err := sess.MeasureJitter(0); !errors.Is(err, errorsx.ErrInvalidOrder) {
		t.Errorf("MeasureJitter() before selection returned %v, want ErrInvalidOrder", err)
	}
}

func TestSessionFullHappyPath(t *testing.T) {
	addr, stop := measurementServer(t)
	defer stop()

	ipInfoURL := "http://example.com/ip-info"
	serverListURL := "http://example.com/servers"
	shareURLStr := "http://example.com/share"

	fetcher := fakeFetcher{responses: map[string]fakeResponse{
		ipInfoURL: {200, "ip_address=1.2.3.4&isp=Example&lat=40.7128&lon=-74.0060"},
		serverListURL: {200, fmt.Sprintf(
			`<servers><server url="http://x/upload.php" lat="40.7128" lon="-74.0060" name="Local" country="US" cc="US" host="%s" id="1" sponsor="Test"/></servers>`,
			addr)},
		shareURLStr: {200, "resultid=42"},
	}}

	cfg := engineconfig.Default()
	sess := New(cfg, fetcher, fakeHasher{})
	ctx := context.Background()

	rtx.Must(sess.FetchIPInfo(ctx, ipInfoURL), "FetchIPInfo failed")
	if sess.Step() != IPInfoFetched {
		t.Fatalf("Step() = %v, want IPInfoFetched", sess.Step())
	}

	rtx.Must(sess.FetchServerList(ctx, serverListURL), "FetchServerList failed")
	if sess.Step() != ServerListed {
		t.Fatalf("Step() = %v, want ServerListed", sess.Step())
	}

	rtx.Must(sess.SelectBestServer(5, nil), "SelectBestServer failed")
	if sess.Step() != ServerSelected {
		t.Fatalf("Step() = %v, want ServerSelected", sess.Step())
	}

	rtx.Must(sess.MeasureLatency(5), "MeasureLatency failed")
	if sess.Step() != LatencyMeasured {
		t.Fatalf("Step() = %v, want LatencyMeasured", sess.Step())
	}

	rtx.Must(sess.MeasureJitter(5), "MeasureJitter failed")
	if sess.Step() != JitterMeasured {
		t.Fatalf("Step() = %v, want JitterMeasured", sess.Step())
	}

	// MeasureDownloadSpeed and MeasureUploadSpeed would run a full-size
	// preflight/profile test against the fake server; that is exercised end
	// to end by package throughput's own tests, so here we only verify the
	// facade's ordering contract by checking that Share is still rejected
	// until both speed steps complete.
	if _, err := sess.Share(ctx, shareURLStr); !errors.Is(err, errorsx.ErrInvalidOrder) {
		t.Errorf("Share() before upload speed returned %v, want ErrInvalidOrder", err)
	}
}

func TestSessionStateAccessorsStartEmpty(t *testing.T) {
	sess := New(engineconfig.Default(), fakeFetcher{}, fakeHasher{})
	if sess.Step() != Created {
		t.Errorf("new Session Step() = %v, want Created", sess.Step())
	}
	state := sess.State()
	if state.IPInfo != (model.IPInfo{}) {
		t.Errorf("new Session State().IPInfo = %+v, want zero value", state.IPInfo)
	}
}
