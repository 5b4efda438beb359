package selector

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"

	"github.com/m-lab/go/rtx"

	"github.com/speedcore-project/speedcore/errorsx"
	"github.com/speedcore-project/speedcore/model"
	"github.com/speedcore-project/speedcore/spec"
)

// handshakeServer accepts exactly one connection, replies to HI with
// HELLO <version>, and echoes PING tokens back as PONG so latency
// measurement succeeds.
func handshakeServer(t *testing.T, version string) (addr string, done chan struct{}) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	rtx.Must(err, "could not start fake server")
	done = make(chan struct{})
	go func() {
		defer close(done)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
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
				fmt.Fprintf(conn, "HELLO %s\n", version)
			case "PING":
				fmt.Fprintf(conn, "PONG %s\n", fields[1])
			case "QUIT":
				return
			}
		}
	}()
	return ln.Addr().String(), done
}

func unreachableAddr(t *testing.T) string {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	rtx.Must(err, "could not reserve a port")
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

func TestBestServerPicksSupportedReachableCandidate(t *testing.T) {
	goodAddr, goodDone := handshakeServer(t, "3.7")
	oldAddr, oldDone := handshakeServer(t, "1.0")
	defer func() { <-goodDone; <-oldDone }()
	badAddr := unreachableAddr(t)

	list := []model.ServerInfo{
		{Host: oldAddr, Name: "too-old"},
		{Host: badAddr, Name: "unreachable"},
		{Host: goodAddr, Name: "good"},
	}

	var accepted, rejected int
	best, lat := BestServer(list, spec.MinSupportedServerVersion, 5, func(ok bool) {
		if ok {
			accepted++
		} else {
			rejected++
		}
	})

	if best.Name != "good" {
		t.Errorf("BestServer() picked %q, want %q", best.Name, "good")
	}
	if _, ok := lat.Ms(); !ok {
		t.Error("BestServer() returned an unmeasured latency for the winning candidate")
	}
	if accepted != 1 {
		t.Errorf("accepted = %d, want 1", accepted)
	}
	if rejected != 2 {
		t.Errorf("rejected = %d, want 2", rejected)
	}
}

func TestBestServerEmptyList(t *testing.T) {
	best, lat := BestServer(nil, spec.MinSupportedServerVersion, 5, nil)
	if best != (model.ServerInfo{}) {
		t.Errorf("BestServer(nil) = %+v, want zero value", best)
	}
	if _, ok := lat.Ms(); ok {
		t.Error("BestServer(nil) should return an unmeasured latency")
	}
}

func TestBestServerUnreachableCandidatesDoNotSpendSampleSize(t *testing.T) {
	goodAddr1, goodDone1 := handshakeServer(t, "3.7")
	goodAddr2, goodDone2 := handshakeServer(t, "3.7")
	defer func() { <-goodDone1; <-goodDone2 }()

	list := []model.ServerInfo{
		{Host: unreachableAddr(t), Name: "dead-1"},
		{Host: unreachableAddr(t), Name: "dead-2"},
		{Host: unreachableAddr(t), Name: "dead-3"},
		{Host: goodAddr1, Name: "good-1"},
		{Host: goodAddr2, Name: "good-2"},
	}

	var evaluated int
	BestServer(list, spec.MinSupportedServerVersion, 2, func(ok bool) {
		evaluated++
	})

	if evaluated != len(list) {
		t.Errorf("evaluated %d candidates, want all %d: three unreachable candidates ahead of the budget must not consume sampleSize", evaluated, len(list))
	}
}

func TestSetServerSuccess(t *testing.T) {
	addr, done := handshakeServer(t, "3.7")
	defer func() { <-done }()

	lat, err := SetServer(model.ServerInfo{Host: addr}, spec.MinSupportedServerVersion)
	if err != nil {
		t.Fatalf("SetServer() error: %v", err)
	}
	if _, ok := lat.Ms(); !ok {
		t.Error("SetServer() returned an unmeasured latency")
	}
}

func TestSetServerUnsupportedVersion(t *testing.T) {
	addr, done := handshakeServer(t, "1.0")
	defer func() { <-done }()

	_, err := SetServer(model.ServerInfo{Host: addr}, spec.MinSupportedServerVersion)
	if !errors.Is(err, errorsx.ErrNoCandidate) {
		t.Errorf("SetServer() error = %v, want wrapping ErrNoCandidate", err)
	}
}

func TestSetServerUnreachable(t *testing.T) {
	addr := unreachableAddr(t)
	_, err := SetServer(model.ServerInfo{Host: addr}, spec.MinSupportedServerVersion)
	if !errors.Is(err, errorsx.ErrNetworkUnreachable) {
		t.Errorf("SetServer() error = %v, want wrapping ErrNetworkUnreachable", err)
	}
}
