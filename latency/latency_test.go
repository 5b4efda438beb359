package latency

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"testing"

	"github.com/m-lab/go/rtx"

	"github.com/speedcore-project/speedcore/model"
	"github.com/speedcore-project/speedcore/protocolclient"
)

func pingServer(t *testing.T) (addr string, done chan struct{}) {
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
				fmt.Fprint(conn, "HELLO 3.7\n")
			case "PING":
				fmt.Fprintf(conn, "PONG %s\n", fields[1])
			case "QUIT":
				return
			}
		}
	}()
	return ln.Addr().String(), done
}

func TestTestLatencyReturnsMinimum(t *testing.T) {
	addr, done := pingServer(t)
	defer func() { <-done }()

	c := protocolclient.New(model.ServerInfo{Host: addr})
	rtx.Must(c.Connect(), "Connect failed")
	defer c.Close()

	result, err := TestLatency(c, 5)
	if err != nil {
		t.Fatalf("TestLatency() error: %v", err)
	}
	ms, ok := result.Ms()
	if !ok {
		t.Fatal("TestLatency() returned an unmeasured result")
	}
	if ms < 0 {
		t.Errorf("TestLatency() = %v, want >= 0", ms)
	}
}

// handshakeThenHangUpServer completes the HELLO handshake, then closes the
// connection before answering any PING, starving Jitter of successful
// samples.
func handshakeThenHangUpServer(t *testing.T) (addr string, done chan struct{}) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	rtx.Must(err, "could not start fake server")
	done = make(chan struct{})
	go func() {
		defer close(done)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		r := bufio.NewReader(conn)
		line, err := r.ReadString('\n')
		if err == nil && strings.HasPrefix(line, "HI") {
			fmt.Fprint(conn, "HELLO 3.7\n")
		}
		conn.Close()
	}()
	return ln.Addr().String(), done
}

func TestJitterNotEnoughSamples(t *testing.T) {
	addr, done := handshakeThenHangUpServer(t)
	defer func() { <-done }()

	ms, err := Jitter(model.ServerInfo{Host: addr}, 3)
	if err != nil {
		t.Fatalf("Jitter() error: %v", err)
	}
	if ms != 0 {
		t.Errorf("Jitter() with no successful pings = %v, want 0", ms)
	}
}

func TestJitterAgainstRealServer(t *testing.T) {
	addr, done := pingServer(t)
	defer func() { <-done }()

	ms, err := Jitter(model.ServerInfo{Host: addr}, 5)
	if err != nil {
		t.Fatalf("Jitter() error: %v", err)
	}
	if ms < 0 {
		t.Errorf("Jitter() = %v, want >= 0", ms)
	}
}
