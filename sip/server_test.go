package sip

import (
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sdego/config"
	. "sdego/global"
	"sdego/prometheus"
	"sdego/registrar"
)

// startTestServer boots the full router on an ephemeral loopback port.
func startTestServer(t *testing.T, rateLimit int) *net.UDPAddr {
	t.Helper()
	Prometrics = prometheus.NewMetrics("sdegotest")
	ServerIPv4 = net.ParseIP("127.0.0.1")

	cfg := &config.Config{
		TraceRoot: filepath.Join(t.TempDir(), "bistreams"),
		RtpRoot:   filepath.Join(t.TempDir(), "rtp"),
		RateLimit: rateLimit,
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}

	conn := StartServer(cfg, registrar.NewDirectory(), 0, 0)
	t.Cleanup(func() { conn.Close() })
	return conn.LocalAddr().(*net.UDPAddr)
}

func newPeer(t *testing.T) *net.UDPConn {
	t.Helper()
	peer, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { peer.Close() })
	return peer
}

func readOn(t *testing.T, peer *net.UDPConn, timeout time.Duration) *SipMessage {
	t.Helper()
	buf := make([]byte, 4096)
	peer.SetReadDeadline(time.Now().Add(timeout))
	n, _, err := peer.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("expected a response: %v", err)
	}
	msg, err := ParseMessage(buf[:n])
	if err != nil {
		t.Fatalf("unparseable response %q: %v", buf[:n], err)
	}
	return msg
}

func TestServerDemultiplexesPeers(t *testing.T) {
	addr := startTestServer(t, -1)
	peerA := newPeer(t)
	peerB := newPeer(t)

	if _, err := peerA.WriteToUDP(buildRequest("OPTIONS", "a", "opt-a", 1, nil, ""), addr); err != nil {
		t.Fatal(err)
	}
	if _, err := peerB.WriteToUDP(buildRequest("OPTIONS", "b", "opt-b", 1, nil, ""), addr); err != nil {
		t.Fatal(err)
	}

	// each peer gets the answer to its own request, not the other's
	respA := readOn(t, peerA, 2*time.Second)
	if respA.GetStatusCode() != 200 || respA.CallID != "opt-a" {
		t.Fatalf("peer A got %d for Call-ID %q", respA.GetStatusCode(), respA.CallID)
	}
	respB := readOn(t, peerB, 2*time.Second)
	if respB.GetStatusCode() != 200 || respB.CallID != "opt-b" {
		t.Fatalf("peer B got %d for Call-ID %q", respB.GetStatusCode(), respB.CallID)
	}

	sessions := Sessions.Range()
	if len(sessions) != 2 {
		t.Fatalf("session count = %d, want 2", len(sessions))
	}
	portA := peerA.LocalAddr().(*net.UDPAddr).Port
	for _, ss := range sessions {
		wantCallID := "opt-b"
		if ss.Key.RemotePort == portA {
			wantCallID = "opt-a"
		}
		ss.mu.Lock()
		if len(ss.bistream) != 2 {
			t.Errorf("session [%s] traced %d payloads, want 2", ss.Key.String(), len(ss.bistream))
		}
		if !strings.Contains(string(ss.bistream[0].Payload), wantCallID) {
			t.Errorf("session [%s] traced a foreign datagram: %q", ss.Key.String(), ss.bistream[0].Payload)
		}
		ss.mu.Unlock()
	}

	// a second datagram from a known peer rides the existing session
	if _, err := peerA.WriteToUDP(buildRequest("OPTIONS", "a", "opt-a2", 1, nil, ""), addr); err != nil {
		t.Fatal(err)
	}
	readOn(t, peerA, 2*time.Second)
	if len(Sessions.Range()) != 2 {
		t.Fatalf("session count grew on repeat contact")
	}
}

func TestServerRateLimitGate(t *testing.T) {
	addr := startTestServer(t, 1)
	peerA := newPeer(t)
	peerB := newPeer(t)

	if _, err := peerA.WriteToUDP(buildRequest("OPTIONS", "a", "opt-a", 1, nil, ""), addr); err != nil {
		t.Fatal(err)
	}
	readOn(t, peerA, 2*time.Second)

	// the second new peer within the same second is dropped before any
	// session is built
	if _, err := peerB.WriteToUDP(buildRequest("OPTIONS", "b", "opt-b", 1, nil, ""), addr); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 4096)
	peerB.SetReadDeadline(time.Now().Add(400 * time.Millisecond))
	if n, _, err := peerB.ReadFromUDP(buf); err == nil {
		t.Fatalf("over-limit peer got an answer: %q", buf[:n])
	}
	if len(Sessions.Range()) != 1 {
		t.Fatalf("session count = %d, want 1", len(Sessions.Range()))
	}
}
