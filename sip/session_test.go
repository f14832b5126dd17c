package sip

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sdego/config"
	. "sdego/global"
	"sdego/prometheus"
	"sdego/registrar"
	"sdego/rtp"
	"sdego/sip/state"
	"sdego/sip/status"
)

const testDomain = "decoy.example.com"

const testOffer = "v=0\r\n" +
	"o=caller 123 123 IN IP4 127.0.0.1\r\n" +
	"s=call\r\n" +
	"c=IN IP4 127.0.0.1\r\n" +
	"t=0 0\r\n" +
	"m=audio 40000 RTP/AVP 0\r\n" +
	"a=rtpmap:0 PCMU/8000\r\n"

type testEnv struct {
	t    *testing.T
	srv  *SipServer
	ss   *SipSession
	peer *net.UDPConn
}

// newTestEnv wires a session to a loopback peer socket and shrinks the
// call pacing so the lifecycle completes within test time.
func newTestEnv(t *testing.T, users ...*config.User) *testEnv {
	t.Helper()

	oldSetup, oldTrying := SetupDelay, TryingDelay
	SetupDelay = 10 * time.Millisecond
	TryingDelay = 30 * time.Millisecond
	t.Cleanup(func() { SetupDelay, TryingDelay = oldSetup, oldTrying })

	Prometrics = prometheus.NewMetrics("sdegotest")
	ServerIPv4 = net.ParseIP("127.0.0.1")
	Sessions = NewConcurrentMapMutex()

	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: ServerIPv4})
	if err != nil {
		t.Fatal(err)
	}
	peer, err := net.ListenUDP("udp", &net.UDPAddr{IP: ServerIPv4})
	if err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{
		TraceRoot: filepath.Join(t.TempDir(), "bistreams"),
		RtpRoot:   filepath.Join(t.TempDir(), "rtp"),
		Personalities: map[string]*config.Personality{
			config.DefaultPersonality: {Domain: testDomain, Users: users},
		},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}

	srv := &SipServer{conn: conn, cfg: cfg, registrar: registrar.NewDirectory(), audio: rtp.NewRepo("")}

	local := conn.LocalAddr().(*net.UDPAddr)
	remote := peer.LocalAddr().(*net.UDPAddr)
	ky := SessionKey{LocalHost: local.IP.String(), LocalPort: local.Port, RemoteHost: remote.IP.String(), RemotePort: remote.Port}

	ss := NewSipSession(srv, ky, remote)
	Sessions.Store(ky.String(), ss)

	t.Cleanup(func() {
		ss.Close()
		conn.Close()
		peer.Close()
	})
	return &testEnv{t: t, srv: srv, ss: ss, peer: peer}
}

func (env *testEnv) read(timeout time.Duration) *SipMessage {
	env.t.Helper()
	buf := make([]byte, 4096)
	env.peer.SetReadDeadline(time.Now().Add(timeout))
	n, _, err := env.peer.ReadFromUDP(buf)
	if err != nil {
		env.t.Fatalf("expected a response: %v", err)
	}
	msg, err := ParseMessage(buf[:n])
	if err != nil {
		env.t.Fatalf("unparseable response %q: %v", buf[:n], err)
	}
	return msg
}

func (env *testEnv) expect(sc int, timeout time.Duration) *SipMessage {
	env.t.Helper()
	msg := env.read(timeout)
	if msg.GetStatusCode() != sc {
		env.t.Fatalf("got %d %s, want %d", msg.GetStatusCode(), msg.StartLine.ReasonPhrase, sc)
	}
	return msg
}

func (env *testEnv) expectSilence(d time.Duration) {
	env.t.Helper()
	buf := make([]byte, 4096)
	env.peer.SetReadDeadline(time.Now().Add(d))
	if n, _, err := env.peer.ReadFromUDP(buf); err == nil {
		env.t.Fatalf("unexpected datagram: %q", buf[:n])
	}
}

func (env *testEnv) callState(callID string) (state.CallState, bool) {
	env.ss.mu.Lock()
	defer env.ss.mu.Unlock()
	call, ok := env.ss.calls[callID]
	if !ok {
		return state.NoSession, false
	}
	return call.state, true
}

func buildRequest(method, callee, callID string, cseq int, extra map[string]string, body string) []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s sip:%s@%s SIP/2.0\r\n", method, callee, testDomain)
	fmt.Fprintf(&sb, "Via: SIP/2.0/UDP 127.0.0.1:5070;branch=z9hG4bKtst%s\r\n", callID)
	sb.WriteString("From: <sip:caller@example.com>;tag=t1\r\n")
	fmt.Fprintf(&sb, "To: <sip:%s@%s>\r\n", callee, testDomain)
	fmt.Fprintf(&sb, "Call-ID: %s\r\n", callID)
	fmt.Fprintf(&sb, "CSeq: %d %s\r\n", cseq, method)
	sb.WriteString("Max-Forwards: 70\r\n")
	for h, hv := range extra {
		fmt.Fprintf(&sb, "%s: %s\r\n", h, hv)
	}
	fmt.Fprintf(&sb, "Content-Length: %d\r\n\r\n%s", len(body), body)
	return []byte(sb.String())
}

func digestResponse(username, realm, secret, method, uri, nonce string) string {
	h := func(s string) string {
		sum := md5.Sum([]byte(s))
		return hex.EncodeToString(sum[:])
	}
	ha1 := h(fmt.Sprintf("%s:%s:%s", username, realm, secret))
	ha2 := h(fmt.Sprintf("%s:%s", method, uri))
	return h(fmt.Sprintf("%s:%s:%s", ha1, nonce, ha2))
}

func nonceOf(t *testing.T, resp *SipMessage) string {
	t.Helper()
	hv := resp.Headers.Value("WWW-Authenticate")
	var mtch []string
	if !RMatch(hv, AuthParameter, &mtch) {
		t.Fatalf("challenge header unusable: %q", hv)
	}
	for _, grp := range DicFieldRegEx[AuthParameter].FindAllStringSubmatch(hv, -1) {
		if grp[1] == "nonce" {
			return grp[2]
		}
	}
	t.Fatalf("no nonce in challenge: %q", hv)
	return ""
}

// ============================================================

func TestOptionsAnswered(t *testing.T) {
	env := newTestEnv(t)

	env.ss.HandleIn(buildRequest("OPTIONS", "anything", "opt-1", 1, nil, ""))
	resp := env.expect(status.OK, time.Second)

	if resp.Headers.Value("Allow") != AllowedMethods {
		t.Errorf("Allow = %q", resp.Headers.Value("Allow"))
	}
	if resp.Headers.Value("Accept") != AcceptedBodies {
		t.Errorf("Accept = %q", resp.Headers.Value("Accept"))
	}
	if resp.Headers.Value("Accept-Language") != AcceptedLanguages {
		t.Errorf("Accept-Language = %q", resp.Headers.Value("Accept-Language"))
	}
}

func TestUnknownMethodAnswers501(t *testing.T) {
	env := newTestEnv(t)

	env.ss.HandleIn(buildRequest("SUBSCRIBE", "100", "sub-1", 1, nil, ""))
	env.expect(status.NotImplemented, time.Second)
}

func TestInboundDroppedSilently(t *testing.T) {
	env := newTestEnv(t)

	// unparseable datagram
	env.ss.HandleIn([]byte("garbage that is not SIP\r\n\r\n"))
	// inbound response
	env.ss.HandleIn([]byte("SIP/2.0 200 OK\r\nCall-ID: x\r\nCSeq: 1 INVITE\r\n\r\n"))

	env.expectSilence(150 * time.Millisecond)
}

func TestRegisterUnknownIdentity(t *testing.T) {
	env := newTestEnv(t)

	env.ss.HandleIn(buildRequest("REGISTER", "999", "reg-1", 1, nil, ""))
	env.expect(status.NotFound, time.Second)
	if env.srv.registrar.Exists("999") {
		t.Fatal("unknown identity registered")
	}
}

func TestRegisterWithoutPassword(t *testing.T) {
	env := newTestEnv(t, &config.User{Username: "100"})

	env.ss.HandleIn(buildRequest("REGISTER", "100", "reg-1", 1, map[string]string{"Expires": "600"}, ""))
	env.expect(status.OK, time.Second)

	bnds := env.srv.registrar.Lookup("100")
	if len(bnds) != 1 {
		t.Fatalf("bindings = %d, want 1", len(bnds))
	}
	if bnds[0].Expires != 600 {
		t.Errorf("expires = %d, want 600", bnds[0].Expires)
	}
	if !strings.HasPrefix(bnds[0].Branch, "z9hG4bK") {
		t.Errorf("branch = %q", bnds[0].Branch)
	}
}

func TestRegisterContactExpires(t *testing.T) {
	env := newTestEnv(t, &config.User{Username: "100"})

	contact := "<sip:100@127.0.0.1:5070>;expires=120"
	env.ss.HandleIn(buildRequest("REGISTER", "100", "reg-1", 1, map[string]string{"Contact": contact}, ""))
	env.expect(status.OK, time.Second)

	if bnds := env.srv.registrar.Lookup("100"); len(bnds) != 1 || bnds[0].Expires != 120 {
		t.Fatalf("bindings = %+v", bnds)
	}
}

func TestRegisterDigestFlow(t *testing.T) {
	env := newTestEnv(t, &config.User{Username: "100", Password: "secret"})

	env.ss.HandleIn(buildRequest("REGISTER", "100", "reg-1", 1, nil, ""))
	challenge := env.expect(status.Unauthorized, time.Second)
	if !strings.Contains(challenge.Headers.Value("WWW-Authenticate"), `realm="`+testDomain+`"`) {
		t.Fatalf("challenge = %q", challenge.Headers.Value("WWW-Authenticate"))
	}
	nonce := nonceOf(t, challenge)

	uri := "sip:" + testDomain
	authz := fmt.Sprintf(`Digest username="100", realm="%s", nonce="%s", uri="%s", response="%s", algorithm=MD5`,
		testDomain, nonce, uri, digestResponse("100", testDomain, "secret", "REGISTER", uri, nonce))
	env.ss.HandleIn(buildRequest("REGISTER", "100", "reg-1", 2, map[string]string{"Authorization": authz}, ""))
	env.expect(status.OK, time.Second)

	if !env.srv.registrar.Exists("100") {
		t.Fatal("identity not registered after valid digest")
	}
}

func TestRegisterNonceRotatesOnFailure(t *testing.T) {
	env := newTestEnv(t, &config.User{Username: "100", Password: "secret"})

	env.ss.HandleIn(buildRequest("REGISTER", "100", "reg-1", 1, nil, ""))
	first := nonceOf(t, env.expect(status.Unauthorized, time.Second))

	authz := fmt.Sprintf(`Digest username="100", realm="%s", nonce="%s", uri="sip:%s", response="deadbeef", algorithm=MD5`,
		testDomain, first, testDomain)
	env.ss.HandleIn(buildRequest("REGISTER", "100", "reg-1", 2, map[string]string{"Authorization": authz}, ""))
	second := nonceOf(t, env.expect(status.Unauthorized, time.Second))

	if first == second {
		t.Fatal("nonce not rotated after failed attempt")
	}
	if env.srv.registrar.Exists("100") {
		t.Fatal("identity registered despite failed digest")
	}
}

func TestInviteLifecycle(t *testing.T) {
	env := newTestEnv(t, &config.User{Username: "100", PickupDelayMin: 1, PickupDelayMax: 1})

	env.ss.HandleIn(buildRequest("INVITE", "100", "call-1", 1, map[string]string{"Content-Type": "application/sdp"}, testOffer))

	env.expect(status.Trying, time.Second)
	env.expect(status.Ringing, time.Second)
	ok := env.expect(status.OK, 3*time.Second)

	if ok.Headers.Value("Content-Type") != AcceptedBodies {
		t.Errorf("Content-Type = %q", ok.Headers.Value("Content-Type"))
	}
	if ok.Headers.Value("CSeq") != "1 INVITE" {
		t.Errorf("CSeq = %q", ok.Headers.Value("CSeq"))
	}

	answer, err := ParseOffer(ok.Body)
	if err != nil {
		t.Fatalf("answer body does not parse: %v", err)
	}
	media := AudioMedia(answer)
	if media == nil || media.Port == 0 {
		t.Fatalf("answer advertises no audio endpoint: %+v", answer.Media)
	}

	env.ss.mu.Lock()
	call := env.ss.calls["call-1"]
	env.ss.mu.Unlock()
	if call == nil || call.state != state.Answered {
		t.Fatalf("call = %v", call)
	}
	if call.stream == nil || call.stream.LocalPort() != media.Port {
		t.Fatalf("relay not on the advertised port %d", media.Port)
	}
}

func TestInviteUnknownCallee(t *testing.T) {
	env := newTestEnv(t)

	env.ss.HandleIn(buildRequest("INVITE", "999", "call-1", 1, map[string]string{"Content-Type": "application/sdp"}, testOffer))
	env.expect(status.NotFound, time.Second)

	if st, ok := env.callState("call-1"); !ok || st != state.NoSession {
		t.Fatalf("call state = %s, present = %v", st, ok)
	}
	env.expectSilence(150 * time.Millisecond)
}

func TestInviteDroppedWithoutUsableOffer(t *testing.T) {
	env := newTestEnv(t, &config.User{Username: "100"})

	// no SDP content type
	env.ss.HandleIn(buildRequest("INVITE", "100", "call-1", 1, nil, testOffer))
	// unparseable body
	env.ss.HandleIn(buildRequest("INVITE", "100", "call-2", 1, map[string]string{"Content-Type": "application/sdp"}, "not an offer"))
	// no audio section
	env.ss.HandleIn(buildRequest("INVITE", "100", "call-3", 1, map[string]string{"Content-Type": "application/sdp"},
		"v=0\r\no=c 1 1 IN IP4 127.0.0.1\r\ns=x\r\nc=IN IP4 127.0.0.1\r\nt=0 0\r\nm=video 4000 RTP/AVP 31\r\n"))

	env.expectSilence(200 * time.Millisecond)
	for _, cid := range []string{"call-1", "call-2", "call-3"} {
		if _, ok := env.callState(cid); ok {
			t.Errorf("call %s exists despite unusable offer", cid)
		}
	}
}

func TestDuplicateInviteDropped(t *testing.T) {
	env := newTestEnv(t, &config.User{Username: "100", PickupDelayMin: 1, PickupDelayMax: 1})

	invite := buildRequest("INVITE", "100", "call-1", 1, map[string]string{"Content-Type": "application/sdp"}, testOffer)
	env.ss.HandleIn(invite)
	env.expect(status.Trying, time.Second)

	env.ss.HandleIn(invite)
	// the retransmission must not spawn a second transaction nor a second 100
	env.expect(status.Ringing, time.Second)

	env.ss.mu.Lock()
	count := len(env.ss.calls)
	env.ss.mu.Unlock()
	if count != 1 {
		t.Fatalf("call count = %d, want 1", count)
	}
}

func TestCancelTearsRingingCallDown(t *testing.T) {
	env := newTestEnv(t, &config.User{Username: "100", PickupDelayMin: 1, PickupDelayMax: 1})

	env.ss.HandleIn(buildRequest("INVITE", "100", "call-1", 1, map[string]string{"Content-Type": "application/sdp"}, testOffer))
	env.expect(status.Trying, time.Second)
	env.expect(status.Ringing, time.Second)

	// ACK before CANCEL must be ignored
	env.ss.HandleIn(buildRequest("ACK", "100", "call-1", 1, nil, ""))
	if st, _ := env.callState("call-1"); st != state.Ringing {
		t.Fatalf("state after stray ACK = %s", st)
	}

	// CSeq mismatch is a no-op
	env.ss.HandleIn(buildRequest("CANCEL", "100", "call-1", 2, nil, ""))
	env.expectSilence(150 * time.Millisecond)
	if st, _ := env.callState("call-1"); st != state.Ringing {
		t.Fatalf("state after mismatched CANCEL = %s", st)
	}

	env.ss.HandleIn(buildRequest("CANCEL", "100", "call-1", 1, nil, ""))
	terminated := env.expect(status.RequestTerminated, time.Second)
	if terminated.Headers.Value("CSeq") != "1 INVITE" {
		t.Errorf("487 CSeq = %q", terminated.Headers.Value("CSeq"))
	}
	okCancel := env.expect(status.OK, time.Second)
	if okCancel.Headers.Value("CSeq") != "1 CANCEL" {
		t.Errorf("200 CSeq = %q", okCancel.Headers.Value("CSeq"))
	}
	if st, _ := env.callState("call-1"); st != state.Cancelled {
		t.Fatalf("state after CANCEL = %s", st)
	}

	// no more lifecycle responses, the pending pickup was disarmed
	env.expectSilence(1200 * time.Millisecond)

	env.ss.HandleIn(buildRequest("BYE", "100", "call-1", 2, nil, ""))
	env.expect(status.OK, time.Second)
	if _, ok := env.callState("call-1"); ok {
		t.Fatal("call survived BYE after CANCEL")
	}
}

func TestCancelBeforeFirstResponse(t *testing.T) {
	env := newTestEnv(t, &config.User{Username: "100", PickupDelayMin: 1, PickupDelayMax: 1})

	// widen the first-response window so the CANCEL lands before it
	SetupDelay = 300 * time.Millisecond

	env.ss.HandleIn(buildRequest("INVITE", "100", "call-1", 1, map[string]string{"Content-Type": "application/sdp"}, testOffer))
	env.ss.HandleIn(buildRequest("CANCEL", "100", "call-1", 1, nil, ""))

	env.expect(status.RequestTerminated, time.Second)
	env.expect(status.OK, time.Second)
	if st, _ := env.callState("call-1"); st != state.Cancelled {
		t.Fatalf("state after early CANCEL = %s", st)
	}

	// the disarmed lifecycle must never emit the 100
	env.expectSilence(500 * time.Millisecond)
}

func TestAckClosesCancelledCall(t *testing.T) {
	env := newTestEnv(t, &config.User{Username: "100", PickupDelayMin: 1, PickupDelayMax: 1})

	env.ss.HandleIn(buildRequest("INVITE", "100", "call-1", 1, map[string]string{"Content-Type": "application/sdp"}, testOffer))
	env.expect(status.Trying, time.Second)
	env.expect(status.Ringing, time.Second)

	env.ss.HandleIn(buildRequest("CANCEL", "100", "call-1", 1, nil, ""))
	env.expect(status.RequestTerminated, time.Second)
	env.expect(status.OK, time.Second)

	// an ACK that does not correlate to the INVITE must not close the call
	env.ss.HandleIn(buildRequest("ACK", "100", "call-1", 2, nil, ""))
	if st, ok := env.callState("call-1"); !ok || st != state.Cancelled {
		t.Fatalf("state after mismatched ACK = %s, present = %v", st, ok)
	}

	env.ss.HandleIn(buildRequest("ACK", "100", "call-1", 1, nil, ""))
	env.expectSilence(150 * time.Millisecond)
	if _, ok := env.callState("call-1"); ok {
		t.Fatal("call survived ACK after CANCEL")
	}
}

func TestSustainTimeoutClosesSessionAndDumpsTrace(t *testing.T) {
	oldSustain := SessionSustainTimeout
	SessionSustainTimeout = 300 * time.Millisecond
	defer func() { SessionSustainTimeout = oldSustain }()

	env := newTestEnv(t)

	env.ss.HandleIn(buildRequest("OPTIONS", "anything", "opt-1", 1, nil, ""))
	env.expect(status.OK, time.Second)

	deadline := time.Now().Add(2 * time.Second)
	for !Sessions.IsEmpty() {
		if time.Now().After(deadline) {
			t.Fatal("session not closed by sustain timeout")
		}
		time.Sleep(20 * time.Millisecond)
	}

	files, err := filepath.Glob(filepath.Join(env.srv.cfg.TraceRoot, "*", "Sipsession-*"))
	if err != nil || len(files) != 1 {
		t.Fatalf("trace files = %v (%v)", files, err)
	}

	raw, err := os.ReadFile(files[0])
	if err != nil {
		t.Fatal(err)
	}
	entries, err := DecodeTrace(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || entries[0].Dir != INBOUND || entries[1].Dir != OUTBOUND {
		t.Fatalf("trace entries = %d", len(entries))
	}
	if !strings.HasPrefix(string(entries[1].Payload), "SIP/2.0 200") {
		t.Errorf("outbound trace = %q", entries[1].Payload)
	}
}
