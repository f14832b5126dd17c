/*
# Software Name : SIP Decoy Endpoint (SDE)
# SPDX-FileCopyrightText: Copyright (c) Orange Business - OINIS/Services/NSF
# SPDX-License-Identifier: Apache-2.0
#
# This software is distributed under the Apache-2.0
# See the "LICENSES" directory for more details.
#
# Authors:
# - Moatassem Talaat <moatassem.talaat@orange.com>

---
*/

package sip

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"sdego/config"
	"sdego/digest"
	. "sdego/global"
	"sdego/sip/status"
)

// SessionKey is the 4-tuple a peer session is demultiplexed on.
type SessionKey struct {
	LocalHost  string
	LocalPort  int
	RemoteHost string
	RemotePort int
}

func (ky SessionKey) String() string {
	return fmt.Sprintf("%s:%d<->%s:%d", ky.LocalHost, ky.LocalPort, ky.RemoteHost, ky.RemotePort)
}

// SipSession is one signaling conversation with one remote transport
// address. It owns its call transactions, the bistream trace and the
// idle/sustain timers. All handling is serialized on mu, so handlers and
// timer callbacks never interleave mid-transition.
type SipSession struct {
	Key SessionKey

	server      *SipServer // non-owning, transport and collaborators
	personality *config.Personality
	remoteUDP   *net.UDPAddr

	mu        sync.Mutex
	calls     map[string]*SipCall
	bistream  []TraceEntry
	challenge *digest.Authentication // at most one outstanding per session

	idleTimer    *SipTimer
	sustainTimer *SipTimer

	createdAt time.Time
	closed    bool

	handlers map[Method]func(*SipMessage)
}

func NewSipSession(srv *SipServer, ky SessionKey, remoteUDP *net.UDPAddr) *SipSession {
	ss := &SipSession{
		Key:         ky,
		server:      srv,
		personality: srv.cfg.PersonalityByAddress(ky.LocalHost),
		remoteUDP:   remoteUDP,
		calls:       make(map[string]*SipCall),
		createdAt:   time.Now(),
	}
	// explicit finite dispatch, everything else answers 501
	ss.handlers = map[Method]func(*SipMessage){
		INVITE:   ss.onInvite,
		ACK:      ss.onAck,
		CANCEL:   ss.onCancel,
		BYE:      ss.onBye,
		REGISTER: ss.onRegister,
		OPTIONS:  ss.onOptions,
	}
	ss.startIdleTimer()
	ss.startSustainTimer()
	LogInfo(LTSIPStack, fmt.Sprintf("New session [%s] personality [%s]", ky.String(), ss.personality.Name))
	return ss
}

func (session *SipSession) String() string {
	session.mu.Lock()
	defer session.mu.Unlock()
	return fmt.Sprintf("Peer: %s, Calls: %d, Since: %s", session.Key.String(), len(session.calls), session.createdAt.Format(time.RFC3339))
}

// ============================================================

// HandleIn processes one inbound datagram: trace it, parse it, dispatch
// it. Parse failures and responses are dropped without an answer.
func (session *SipSession) HandleIn(pdu []byte) {
	session.mu.Lock()
	defer session.mu.Unlock()
	if session.closed {
		return
	}

	raw := make([]byte, len(pdu))
	copy(raw, pdu)
	session.bistream = append(session.bistream, TraceEntry{Dir: INBOUND, Payload: raw})

	msg, err := ParseMessage(pdu)
	if err != nil {
		Prometrics.ParseErrors.Inc()
		LogWarning(LTSIPStack, fmt.Sprintf("Dropped unparseable datagram from [%s]: %v", session.Key.String(), err))
		return
	}
	if !msg.IsRequest() {
		LogInfo(LTSIPStack, fmt.Sprintf("Ignored inbound response %d from [%s]", msg.GetStatusCode(), session.Key.String()))
		return
	}

	handler, ok := session.handlers[msg.GetMethod()]
	if !ok {
		session.send(msg.CreateResponse(status.NotImplemented))
		return
	}
	handler(msg)
}

// send traces and writes one message. Lock held by the caller.
func (session *SipSession) send(msg *SipMessage) {
	pdu := msg.Bytes()
	session.bistream = append(session.bistream, TraceEntry{Dir: OUTBOUND, Payload: pdu})
	if _, err := session.server.conn.WriteToUDP(pdu, session.remoteUDP); err != nil {
		LogError(LTSystem, "Failed to send message: "+err.Error())
	}
}

// ============================================================
// method handlers - session lock held

func (session *SipSession) onInvite(sipmsg *SipMessage) {
	if ASCIIToLower(sipmsg.Headers.Value("Content-Type")) != AcceptedBodies {
		LogWarning(LTSIPStack, fmt.Sprintf("INVITE without SDP content type from [%s] - dropped", session.Key.String()))
		return
	}
	offer, err := ParseOffer(sipmsg.Body)
	if err != nil {
		Prometrics.ParseErrors.Inc()
		LogWarning(LTSIPStack, fmt.Sprintf("INVITE with unparseable SDP from [%s]: %v - dropped", session.Key.String(), err))
		return
	}
	if len(offer.Media) == 0 {
		LogWarning(LTSIPStack, fmt.Sprintf("INVITE without media sections from [%s] - dropped", session.Key.String()))
		return
	}
	media := AudioMedia(offer)
	if media == nil {
		LogWarning(LTSIPStack, fmt.Sprintf("INVITE without audio section from [%s] - dropped", session.Key.String()))
		return
	}
	if sipmsg.CallID == "" {
		LogWarning(LTSIPStack, fmt.Sprintf("INVITE without Call-ID from [%s] - dropped", session.Key.String()))
		return
	}
	if _, exists := session.calls[sipmsg.CallID]; exists {
		LogWarning(LTSIPStack, fmt.Sprintf("Duplicate INVITE for active Call-ID [%s] - dropped", sipmsg.CallID))
		return
	}

	usr := session.personality.User(sipmsg.ToUser)
	tplName := config.DefaultPersonality
	if usr != nil {
		tplName = usr.SdpTemplate
	}
	tpl := session.server.cfg.Template(tplName)
	remoteRtp := &net.UDPAddr{IP: session.remoteUDP.IP, Port: media.Port}

	call := newSipCall(session, sipmsg, usr, tpl, remoteRtp)
	session.calls[sipmsg.CallID] = call
	Prometrics.ConCalls.Inc()
	LogInfo(LTSIPStack, fmt.Sprintf("New call transaction [%s] callee [%s]", sipmsg.CallID, sipmsg.ToUser))
	call.start()
}

func (session *SipSession) onRegister(sipmsg *SipMessage) {
	for _, h := range []string{"To", "From", "Call-ID", "CSeq"} {
		if !sipmsg.Headers.Exists(h) {
			LogWarning(LTSIPStack, fmt.Sprintf("REGISTER missing %s header from [%s] - dropped", h, session.Key.String()))
			return
		}
	}

	identity := sipmsg.ToUser
	usr := session.personality.User(identity)
	if usr == nil {
		LogWarning(LTRegistrar, fmt.Sprintf("REGISTER for unknown identity [%s] from [%s]", identity, session.Key.String()))
		session.send(sipmsg.CreateResponse(status.NotFound))
		return
	}

	if usr.Password == "" {
		session.register(sipmsg, identity)
		session.send(sipmsg.CreateResponse(status.OK))
		return
	}

	authz := sipmsg.Headers.Value("Authorization")
	if authz == "" || session.challenge == nil {
		session.rechallenge(sipmsg, usr.Realm)
		return
	}

	creds, err := digest.ParseCredentials(authz)
	if err != nil {
		LogWarning(LTAuthentication, fmt.Sprintf("Bad Authorization header from [%s]: %v", session.Key.String(), err))
		Prometrics.AuthFailures.Inc()
		session.rechallenge(sipmsg, usr.Realm)
		return
	}

	if !session.challenge.Verify(identity, usr.Password, REGISTER.String(), creds) {
		LogWarning(LTAuthentication, fmt.Sprintf("Digest verification failed for identity [%s] from [%s]", identity, session.Key.String()))
		Prometrics.AuthFailures.Inc()
		// a failed attempt burns the nonce
		session.rechallenge(sipmsg, usr.Realm)
		return
	}

	LogInfo(LTAuthentication, fmt.Sprintf("Digest verification succeeded for identity [%s]", identity))
	session.challenge = nil
	session.register(sipmsg, identity)
	session.send(sipmsg.CreateResponse(status.OK))
}

// rechallenge issues a 401 with a fresh nonce, replacing any prior
// challenge on the session.
func (session *SipSession) rechallenge(sipmsg *SipMessage, realm string) {
	session.challenge = digest.NewChallenge(realm)
	resp := sipmsg.CreateResponse(status.Unauthorized)
	resp.Headers.Set("WWW-Authenticate", session.challenge.String())
	session.send(resp)
}

func (session *SipSession) register(sipmsg *SipMessage, identity string) {
	expires := DefaultExpires
	if hv := sipmsg.Headers.Value("Expires"); hv != "" {
		expires = Str2Int[int](hv)
	} else {
		var mtch []string
		if RMatch(sipmsg.Headers.Value("Contact"), ExpiresParameter, &mtch) {
			expires = Str2Int[int](mtch[1])
		}
	}
	session.server.registrar.Register(identity, sipmsg.ViaBranch, expires)
	Prometrics.Registrations.Inc()
}

func (session *SipSession) onAck(sipmsg *SipMessage) {
	if call, ok := session.calls[sipmsg.CallID]; ok {
		call.handleAck(sipmsg)
		return
	}
	LogInfo(LTSIPStack, fmt.Sprintf("ACK for unknown Call-ID [%s] ignored", sipmsg.CallID))
}

func (session *SipSession) onBye(sipmsg *SipMessage) {
	if call, ok := session.calls[sipmsg.CallID]; ok {
		call.handleBye(sipmsg)
		return
	}
	LogInfo(LTSIPStack, fmt.Sprintf("BYE for unknown Call-ID [%s] ignored", sipmsg.CallID))
}

func (session *SipSession) onCancel(sipmsg *SipMessage) {
	if call, ok := session.calls[sipmsg.CallID]; ok {
		call.handleCancel(sipmsg)
		return
	}
	LogInfo(LTSIPStack, fmt.Sprintf("CANCEL for unknown Call-ID [%s] ignored", sipmsg.CallID))
}

func (session *SipSession) onOptions(sipmsg *SipMessage) {
	resp := sipmsg.CreateResponse(status.OK)
	resp.Headers.Set("Allow", AllowedMethods)
	resp.Headers.Set("Accept", AcceptedBodies)
	resp.Headers.Set("Accept-Language", AcceptedLanguages)
	session.send(resp)
}

// ============================================================
// timers

func (session *SipSession) startIdleTimer() {
	tmr := NewSipTimer(SessionIdleTimeout)
	session.idleTimer = tmr
	go func() {
		select {
		case <-tmr.DoneCh:
			return
		case <-tmr.Tmr.C:
		}
		session.onIdleTimeout()
	}()
}

// onIdleTimeout is a reserved hook - the session only dies through the
// sustain cap or an explicit close. The timer re-arms itself.
func (session *SipSession) onIdleTimeout() {
	session.mu.Lock()
	defer session.mu.Unlock()
	if session.closed {
		return
	}
	session.startIdleTimer()
}

func (session *SipSession) startSustainTimer() {
	tmr := NewSipTimer(SessionSustainTimeout)
	session.sustainTimer = tmr
	go func() {
		select {
		case <-tmr.DoneCh:
			return
		case <-tmr.Tmr.C:
		}
		session.onSustainTimeout()
	}()
}

// onSustainTimeout is the hard cap on session lifetime regardless of
// activity, defending against a single flooding peer.
func (session *SipSession) onSustainTimeout() {
	session.mu.Lock()
	defer session.mu.Unlock()
	if session.closed {
		return
	}
	LogInfo(LTSIPStack, fmt.Sprintf("Session [%s] reached sustain timeout", session.Key.String()))
	session.closeLocked()
}

// ============================================================

func (session *SipSession) Close() {
	session.mu.Lock()
	defer session.mu.Unlock()
	if session.closed {
		return
	}
	session.closeLocked()
}

func (session *SipSession) closeLocked() {
	// deterministic closing order over a snapshot of the keys - calls
	// remove themselves from the map while we iterate
	callIDs := Keys(session.calls)
	slices.Sort(callIDs)
	for _, cid := range callIDs {
		if call, ok := session.calls[cid]; ok {
			call.close()
		}
	}

	if session.idleTimer != nil {
		session.idleTimer.Stop()
	}
	if session.sustainTimer != nil {
		session.sustainTimer.Stop()
	}
	session.closed = true
	session.dumpTrace()
	Sessions.Delete(session.Key.String())
}

// dumpTrace persists the bistream for forensic replay, only when traffic
// actually occurred.
func (session *SipSession) dumpTrace() {
	if len(session.bistream) == 0 {
		return
	}
	dir := filepath.Join(session.server.cfg.TraceRoot, time.Now().Format("2006-01-02"))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		LogError(LTSystem, "Cannot create trace directory: "+err.Error())
		return
	}
	name := fmt.Sprintf("Sipsession-%d-%s:%d-%d", session.Key.LocalPort, session.Key.RemoteHost, session.Key.RemotePort, time.Now().UnixNano())
	if err := os.WriteFile(filepath.Join(dir, name), EncodeTrace(session.bistream), 0o640); err != nil {
		LogError(LTSystem, "Cannot write trace file: "+err.Error())
	}
}
