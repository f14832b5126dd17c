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
	"time"

	"sdego/config"
	. "sdego/global"
	"sdego/rtp"
	"sdego/sip/state"
	"sdego/sip/status"
)

// SipCall is the per-Call-ID transaction of a peer session. It advances
// through the decoy call lifecycle on a single re-armed timer, pacing
// responses like a human callee would.
type SipCall struct {
	session *SipSession // non-owning, send routing and removal only
	CallID  string

	state state.CallState

	invite   *SipMessage
	user     *config.User
	template *config.SdpTemplate

	remoteRtpAddr *net.UDPAddr
	stream        *rtp.UdpStream

	timer *SipTimer // at most one pending advance per call
}

func newSipCall(ss *SipSession, invite *SipMessage, usr *config.User, tpl *config.SdpTemplate, remoteRtpAddr *net.UDPAddr) *SipCall {
	return &SipCall{
		session:       ss,
		CallID:        invite.CallID,
		state:         state.Invite,
		invite:        invite,
		user:          usr,
		template:      tpl,
		remoteRtpAddr: remoteRtpAddr,
	}
}

func (call *SipCall) String() string {
	return fmt.Sprintf("Call-ID: %s, State: %s", call.CallID, call.state.String())
}

// start arms the first advance. Session lock held by the caller.
func (call *SipCall) start() {
	call.armTimer(SetupDelay)
}

func (call *SipCall) armTimer(d time.Duration) {
	tmr := NewSipTimer(d)
	call.timer = tmr
	go func() {
		select {
		case <-tmr.DoneCh:
			return
		case <-tmr.Tmr.C:
		}
		call.advance()
	}()
}

func (call *SipCall) stopTimer() {
	if call.timer != nil {
		call.timer.Stop()
		call.timer = nil
	}
}

// advance is the single state-machine entry point, invoked by the timer
// goroutine. It serializes against inbound handling via the session lock.
func (call *SipCall) advance() {
	ss := call.session
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if ss.closed {
		return
	}
	call.timer = nil

	switch call.state {
	case state.Invite:
		if call.user == nil {
			LogWarning(LTSIPStack, fmt.Sprintf("Unknown callee [%s] - Call-ID [%s]", call.invite.ToUser, call.CallID))
			ss.send(call.invite.CreateResponse(status.NotFound))
			call.state = state.NoSession
			return
		}
		ss.send(call.invite.CreateResponse(status.Trying))
		call.state = state.Trying
		call.armTimer(TryingDelay)

	case state.Trying:
		ss.send(call.invite.CreateResponse(status.Ringing))
		call.state = state.Ringing
		delay := RandomNum(uint32(call.user.PickupDelayMin), uint32(call.user.PickupDelayMax))
		call.armTimer(time.Duration(delay) * time.Second)

	case state.Ringing:
		call.answer()

	default:
		// a stale fire after CANCEL or teardown, nothing to advance
	}
}

// answer opens the media relay and sends the 200 OK with the SDP answer.
// No further timer - the call now only reacts to ACK/BYE/CANCEL.
func (call *SipCall) answer() {
	ss := call.session
	srv := ss.server

	stream, err := rtp.NewUdpStream(ServerIPv4, call.remoteRtpAddr, srv.cfg.RecordRTP, srv.cfg.RtpRoot)
	if err != nil {
		LogError(LTMediaStack, fmt.Sprintf("Cannot open media relay for Call-ID [%s]: %v", call.CallID, err))
		ss.send(call.invite.CreateResponse(status.ServerInternalError))
		call.state = state.TornDown
		delete(ss.calls, call.CallID)
		Prometrics.ConCalls.Dec()
		return
	}
	call.stream = stream

	resp := call.invite.CreateResponse(status.OK)
	resp.Headers.Set("Content-Type", AcceptedBodies)
	resp.Body = BuildAnswer(call.template, ServerIPv4.String(), stream.LocalPort())
	ss.send(resp)
	call.state = state.Answered

	if pcm, ok := srv.audio.Get(call.template.AudioFile); ok {
		stream.StartPlayback(pcm, call.template.PayloadType, call.template.SampleRate)
	}
}

// handleCancel stops the pending advance when the CANCEL correlates to
// the original INVITE. A CSeq mismatch is a logged no-op.
func (call *SipCall) handleCancel(cancel *SipMessage) {
	if cancel.CSeqNum != call.invite.CSeqNum {
		LogWarning(LTSIPStack, fmt.Sprintf("CANCEL CSeq [%d] does not match INVITE CSeq [%d] - Call-ID [%s]", cancel.CSeqNum, call.invite.CSeqNum, call.CallID))
		return
	}
	if !call.state.IsCancellable() {
		LogWarning(LTSIPStack, fmt.Sprintf("CANCEL in state %s ignored - Call-ID [%s]", call.state.String(), call.CallID))
		return
	}
	call.stopTimer()
	call.session.send(call.invite.CreateResponse(status.RequestTerminated))
	call.session.send(cancel.CreateResponse(status.OK))
	call.state = state.Cancelled
}

// ACK closes a cancelled call when it correlates to the original INVITE.
// An ACK in any other state is ignored - normally answered calls never
// tear down here, a documented gap.
func (call *SipCall) handleAck(ack *SipMessage) {
	if ack.CSeqNum != call.invite.CSeqNum {
		LogWarning(LTSIPStack, fmt.Sprintf("ACK CSeq [%d] does not match INVITE CSeq [%d] - Call-ID [%s]", ack.CSeqNum, call.invite.CSeqNum, call.CallID))
		return
	}
	if call.state != state.Cancelled {
		LogInfo(LTSIPStack, fmt.Sprintf("ACK in state %s ignored - Call-ID [%s]", call.state.String(), call.CallID))
		return
	}
	call.close()
}

// BYE closes a cancelled call with a 200 OK. Same gap as handleAck for
// every other state.
func (call *SipCall) handleBye(bye *SipMessage) {
	if call.state != state.Cancelled {
		LogInfo(LTSIPStack, fmt.Sprintf("BYE in state %s ignored - Call-ID [%s]", call.state.String(), call.CallID))
		return
	}
	call.session.send(bye.CreateResponse(status.OK))
	call.close()
}

// close releases the call: media relay first, then timer and state, then
// removal from the owning session. Idempotent in effect.
func (call *SipCall) close() {
	if call.stream != nil {
		call.stream.Close()
		call.stream = nil
	}
	call.stopTimer()
	if call.state != state.TornDown {
		call.state = state.TornDown
		delete(call.session.calls, call.CallID)
		Prometrics.ConCalls.Dec()
	}
}
