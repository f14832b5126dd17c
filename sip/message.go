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
	"bytes"
	"fmt"
	"strings"

	. "sdego/global"
)

var (
	ErrBadStartLine = NewError(101, "malformed start line")
	ErrBadHeader    = NewError(102, "malformed header line")
)

type SipMessage struct {
	MsgType   MessageType
	StartLine *SipStartLine
	Headers   *SipHeaders
	Body      []byte

	//all fields below are only set in incoming messages
	FromHeader string
	ToHeader   string

	CallID    string
	FromTag   string
	ToUser    string
	ViaBranch string

	CSeqNum    uint32
	CSeqMethod Method
}

func NewResponseMessage(sc int, rp string) *SipMessage {
	sipmsg := &SipMessage{MsgType: RESPONSE, StartLine: new(SipStartLine), Headers: NewSipHeaders()}
	if 100 <= sc && sc <= 699 {
		sipmsg.StartLine.StatusCode = sc
		dfltsc := Str2Int[int](fmt.Sprintf("%d00", sc/100))
		reason := rp
		if reason == "" {
			reason = DicResponse[sc]
		}
		if reason == "" {
			reason = DicResponse[dfltsc]
		}
		sipmsg.StartLine.ReasonPhrase = reason
	}
	return sipmsg
}

// ParseMessage decodes one datagram into a structured message. Any
// structural defect fails the whole datagram - there is no partial parse.
func ParseMessage(pdu []byte) (*SipMessage, error) {
	head := pdu
	var body []byte
	if idx := GetNextIndex(pdu, "\r\n\r\n"); idx != -1 {
		head = pdu[:idx]
		body = pdu[idx+4:]
	}

	lines := strings.Split(string(head), "\r\n")
	sl, mt := parseStartLine(lines[0])
	if mt == INVALID {
		return nil, ErrBadStartLine
	}

	sipmsg := &SipMessage{MsgType: mt, StartLine: sl, Headers: NewSipHeaders(), Body: body}

	var mtch []string
	for _, ln := range lines[1:] {
		if ln == "" {
			continue
		}
		if !RMatch(ln, FullHeader, &mtch) {
			return nil, ErrBadHeader
		}
		sipmsg.Headers.Add(mtch[1], mtch[2])
	}

	sipmsg.CallID = sipmsg.Headers.Value("Call-ID")
	sipmsg.FromHeader = sipmsg.Headers.Value("From")
	sipmsg.ToHeader = sipmsg.Headers.Value("To")

	if RMatch(sipmsg.FromHeader, TagParameter, &mtch) {
		sipmsg.FromTag = mtch[1]
	}
	if RMatch(sipmsg.ToHeader, URIUserPart, &mtch) {
		sipmsg.ToUser = mtch[1]
	}

	// branch of the last Via header
	if vias := sipmsg.Headers.Values("Via"); len(vias) > 0 {
		if RMatch(vias[len(vias)-1], BranchParameter, &mtch) {
			sipmsg.ViaBranch = mtch[1]
		}
	}

	if RMatch(sipmsg.Headers.Value("CSeq"), CSeqHeader, &mtch) {
		sipmsg.CSeqNum = Str2Uint[uint32](mtch[1])
		sipmsg.CSeqMethod = MethodFromName(mtch[2])
	}

	return sipmsg, nil
}

func (sipmsg *SipMessage) IsRequest() bool {
	return sipmsg.MsgType == REQUEST
}

func (sipmsg *SipMessage) IsResponse() bool {
	return sipmsg.MsgType == RESPONSE
}

func (sipmsg *SipMessage) GetMethod() Method {
	return sipmsg.StartLine.Method
}

func (sipmsg *SipMessage) GetStatusCode() int {
	return sipmsg.StartLine.StatusCode
}

// CreateResponse builds a response to this request, mirroring the
// dialogue headers the peer needs for correlation.
func (sipmsg *SipMessage) CreateResponse(sc int) *SipMessage {
	resp := NewResponseMessage(sc, "")
	for _, via := range sipmsg.Headers.Values("Via") {
		resp.Headers.Add("Via", via)
	}
	resp.Headers.Set("From", sipmsg.FromHeader)
	resp.Headers.Set("To", sipmsg.ToHeader)
	resp.Headers.Set("Call-ID", sipmsg.CallID)
	resp.Headers.Set("CSeq", sipmsg.Headers.Value("CSeq"))
	return resp
}

// Bytes renders the message for the wire. Content-Length always reflects
// the actual body size.
func (sipmsg *SipMessage) Bytes() []byte {
	var bb bytes.Buffer

	bb.WriteString(sipmsg.StartLine.String())
	bb.WriteString("\r\n")

	sipmsg.Headers.Set("Content-Length", fmt.Sprintf("%d", len(sipmsg.Body)))

	for _, h := range sipmsg.Headers.Names() {
		for _, hv := range sipmsg.Headers.Values(h) {
			if hv != "" {
				bb.WriteString(fmt.Sprintf("%v: %v\r\n", h, hv))
			}
		}
	}

	bb.WriteString("\r\n")
	bb.Write(sipmsg.Body)
	return bb.Bytes()
}
