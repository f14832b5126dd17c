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

package global

import (
	"net"
	"regexp"
	"sync"
	"time"

	"sdego/cl"
	"sdego/prometheus"
)

const (
	ServerName string = "SDEGo"
	EntityName string = "orange business"

	SipVersion string = "SIP/2.0"

	DefaultSipPort  int = 5060
	DefaultHttpPort int = 8080

	BufferSize int = 5120

	DeltaRune = 'a' - 'A'

	MagicCookie string = "z9hG4bK"

	AllowedMethods    string = "INVITE, ACK, CANCEL, OPTIONS, BYE"
	AcceptedBodies    string = "application/sdp"
	AcceptedLanguages string = "en"

	DefaultExpires int = 3600
)

// pacing of the decoy call lifecycle - variables so tests can shrink them
var (
	SetupDelay            = 100 * time.Millisecond
	TryingDelay           = time.Second
	SessionIdleTimeout    = 3 * time.Second
	SessionSustainTimeout = 20 * time.Second
)

var (
	ServerIPv4  net.IP
	SipUdpPort  int
	HttpTcpPort int

	WtGrp sync.WaitGroup

	BufferPool *sync.Pool

	Prometrics     *prometheus.Metrics
	SessionLimiter *cl.SessionLimiter
)

// ==========================================================

type Method int

const (
	UNKNOWN Method = iota
	INVITE
	ACK
	CANCEL
	BYE
	REGISTER
	OPTIONS
)

var DicMethod = map[Method]string{
	UNKNOWN:  "UNKNOWN",
	INVITE:   "INVITE",
	ACK:      "ACK",
	CANCEL:   "CANCEL",
	BYE:      "BYE",
	REGISTER: "REGISTER",
	OPTIONS:  "OPTIONS",
}

func (m Method) String() string {
	return DicMethod[m]
}

func MethodFromName(s string) Method {
	return GetEnum(DicMethod, ASCIIToUpper(s))
}

// ==========================================================

type MessageType int

const (
	INVALID MessageType = iota
	REQUEST
	RESPONSE
)

type Direction int

const (
	INBOUND Direction = iota
	OUTBOUND
)

var DicDirection = map[Direction]string{INBOUND: "in", OUTBOUND: "out"}

func (dir Direction) String() string {
	return DicDirection[dir]
}

func DirectionFromName(s string) Direction {
	return GetEnum(DicDirection, s)
}

// ==========================================================

type LogLevel int

const (
	LLInformation LogLevel = iota
	LLWarning
	LLError
)

var DicLogLevel = map[LogLevel]string{LLInformation: "INFO", LLWarning: "WARNING", LLError: "ERROR"}

func (ll LogLevel) String() string {
	return DicLogLevel[ll]
}

type LogTitle int

const (
	LTSystem LogTitle = iota
	LTConfiguration
	LTSIPStack
	LTMediaStack
	LTAuthentication
	LTRegistrar
	LTWebserver
)

var DicLogTitle = map[LogTitle]string{
	LTSystem:         "System",
	LTConfiguration:  "Configuration",
	LTSIPStack:       "SIP Stack",
	LTMediaStack:     "Media Stack",
	LTAuthentication: "Authentication",
	LTRegistrar:      "Registrar",
	LTWebserver:      "Webserver",
}

func (lt LogTitle) String() string {
	return DicLogTitle[lt]
}

// ==========================================================

var DicResponse = map[int]string{
	100: "Trying",
	180: "Ringing",
	200: "OK",
	400: "Bad Request",
	401: "Unauthorized",
	404: "Not Found",
	487: "Request Terminated",
	500: "Server Internal Error",
	501: "Not Implemented",
}

// ==========================================================

// compact header forms per RFC 3261 section 7.3.3
var DicCompactHeader = map[string]string{
	"i": "Call-ID",
	"m": "Contact",
	"e": "Content-Encoding",
	"l": "Content-Length",
	"c": "Content-Type",
	"f": "From",
	"s": "Subject",
	"t": "To",
	"v": "Via",
}

var KnownHeaders = []string{
	"Via", "From", "To", "Call-ID", "CSeq", "Contact", "Max-Forwards",
	"Content-Type", "Content-Length", "Expires", "Allow", "Accept",
	"Accept-Language", "WWW-Authenticate", "Authorization", "User-Agent",
}

// ==========================================================

type FieldPattern int

const (
	RequestStartLine FieldPattern = iota
	ResponseStartLine
	FullHeader
	CSeqHeader
	TagParameter
	BranchParameter
	URIUserPart
	AuthParameter
	ExpiresParameter
)

var DicFieldRegEx = map[FieldPattern]*regexp.Regexp{
	RequestStartLine:  regexp.MustCompile(`^([A-Za-z]+)\s+(\S+)\s+SIP/2\.0$`),
	ResponseStartLine: regexp.MustCompile(`^SIP/2\.0\s+(\d{3})\s*(.*)$`),
	FullHeader:        regexp.MustCompile(`^([^:\s]+)\s*:\s*(.*)$`),
	CSeqHeader:        regexp.MustCompile(`^(\d+)\s+([A-Za-z]+)$`),
	TagParameter:      regexp.MustCompile(`;tag=([^;>\s]+)`),
	BranchParameter:   regexp.MustCompile(`;branch=([^;>\s]+)`),
	URIUserPart:       regexp.MustCompile(`sips?:([^@;>\s]+)@`),
	AuthParameter:     regexp.MustCompile(`(\w+)=(?:"([^"]*)"|([^",\s]+))`),
	ExpiresParameter:  regexp.MustCompile(`;expires=(\d+)`),
}
