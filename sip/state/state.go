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

package state

type CallState int

const (
	NoSession CallState = iota // terminal - callee identity unknown
	Invite                     // initial - INVITE accepted, first response pending
	Trying
	Ringing
	Answered
	Cancelled
	TornDown
)

var dicCallState = map[CallState]string{
	NoSession: "NO_SESSION",
	Invite:    "INVITE",
	Trying:    "TRYING",
	Ringing:   "RINGING",
	Answered:  "ANSWERED",
	Cancelled: "CANCELLED",
	TornDown:  "TEARDOWN",
}

func (cs CallState) String() string {
	return dicCallState[cs]
}

// IsCancellable reports whether a matching CANCEL may still stop the call.
func (cs CallState) IsCancellable() bool {
	switch cs {
	case Invite, Trying, Ringing:
		return true
	}
	return false
}

func (cs CallState) IsFinal() bool {
	switch cs {
	case NoSession, Cancelled, TornDown:
		return true
	}
	return false
}
