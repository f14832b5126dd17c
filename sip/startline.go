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

	. "sdego/global"
)

type SipStartLine struct {
	Method

	RUri     string
	UserPart string

	StatusCode   int
	ReasonPhrase string
}

func (sl *SipStartLine) String() string {
	if sl.StatusCode != 0 {
		return fmt.Sprintf("%s %d %s", SipVersion, sl.StatusCode, sl.ReasonPhrase)
	}
	return fmt.Sprintf("%s %s %s", sl.Method.String(), sl.RUri, SipVersion)
}

func parseStartLine(line string) (*SipStartLine, MessageType) {
	var mtch []string
	if RMatch(line, RequestStartLine, &mtch) {
		sl := &SipStartLine{Method: MethodFromName(mtch[1]), RUri: mtch[2]}
		if RMatch(sl.RUri, URIUserPart, &mtch) {
			sl.UserPart = mtch[1]
		}
		return sl, REQUEST
	}
	if RMatch(line, ResponseStartLine, &mtch) {
		return &SipStartLine{StatusCode: Str2Int[int](mtch[1]), ReasonPhrase: mtch[2]}, RESPONSE
	}
	return nil, INVALID
}
