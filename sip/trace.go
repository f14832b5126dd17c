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

	. "sdego/global"
)

// TraceEntry is one wire payload with its direction, in arrival order.
type TraceEntry struct {
	Dir     Direction
	Payload []byte
}

var ErrBadTrace = NewError(103, "malformed trace record")

// EncodeTrace renders the bistream in a replayable, length-prefixed form:
// one "dir length" line per record followed by the raw payload bytes.
func EncodeTrace(entries []TraceEntry) []byte {
	var bb bytes.Buffer
	for _, e := range entries {
		bb.WriteString(fmt.Sprintf("%s %d\n", e.Dir.String(), len(e.Payload)))
		bb.Write(e.Payload)
		bb.WriteString("\n")
	}
	return bb.Bytes()
}

// DecodeTrace is the inverse of EncodeTrace, byte-exact.
func DecodeTrace(raw []byte) ([]TraceEntry, error) {
	var entries []TraceEntry
	for len(raw) > 0 {
		nl := bytes.IndexByte(raw, '\n')
		if nl == -1 {
			return nil, ErrBadTrace
		}
		var dir string
		var size int
		if _, err := fmt.Sscanf(string(raw[:nl]), "%s %d", &dir, &size); err != nil {
			return nil, ErrBadTrace
		}
		raw = raw[nl+1:]
		if len(raw) < size+1 || raw[size] != '\n' {
			return nil, ErrBadTrace
		}
		payload := make([]byte, size)
		copy(payload, raw[:size])
		entries = append(entries, TraceEntry{Dir: DirectionFromName(dir), Payload: payload})
		raw = raw[size+1:]
	}
	return entries, nil
}
