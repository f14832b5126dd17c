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
	. "sdego/global"
)

// SipHeaders is an ordered, case-insensitive header collection.
// Compact forms (i, f, t, v, ...) fold into their full names.
type SipHeaders struct {
	names  []string            // canonical names, insertion order
	values map[string][]string // lowercase name -> values, arrival order
}

func NewSipHeaders() *SipHeaders {
	return &SipHeaders{values: make(map[string][]string)}
}

func (hdrs *SipHeaders) Add(name, value string) {
	cn := HeaderCase(name)
	ky := ASCIIToLower(cn)
	if _, ok := hdrs.values[ky]; !ok {
		hdrs.names = append(hdrs.names, cn)
	}
	hdrs.values[ky] = append(hdrs.values[ky], value)
}

// Set replaces all values of the header, keeping its original position.
func (hdrs *SipHeaders) Set(name, value string) {
	cn := HeaderCase(name)
	ky := ASCIIToLower(cn)
	if _, ok := hdrs.values[ky]; !ok {
		hdrs.names = append(hdrs.names, cn)
	}
	hdrs.values[ky] = []string{value}
}

func (hdrs *SipHeaders) Value(name string) string {
	vals := hdrs.values[ASCIIToLower(HeaderCase(name))]
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}

func (hdrs *SipHeaders) Values(name string) []string {
	return hdrs.values[ASCIIToLower(HeaderCase(name))]
}

func (hdrs *SipHeaders) Exists(name string) bool {
	_, ok := hdrs.values[ASCIIToLower(HeaderCase(name))]
	return ok
}

// Names returns the canonical header names in insertion order.
func (hdrs *SipHeaders) Names() []string {
	return hdrs.names
}
