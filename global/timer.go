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
	"time"
)

type SipTimer struct {
	DoneCh chan bool
	Tmr    *time.Timer
}

func NewSipTimer(d time.Duration) *SipTimer {
	return &SipTimer{
		DoneCh: make(chan bool),
		Tmr:    time.NewTimer(d),
	}
}

// Stop cancels the timer before it fires. Safe to call once only.
func (st *SipTimer) Stop() {
	if st.Tmr.Stop() {
		close(st.DoneCh)
	}
}
