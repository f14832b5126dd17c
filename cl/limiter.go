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

package cl

import (
	"sync"
	"time"

	"sdego/prometheus"
)

type SessionLimiter struct {
	rate         int          // new sessions per second, -1 disables the gate
	ticker       *time.Ticker // ticker for timing
	sessionCount int          // sessions attempted within the current second
	mu           sync.Mutex   // mutex for thread safety
}

func NewSessionLimiter(rate int, pm *prometheus.Metrics, wg *sync.WaitGroup) *SessionLimiter {
	sl := &SessionLimiter{
		rate:   rate,
		ticker: time.NewTicker(time.Second),
	}
	wg.Add(1)
	go sl.resetCount(pm, wg)
	return sl
}

func (lmtr *SessionLimiter) resetCount(pm *prometheus.Metrics, wg *sync.WaitGroup) {
	defer wg.Done()
	for range lmtr.ticker.C {
		lmtr.mu.Lock()
		pm.Caps.Set(float64(lmtr.sessionCount))
		lmtr.sessionCount = 0
		lmtr.mu.Unlock()
	}
}

func (lmtr *SessionLimiter) AcceptNewSession() bool {
	lmtr.mu.Lock()
	defer lmtr.mu.Unlock()
	if lmtr.rate == -1 || lmtr.sessionCount < lmtr.rate {
		lmtr.sessionCount++
		return true // Session can be attempted
	}
	return false // Rate limit exceeded
}
