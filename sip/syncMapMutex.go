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
	"sync"

	"sdego/global"
)

type ConcurrentMapMutex struct {
	_map map[string]*SipSession
	mu   sync.RWMutex
}

func NewConcurrentMapMutex() ConcurrentMapMutex {
	return ConcurrentMapMutex{_map: make(map[string]*SipSession)}
}

func (c *ConcurrentMapMutex) Store(ky string, ss *SipSession) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c._map[ky] = ss
	global.Prometrics.ConSessions.Inc()
}

func (c *ConcurrentMapMutex) Delete(ky string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c._map[ky]; !ok {
		return
	}
	delete(c._map, ky)
	global.Prometrics.ConSessions.Dec()
}

func (c *ConcurrentMapMutex) Load(ky string) (*SipSession, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c._map[ky]
	return s, ok
}

func (c *ConcurrentMapMutex) Range() map[string]*SipSession {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snapshot := make(map[string]*SipSession, len(c._map))
	for k, v := range c._map {
		snapshot[k] = v
	}
	return snapshot
}

func (c *ConcurrentMapMutex) IsEmpty() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c._map) == 0
}
