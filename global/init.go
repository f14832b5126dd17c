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
	"sync"
)

func InitializeEngine() {
	BufferPool = newSyncPool(BufferSize, BufferSize)
}

func newSyncPool(bsz, csz int) *sync.Pool {
	return &sync.Pool{
		New: func() any {
			lst := make([]byte, bsz, csz)
			return &lst
		},
	}
}
