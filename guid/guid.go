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

package guid

import (
	"strings"

	"github.com/google/uuid"
)

func newHex() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NewNonce returns a fresh opaque value for a digest challenge.
func NewNonce() string {
	return newHex()
}
