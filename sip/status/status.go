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

package status

const (
	Trying  = 100
	Ringing = 180

	OK = 200

	BadRequest   = 400
	Unauthorized = 401
	NotFound     = 404

	RequestTerminated = 487

	ServerInternalError = 500
	NotImplemented      = 501
)
