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
	"github.com/pixelbender/go-sdp/sdp"

	"sdego/config"
	. "sdego/global"
)

// ParseOffer decodes the INVITE body. The caller decides what a missing
// audio section means.
func ParseOffer(body []byte) (*sdp.Session, error) {
	return sdp.Parse(body)
}

func AudioMedia(offer *sdp.Session) *sdp.Media {
	return Find(offer.Media, func(m *sdp.Media) bool {
		return m.Type == "audio" && m.Port > 0
	})
}

// BuildAnswer constructs the 200 OK body advertising the relay endpoint
// with the callee's configured media template.
func BuildAnswer(tpl *config.SdpTemplate, localIP string, rtpPort int) []byte {
	answer := &sdp.Session{
		Origin: &sdp.Origin{
			Username:       "-",
			SessionID:      int64(RandomNum(1000, 9000)),
			SessionVersion: 1,
			Address:        localIP,
		},
		Name: ServerName,
		Connection: &sdp.Connection{
			Address: localIP,
		},
		Media: []*sdp.Media{
			{
				Type:  "audio",
				Port:  rtpPort,
				Proto: "RTP/AVP",
				Format: []*sdp.Format{
					{Payload: tpl.PayloadType, Name: tpl.Codec, ClockRate: tpl.SampleRate},
				},
				Attributes: []*sdp.Attr{{Name: "ptime", Value: "20"}},
			},
		},
		Mode: "sendrecv",
	}
	return []byte(answer.String())
}
