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

package rtp

const (
	PCMU byte = 0
	PCMA byte = 8
)

const (
	muLawBias = 0x84
	muLawClip = 32635
	aLawClip  = 32635
)

func PCMToMuLaw(sample int16) byte {
	sign := (sample >> 8) & 0x80
	if sign != 0 {
		sample = -sample
	}
	if sample > muLawClip {
		sample = muLawClip
	}
	sample += muLawBias

	exponent := 7
	for mask := int16(0x4000); (sample&mask) == 0 && exponent > 0; mask >>= 1 {
		exponent--
	}
	mantissa := (sample >> (uint(exponent) + 3)) & 0x0F
	return byte(^(int16(sign) | int16(exponent<<4) | mantissa))
}

func PCMToALaw(sample int16) byte {
	sign := byte(0x80)
	if sample < 0 {
		sign = 0
		sample = -sample
	}
	if sample > aLawClip {
		sample = aLawClip
	}

	var compressed byte
	if sample >= 256 {
		exponent := 7
		for mask := int16(0x4000); (sample&mask) == 0 && exponent > 1; mask >>= 1 {
			exponent--
		}
		mantissa := (sample >> (uint(exponent) + 3)) & 0x0F
		compressed = byte(exponent<<4) | byte(mantissa)
	} else {
		compressed = byte(sample >> 4)
	}
	return (compressed | sign) ^ 0x55
}

// EncodeG711 packetizes one PCM frame with the given payload type.
// Unknown payload types fall back to mu-law.
func EncodeG711(pcm []int16, payloadType byte) []byte {
	out := make([]byte, len(pcm))
	for i, sample := range pcm {
		if payloadType == PCMA {
			out[i] = PCMToALaw(sample)
		} else {
			out[i] = PCMToMuLaw(sample)
		}
	}
	return out
}
