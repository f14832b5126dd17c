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

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	pion "github.com/pion/rtp"

	"sdego/global"
)

const ptimeFrame = 20 * time.Millisecond

// UdpStream is the media relay of one answered call: an ephemeral local
// endpoint tied to the caller's negotiated remote port. Inbound payload
// is optionally persisted to a date-partitioned dump file, outbound it
// can stream decoy audio.
type UdpStream struct {
	conn   *net.UDPConn
	remote *net.UDPAddr

	record       bool
	dumpRoot     string
	openedAt     time.Time
	file         *os.File
	recordFailed bool

	mu     sync.Mutex
	closed bool
	done   chan bool

	ssrc uint32
	seq  uint16
	ts   uint32
}

func NewUdpStream(localIP net.IP, remote *net.UDPAddr, record bool, dumpRoot string) (*UdpStream, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: localIP, Port: 0})
	if err != nil {
		return nil, err
	}
	stream := &UdpStream{
		conn:     conn,
		remote:   remote,
		record:   record,
		dumpRoot: dumpRoot,
		openedAt: time.Now(),
		done:     make(chan bool),
		ssrc:     global.RandomNum(1, 1<<31),
		seq:      uint16(global.RandomNum(1, 1<<15)),
	}
	go stream.receiver()
	global.LogInfo(global.LTMediaStack, fmt.Sprintf("Media relay open on port %d towards %s", stream.LocalPort(), remote.String()))
	return stream, nil
}

func (stream *UdpStream) LocalPort() int {
	return stream.conn.LocalAddr().(*net.UDPAddr).Port
}

func (stream *UdpStream) receiver() {
	buf := make([]byte, 2048)
	for {
		n, addr, err := stream.conn.ReadFromUDP(buf)
		if err != nil {
			return // closed
		}
		if !addr.IP.Equal(stream.remote.IP) {
			continue
		}

		var pkt pion.Packet
		if err := pkt.Unmarshal(buf[:n]); err != nil {
			global.LogWarning(global.LTMediaStack, "Dropped non-RTP datagram on media relay: "+err.Error())
			continue
		}
		global.Prometrics.RtpPackets.Inc()
		stream.dump(buf[:n])
	}
}

// dump persists the raw datagram. The file is created lazily on first
// payload, an open failure disables recording for this relay only.
func (stream *UdpStream) dump(data []byte) {
	if !stream.record || stream.recordFailed {
		return
	}
	stream.mu.Lock()
	defer stream.mu.Unlock()
	if stream.closed {
		return
	}
	if stream.file == nil {
		dir := filepath.Join(stream.dumpRoot, stream.openedAt.Format("2006-01-02"))
		if err := os.MkdirAll(dir, 0o750); err != nil {
			global.LogWarning(global.LTMediaStack, "RTP recording disabled for this relay: "+err.Error())
			stream.recordFailed = true
			return
		}
		name := fmt.Sprintf("%s_%s_%d_in.rtp", stream.openedAt.Format("15:04:05"), stream.remote.IP.String(), stream.remote.Port)
		file, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
		if err != nil {
			global.LogWarning(global.LTMediaStack, "RTP recording disabled for this relay: "+err.Error())
			stream.recordFailed = true
			return
		}
		stream.file = file
	}
	if _, err := stream.file.Write(data); err != nil {
		global.LogWarning(global.LTMediaStack, "RTP dump write failed: "+err.Error())
	}
}

// StartPlayback streams the PCM towards the caller, one G.711 frame
// every 20 ms, until the audio runs out or the relay closes.
func (stream *UdpStream) StartPlayback(pcm []int16, payloadType byte, sampleRate int) {
	samplesPerFrame := sampleRate / 50
	if samplesPerFrame <= 0 {
		samplesPerFrame = 160
	}
	go func() {
		ticker := time.NewTicker(ptimeFrame)
		defer ticker.Stop()
		for offset := 0; offset < len(pcm); offset += samplesPerFrame {
			select {
			case <-stream.done:
				return
			case <-ticker.C:
			}
			end := offset + samplesPerFrame
			if end > len(pcm) {
				end = len(pcm)
			}
			pkt := pion.Packet{
				Header: pion.Header{
					Version:        2,
					PayloadType:    payloadType,
					SequenceNumber: stream.seq,
					Timestamp:      stream.ts,
					SSRC:           stream.ssrc,
				},
				Payload: EncodeG711(pcm[offset:end], payloadType),
			}
			raw, err := pkt.Marshal()
			if err != nil {
				global.LogWarning(global.LTMediaStack, "RTP marshalling failed: "+err.Error())
				return
			}
			if _, err := stream.conn.WriteToUDP(raw, stream.remote); err != nil {
				return
			}
			stream.seq++
			stream.ts += uint32(samplesPerFrame)
		}
	}()
}

// Close shuts the relay down: trace file first, then the endpoint.
func (stream *UdpStream) Close() {
	stream.mu.Lock()
	defer stream.mu.Unlock()
	if stream.closed {
		return
	}
	stream.closed = true
	close(stream.done)
	if stream.file != nil {
		stream.file.Close()
		stream.file = nil
	}
	stream.conn.Close()
}
