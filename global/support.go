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
	"errors"
	"fmt"
	"log"
	"math/rand"
	"net"
	"runtime"
	"strings"
)

// ============================================================
func LogCallStack(r any) {
	fmt.Printf("Panic Recovered! Encountered Error:\n%v\n", r)
	buf := make([]byte, 1024)
	n := runtime.Stack(buf, false)
	fmt.Printf("Stack trace:\n%s\n", buf[:n])
}

func GetLocalIPs() ([]net.IP, error) {
	var IPs []net.IP
	var ip net.IP
	ifaces, _ := net.Interfaces()
outer:
	for _, i := range ifaces {
		if i.Flags&net.FlagUp == 0 || i.Flags&net.FlagRunning == 0 {
			continue
		}
		addrs, _ := i.Addrs()
		for _, addr := range addrs {
			if v, ok := addr.(*net.IPNet); ok {
				ip = v.IP
				if ip.To4() != nil && ip.IsPrivate() {
					IPs = append(IPs, ip)
					continue outer
				}
			}
		}
	}
	if len(IPs) == 0 {
		return nil, errors.New("no valid IPv4 found")
	}
	return IPs, nil
}

func StartListening(ip net.IP, prt int) (*net.UDPConn, error) {
	var socket net.UDPAddr
	socket.IP = ip
	socket.Port = prt
	return net.ListenUDP("udp", &socket)
}

func GenerateUDPSocket(conn *net.UDPConn) *net.UDPAddr {
	return conn.LocalAddr().(*net.UDPAddr)
}

// =============================================================

func GetNextIndex(pdu []byte, markstrng string) int {
	markBytes := []byte(markstrng)
	for i := 0; i <= len(pdu)-len(markBytes); i++ {
		k := 0
		for k < len(markBytes) {
			if pdu[i+k] != markBytes[k] {
				goto nextloop
			}
			k++
		}
		return i
	nextloop:
	}
	return -1
}

func RandomNum(min, max uint32) uint32 {
	// #nosec G404: Ignoring gosec error - crypto is not required
	return uint32(rand.Int63n(int64(max-min)+1)) + min
}

// Convert string to int with default value with not included minimum and maximum
func Str2IntDefaultMinMax[T int | int8 | int16 | int32 | int64](s string, d, min, max T) (T, bool) {
	var out T
	if len(s) == 0 {
		return d, false
	}
	idx := 0
	isN := s[idx] == '-'
	if isN {
		idx++
	}
	for i := idx; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return d, false
		}
		out = out*10 + T(s[i]-'0')
	}
	if isN {
		out = -out
	}
	if out <= min || out >= max {
		return d, false
	}
	return out, true
}

func Str2Int[T int | int8 | int16 | int32 | int64](s string) T {
	var out T
	if len(s) == 0 {
		return out
	}
	idx := 0
	isN := s[idx] == '-'
	if isN {
		idx++
	}
	for i := idx; i < len(s); i++ {
		out = out*10 + T(s[i]-'0')
	}
	if isN {
		return -out
	}
	return out
}

func Str2Uint[T uint | uint8 | uint16 | uint32 | uint64](s string) T {
	var out T
	if len(s) == 0 {
		return out
	}
	for i := 0; i < len(s); i++ {
		out = out*10 + T(s[i]-'0')
	}
	return out
}

//==================================================

func ASCIIToLower(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if 'A' <= c && c <= 'Z' {
			c += byte(DeltaRune)
		}
		b.WriteByte(c)
	}
	return b.String()
}

func ASCIIToUpper(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if 'a' <= c && c <= 'z' {
			c -= byte(DeltaRune)
		}
		b.WriteByte(c)
	}
	return b.String()
}

func ASCIIPascal(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if 'a' <= c && c <= 'z' && (i == 0 || s[i-1] == '-' || s[i-1] == ' ') {
			c -= byte(DeltaRune)
		}
		b.WriteByte(c)
	}
	return b.String()
}

// canonical header name - expands compact forms then folds to the known casing
func HeaderCase(h string) string {
	h = ASCIIToLower(h)
	if full, ok := DicCompactHeader[h]; ok {
		return full
	}
	for _, k := range KnownHeaders {
		if ASCIIToLower(k) == h {
			return k
		}
	}
	return ASCIIPascal(h)
}

//==================================================

func Any[T any](items []*T, predict func(*T) bool) bool {
	for _, item := range items {
		if predict(item) {
			return true
		}
	}
	return false
}

func Find[T any](items []*T, predict func(*T) bool) *T {
	for _, item := range items {
		if predict(item) {
			return item
		}
	}
	return nil
}

func Filter[T any](items []*T, predict func(*T) bool) []*T {
	var result []*T
	for _, item := range items {
		if predict(item) {
			result = append(result, item)
		}
	}
	return result
}

func FirstKeyValue[T1 comparable, T2 any](m map[T1]T2) (T1, T2) {
	var key T1
	var value T2
	for k, v := range m {
		return k, v
	}
	return key, value
}

func Keys[T1 comparable, T2 any](m map[T1]T2) []T1 {
	var rslt []T1
	for k := range m {
		rslt = append(rslt, k)
	}
	return rslt
}

func GetEnum[T1 comparable, T2 comparable](m map[T1]T2, i T2) T1 {
	var rslt T1
	for k, v := range m {
		if v == i {
			return k
		}
	}
	return rslt
}

//===================================================================

func LogInfo(lt LogTitle, msg string) {
	LogHandler(LLInformation, lt, msg)
}

func LogWarning(lt LogTitle, msg string) {
	LogHandler(LLWarning, lt, msg)
}

func LogError(lt LogTitle, msg string) {
	LogHandler(LLError, lt, msg)
}

func LogHandler(ll LogLevel, lt LogTitle, msg string) {
	log.Printf("\t%v\t%v\t%s\n", ll.String(), lt.String(), msg)
}

//===================================================================

func RMatch(s string, rgxfp FieldPattern, mtch *[]string) bool {
	if s == "" {
		return false
	}
	*mtch = DicFieldRegEx[rgxfp].FindStringSubmatch(s)
	return *mtch != nil
}
