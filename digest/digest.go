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

// Package digest implements the RFC 2617 MD5 challenge/response scheme
// without qop, as deployed by legacy SIP endpoints.
package digest

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"sdego/global"
	"sdego/guid"
)

var ErrNoDigestCredentials = errors.New("authorization header carries no digest credentials")

type Authentication struct {
	Method    string
	Algorithm string
	Realm     string
	Nonce     string
}

func NewChallenge(realm string) *Authentication {
	return &Authentication{
		Method:    "Digest",
		Algorithm: "MD5",
		Realm:     realm,
		Nonce:     guid.NewNonce(),
	}
}

// String renders the WWW-Authenticate header value.
func (auth *Authentication) String() string {
	return fmt.Sprintf(`%s realm="%s",nonce="%s",algorithm=%s`, auth.Method, auth.Realm, auth.Nonce, auth.Algorithm)
}

// Credentials holds the name/value pairs of an Authorization header.
type Credentials map[string]string

func ParseCredentials(headerValue string) (Credentials, error) {
	scheme, params, found := strings.Cut(strings.TrimSpace(headerValue), " ")
	if !found || global.ASCIIToLower(scheme) != "digest" {
		return nil, ErrNoDigestCredentials
	}
	creds := make(Credentials)
	for _, mtch := range global.DicFieldRegEx[global.AuthParameter].FindAllStringSubmatch(params, -1) {
		value := mtch[2]
		if value == "" {
			value = mtch[3]
		}
		creds[global.ASCIIToLower(mtch[1])] = value
	}
	if _, ok := creds["response"]; !ok {
		return nil, ErrNoDigestCredentials
	}
	return creds, nil
}

// Verify checks the peer's response against this challenge's nonce.
// The expected value is MD5(MD5(user:realm:secret):nonce:MD5(method:uri)).
func (auth *Authentication) Verify(username, secret, method string, creds Credentials) bool {
	ha1 := hashOf(fmt.Sprintf("%s:%s:%s", username, auth.Realm, secret))
	ha2 := hashOf(fmt.Sprintf("%s:%s", method, creds["uri"]))
	expected := hashOf(fmt.Sprintf("%s:%s:%s", ha1, auth.Nonce, ha2))
	return expected == creds["response"]
}

func hashOf(s string) string {
	sum := md5.Sum([]byte(s)) // #nosec G401: mandated by the digest scheme
	return hex.EncodeToString(sum[:])
}
