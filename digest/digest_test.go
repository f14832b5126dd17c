package digest

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"testing"
)

func md5hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func TestNewChallengeFields(t *testing.T) {
	auth := NewChallenge("example.com")
	if auth.Method != "Digest" || auth.Algorithm != "MD5" {
		t.Fatalf("unexpected scheme: %s/%s", auth.Method, auth.Algorithm)
	}
	if auth.Realm != "example.com" {
		t.Fatalf("realm = %s", auth.Realm)
	}
	if auth.Nonce == "" {
		t.Fatal("empty nonce")
	}
}

func TestChallengeNoncesAreDistinct(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		auth := NewChallenge("r")
		if seen[auth.Nonce] {
			t.Fatalf("nonce reused: %s", auth.Nonce)
		}
		seen[auth.Nonce] = true
	}
}

func TestParseCredentials(t *testing.T) {
	hv := `Digest username="100", realm="example.com", nonce="abc123", uri="sip:example.com", response="deadbeef", algorithm=MD5`
	creds, err := ParseCredentials(hv)
	if err != nil {
		t.Fatal(err)
	}
	for k, want := range map[string]string{
		"username":  "100",
		"realm":     "example.com",
		"nonce":     "abc123",
		"uri":       "sip:example.com",
		"response":  "deadbeef",
		"algorithm": "MD5",
	} {
		if creds[k] != want {
			t.Errorf("creds[%s] = %q, want %q", k, creds[k], want)
		}
	}
}

func TestParseCredentialsRejectsNonDigest(t *testing.T) {
	if _, err := ParseCredentials("Basic dXNlcjpwYXNz"); err == nil {
		t.Fatal("expected error for non-digest scheme")
	}
	if _, err := ParseCredentials(`Digest username="100"`); err == nil {
		t.Fatal("expected error without response parameter")
	}
}

func TestVerify(t *testing.T) {
	auth := NewChallenge("example.com")

	ha1 := md5hex("100:example.com:secret")
	ha2 := md5hex("REGISTER:sip:example.com")
	response := md5hex(fmt.Sprintf("%s:%s:%s", ha1, auth.Nonce, ha2))

	creds := Credentials{"uri": "sip:example.com", "response": response}
	if !auth.Verify("100", "secret", "REGISTER", creds) {
		t.Fatal("valid response rejected")
	}
	if auth.Verify("100", "wrong", "REGISTER", creds) {
		t.Fatal("wrong secret accepted")
	}
	creds["response"] = "0000"
	if auth.Verify("100", "secret", "REGISTER", creds) {
		t.Fatal("forged response accepted")
	}
}
