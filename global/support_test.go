package global

import "testing"

func TestHeaderCase(t *testing.T) {
	for in, want := range map[string]string{
		"i":                "Call-ID",
		"v":                "Via",
		"c":                "Content-Type",
		"call-id":          "Call-ID",
		"CSEQ":             "CSeq",
		"www-authenticate": "WWW-Authenticate",
		"x-custom-header":  "X-Custom-Header",
	} {
		if got := HeaderCase(in); got != want {
			t.Errorf("HeaderCase(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGetNextIndex(t *testing.T) {
	pdu := []byte("header\r\n\r\nbody")
	if idx := GetNextIndex(pdu, "\r\n\r\n"); idx != 6 {
		t.Errorf("index = %d, want 6", idx)
	}
	if idx := GetNextIndex(pdu, "missing"); idx != -1 {
		t.Errorf("index = %d, want -1", idx)
	}
}

func TestStr2IntDefaultMinMax(t *testing.T) {
	// bounds are exclusive
	for _, tc := range []struct {
		in   string
		want int
		ok   bool
	}{
		{"5060", 5060, true},
		{"1024", 9999, false},
		{"65536", 9999, false},
		{"", 9999, false},
		{"12x4", 9999, false},
	} {
		got, ok := Str2IntDefaultMinMax(tc.in, 9999, 1024, 65536)
		if got != tc.want || ok != tc.ok {
			t.Errorf("Str2IntDefaultMinMax(%q) = %d/%v, want %d/%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestRandomNumInclusive(t *testing.T) {
	if got := RandomNum(7, 7); got != 7 {
		t.Fatalf("RandomNum(7,7) = %d", got)
	}
	for i := 0; i < 100; i++ {
		got := RandomNum(1, 3)
		if got < 1 || got > 3 {
			t.Fatalf("RandomNum(1,3) = %d", got)
		}
	}
}

func TestMethodFromName(t *testing.T) {
	if m := MethodFromName("invite"); m != INVITE {
		t.Errorf("invite resolved to %s", m)
	}
	if m := MethodFromName("SUBSCRIBE"); m != UNKNOWN {
		t.Errorf("SUBSCRIBE resolved to %s", m)
	}
}

func TestRMatch(t *testing.T) {
	var mtch []string
	if !RMatch("INVITE sip:100@h SIP/2.0", RequestStartLine, &mtch) || mtch[1] != "INVITE" {
		t.Fatalf("request line match = %v", mtch)
	}
	if RMatch("", RequestStartLine, &mtch) {
		t.Fatal("empty string matched")
	}
	if !RMatch("<sip:a@b>;tag=xyz", TagParameter, &mtch) || mtch[1] != "xyz" {
		t.Fatalf("tag match = %v", mtch)
	}
}
