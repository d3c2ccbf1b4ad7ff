package core

import "testing"

func TestDisplayTextCleanUTF8(t *testing.T) {
	text, clean := DisplayText([]byte("HTTP/1.1 200 OK\r\n\r\nhello"))
	if !clean {
		t.Fatal("expected clean decode for ASCII payload")
	}
	if text != "HTTP/1.1 200 OK\r\n\r\nhello" {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestDisplayTextSanitizesInvalidBytes(t *testing.T) {
	raw := []byte{'o', 'k', 0xff, 0xfe, '!'}
	text, clean := DisplayText(raw)
	if clean {
		t.Fatal("expected clean=false for invalid UTF-8")
	}
	if text != "ok�!" {
		t.Fatalf("unexpected sanitized text %q", text)
	}
	// Sanitizing must not touch the raw bytes.
	if raw[2] != 0xff {
		t.Fatal("DisplayText mutated its input")
	}
}

func TestReportCloneIsIndependent(t *testing.T) {
	r := Report{
		ID:          "id",
		Request:     []byte("req"),
		Response:    []byte("resp"),
		LatenciesMs: map[string]int64{"receive": 7},
		Warnings:    []string{"w"},
	}
	c := r.Clone()
	c.Request[0] = 'X'
	c.Response[0] = 'X'
	c.LatenciesMs["receive"] = 1
	c.Warnings[0] = "changed"

	if string(r.Request) != "req" || string(r.Response) != "resp" {
		t.Fatal("clone aliased byte slices")
	}
	if r.LatenciesMs["receive"] != 7 || r.Warnings[0] != "w" {
		t.Fatal("clone aliased map or warnings")
	}
	if c.BytesReceived() != 4 {
		t.Fatalf("BytesReceived = %d, want 4", c.BytesReceived())
	}
}

func TestVerdictSuccess(t *testing.T) {
	if !VerdictSuccess.Success() {
		t.Fatal("VerdictSuccess.Success() = false")
	}
	if VerdictFailure.Success() {
		t.Fatal("VerdictFailure.Success() = true")
	}
}
