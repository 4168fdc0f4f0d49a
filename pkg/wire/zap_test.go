package wire

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func strFrames(parts ...string) [][]byte {
	frames := make([][]byte, len(parts))
	for i, p := range parts {
		frames[i] = []byte(p)
	}
	return frames
}

func TestParseZAPRequest(t *testing.T) {
	req := &ZAPRequest{
		Version:     ZAPVersion,
		Sequence:    "7",
		Domain:      "ZAPTEST",
		Address:     "127.0.0.1",
		RoutingID:   "IDENT",
		Mechanism:   MechanismPlain,
		Credentials: strFrames("testuser", "testpass"),
	}

	got, err := ParseZAPRequest(req.Frames())
	if err != nil {
		t.Fatalf("ParseZAPRequest failed: %v", err)
	}
	if diff := cmp.Diff(req, got); diff != "" {
		t.Errorf("request mismatch (-want +got):\n%s", diff)
	}
}

func TestParseZAPRequestTooShort(t *testing.T) {
	_, err := ParseZAPRequest(strFrames("1.0", "1", "d", "a", "IDENT"))
	if !errors.Is(err, ErrMalformedRequest) {
		t.Errorf("error = %v, want ErrMalformedRequest", err)
	}
}

func TestParseZAPReply(t *testing.T) {
	valid := func() [][]byte {
		return (&ZAPReply{
			Version:    ZAPVersion,
			Sequence:   "1",
			StatusCode: StatusSuccess,
			StatusText: "OK",
			UserID:     "anonymous",
		}).Frames()
	}

	tests := []struct {
		name   string
		mutate func([][]byte) [][]byte
		want   ProtocolCode
	}{
		{"valid", func(f [][]byte) [][]byte { return f }, 0},
		{"bad version", func(f [][]byte) [][]byte { f[0] = []byte("invalid_version"); return f }, ProtocolZAPBadVersion},
		{"bad sequence", func(f [][]byte) [][]byte { f[1] = []byte("invalid_request_id"); return f }, ProtocolZAPBadRequestID},
		{"bad status", func(f [][]byte) [][]byte { f[2] = []byte("invalid_status"); return f }, ProtocolZAPInvalidStatusCode},
		{"too many parts", func(f [][]byte) [][]byte {
			return append(f[:5:5], []byte{}, f[5])
		}, ProtocolZAPMalformedReply},
		{"too few parts", func(f [][]byte) [][]byte { return f[:5] }, ProtocolZAPMalformedReply},
		{"bad metadata", func(f [][]byte) [][]byte { f[5] = []byte{4, 'N', 'a'}; return f }, ProtocolZAPInvalidMetadata},
		{"good metadata", func(f [][]byte) [][]byte {
			f[5] = []byte{4, 'U', 's', 'e', 'r', 0, 0, 0, 2, 'o', 'k'}
			return f
		}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply, err := ParseZAPReply(tt.mutate(valid()), "1")
			if tt.want == 0 {
				if err != nil {
					t.Fatalf("ParseZAPReply failed: %v", err)
				}
				if !reply.Accepted() {
					t.Error("reply not accepted")
				}
				return
			}
			code, ok := ProtocolCodeOf(err)
			if !ok {
				t.Fatalf("error %v carries no protocol code", err)
			}
			if code != tt.want {
				t.Errorf("code = %v, want %v", code, tt.want)
			}
		})
	}
}

func TestStatusHelpers(t *testing.T) {
	if StatusValue(StatusAuthFailure) != 400 {
		t.Errorf("StatusValue(400) = %d", StatusValue(StatusAuthFailure))
	}
	if StatusValue("invalid_status") != 0 {
		t.Error("invalid status should map to 0")
	}
	if StatusName(StatusTemporaryFailure) != "TEMPORARY_FAILURE" {
		t.Errorf("StatusName(300) = %q", StatusName(StatusTemporaryFailure))
	}
	if ProtocolZAPBadVersion.String() != "ZAP_BAD_VERSION" {
		t.Errorf("String() = %q", ProtocolZAPBadVersion.String())
	}
}

func TestParseProtocolCode(t *testing.T) {
	for _, c := range protocolCodes {
		got, err := ParseProtocolCode(c.String())
		if err != nil {
			t.Fatalf("ParseProtocolCode(%q) failed: %v", c, err)
		}
		if got != c {
			t.Errorf("ParseProtocolCode(%q) = %v", c, got)
		}
	}
	if _, err := ParseProtocolCode("BOGUS"); err == nil {
		t.Error("expected error for unknown name")
	}
}
