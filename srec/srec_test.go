package srec

import (
	"errors"
	"testing"
)

func TestParseValidRecords(t *testing.T) {
	cases := []struct {
		name    string
		line    string
		kind    Kind
		address uint32
		data    []byte
	}{
		{"S0 header", "S0030000FC", KindHeader, 0x0000, nil},
		{"S1 data", "S1130000285F245F2212226F000424290008237C25", KindData16, 0x0000, []byte{0x28, 0x5F, 0x24, 0x5F, 0x22, 0x12, 0x22, 0x6F, 0x00, 0x04, 0x24, 0x29, 0x00, 0x08, 0x23, 0x7C}},
		{"S9 start", "S9030000FC", KindStart16, 0x0000, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, err := Parse([]byte(tc.line))
			if err != nil {
				t.Fatalf("Parse(%q) returned error: %v", tc.line, err)
			}
			if rec.Kind != tc.kind {
				t.Errorf("Kind = %q, want %q", rec.Kind, tc.kind)
			}
			if rec.Address != tc.address {
				t.Errorf("Address = 0x%X, want 0x%X", rec.Address, tc.address)
			}
			if rec.DataLen != len(tc.data) {
				t.Fatalf("DataLen = %d, want %d", rec.DataLen, len(tc.data))
			}
			for i, b := range tc.data {
				if rec.Data[i] != b {
					t.Errorf("Data[%d] = 0x%02X, want 0x%02X", i, rec.Data[i], b)
				}
			}
		})
	}
}

func TestParseChecksumMismatch(t *testing.T) {
	// Last byte flipped from the valid S9 record above.
	_, err := Parse([]byte("S9030000FD"))
	if !errors.Is(err, ErrChecksum) {
		t.Fatalf("err = %v, want ErrChecksum", err)
	}
}

func TestParseFormatErrors(t *testing.T) {
	cases := []string{
		"",           // too short
		"X9030000FC", // wrong leading char
		"S9",         // truncated
		"S9G30000FC", // non-hex count
		"S4030000FC", // unrecognized type
		"S1FF0000FC", // count claims far more bytes than the line holds
	}
	for _, line := range cases {
		if _, err := Parse([]byte(line)); !errors.Is(err, ErrFormat) {
			t.Errorf("Parse(%q) err = %v, want ErrFormat", line, err)
		}
	}
}

func TestParseParamOnEmptyAfterLineLen(t *testing.T) {
	// A line that is all CR/LF/NUL has LineLen 0, which is shorter
	// than the 4-character minimum and so reports ErrFormat, not a
	// distinct "empty" status.
	if _, err := Parse([]byte("\r\n")); !errors.Is(err, ErrFormat) {
		t.Errorf("err = %v, want ErrFormat", err)
	}
}

func TestKindClassification(t *testing.T) {
	if !KindData16.IsData() || !KindData24.IsData() || !KindData32.IsData() {
		t.Error("S1/S2/S3 should report IsData")
	}
	if KindStart16.IsData() {
		t.Error("S9 should not report IsData")
	}
	if !KindStart16.IsTerminator() || !KindStart24.IsTerminator() || !KindStart32.IsTerminator() {
		t.Error("S7/S8/S9 should report IsTerminator")
	}
	if KindData16.IsTerminator() {
		t.Error("S1 should not report IsTerminator")
	}
}

func TestLineLenStopsAtTerminators(t *testing.T) {
	cases := map[string]int{
		"S9030000FC":         10,
		"S9030000FC\r\n":     10,
		"S9030000FC\x00tail": 10,
	}
	for line, want := range cases {
		if got := LineLen([]byte(line)); got != want {
			t.Errorf("LineLen(%q) = %d, want %d", line, got, want)
		}
	}
}
