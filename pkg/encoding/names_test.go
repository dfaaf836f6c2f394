package encoding

import "testing"

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"thigh.L", "thigh.L"},
		{"  spine.001 \n", "spine.001"},
		{"hand.R\x00\x00", "hand.R"},
		{"Cafe\u0301", "Caf\u00e9"}, // combining acute composes
		{"", ""},
	}

	for _, tt := range tests {
		if got := NormalizeName(tt.in); got != tt.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDecodeName_UTF8(t *testing.T) {
	if got := DecodeName([]byte("腕.L\x00junk")); got != "腕.L" {
		t.Errorf("expected 腕.L, got %q", got)
	}
}

func TestDecodeName_Legacy(t *testing.T) {
	name := "팔.L"
	legacy := EncodeLegacyName(name)
	if string(legacy) == name {
		t.Fatal("expected EUC-KR bytes to differ from UTF-8")
	}
	if got := DecodeName(legacy); got != name {
		t.Errorf("expected %q, got %q", name, got)
	}
}

func TestEncodeLegacyName_ASCII(t *testing.T) {
	if got := string(EncodeLegacyName("forearm.L")); got != "forearm.L" {
		t.Errorf("expected ASCII to pass through, got %q", got)
	}
}
