// Package encoding decodes and normalizes the names read from scene and mesh
// files so that bones and objects compare equal however they were written.
package encoding

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeName returns s in Unicode NFC with surrounding blanks and
// trailing null bytes removed.
func NormalizeName(s string) string {
	s = strings.TrimRight(s, "\x00")
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	return norm.NFC.String(s)
}

// DecodeName turns raw name bytes into a normalized UTF-8 name. Bytes that
// are not valid UTF-8 are decoded as EUC-KR, which older exporters write;
// if that fails too the bytes are kept as they are.
func DecodeName(data []byte) string {
	if i := bytes.IndexByte(data, 0); i >= 0 {
		data = data[:i]
	}
	if utf8.Valid(data) {
		return NormalizeName(string(data))
	}
	decoded, _, err := transform.Bytes(korean.EUCKR.NewDecoder(), data)
	if err != nil {
		return string(data)
	}
	return NormalizeName(string(decoded))
}

// EncodeLegacyName encodes name as EUC-KR, the inverse of DecodeName for
// legacy files. Names that EUC-KR cannot represent come back as UTF-8.
func EncodeLegacyName(name string) []byte {
	encoded, _, err := transform.Bytes(korean.EUCKR.NewEncoder(), []byte(name))
	if err != nil {
		return []byte(name)
	}
	return encoded
}
