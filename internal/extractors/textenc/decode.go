// Package textenc decodes text files whose character encoding is unknown.
package textenc

import (
	"bytes"
	"errors"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"
)

// ErrUndecodable is returned when no candidate encoding fits the bytes.
var ErrUndecodable = errors.New("no candidate encoding decodes the content")

// Encoding names reported by Decode.
const (
	UTF8    = "utf-8"
	UTF16   = "utf-16"
	GB18030 = "gb18030"
	Big5    = "big5"
)

type candidate struct {
	name string
	enc  encoding.Encoding
}

// candidates are tried in order after the byte-order-mark checks.
var candidates = []candidate{
	{GB18030, simplifiedchinese.GB18030},
	{Big5, traditionalchinese.Big5},
}

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// Decode converts data to a UTF-8 string and reports which encoding was used.
//
// Encodings are tried in a fixed order: UTF-8 (with or without BOM), UTF-16
// when a BOM is present, GB18030, then Big5. The first that decodes without
// replacement characters or NUL bytes is accepted. Empty input decodes to
// the empty string.
func Decode(data []byte) (string, string, error) {
	if len(data) == 0 {
		return "", UTF8, nil
	}

	if bytes.HasPrefix(data, bomUTF16LE) || bytes.HasPrefix(data, bomUTF16BE) {
		dec := unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder()
		out, err := dec.Bytes(data)
		if err == nil && acceptable(string(out)) {
			return string(out), UTF16, nil
		}
		return "", "", ErrUndecodable
	}

	trimmed := bytes.TrimPrefix(data, bomUTF8)
	if utf8.Valid(trimmed) {
		s := string(trimmed)
		if !strings.ContainsRune(s, 0) {
			return s, UTF8, nil
		}
		return "", "", ErrUndecodable
	}

	for _, c := range candidates {
		out, err := c.enc.NewDecoder().Bytes(data)
		if err != nil {
			continue
		}
		if s := string(out); acceptable(s) {
			return s, c.name, nil
		}
	}

	return "", "", ErrUndecodable
}

// acceptable rejects decodes that produced replacement or NUL characters.
func acceptable(s string) bool {
	return !strings.ContainsRune(s, utf8.RuneError) && !strings.ContainsRune(s, 0)
}

// Names returns the candidate encodings in the order they are tried.
func Names() []string {
	names := []string{UTF8, UTF16}
	for _, c := range candidates {
		names = append(names, c.name)
	}
	return names
}
