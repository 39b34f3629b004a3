// Package textio reads vendor log files whose text encoding is not declared.
package textio

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/korean"
)

// Encoding labels understood by the reader. Any other WHATWG label is looked
// up through htmlindex.
const (
	UTF8   = "utf-8"
	CP949  = "cp949"
	EUCKR  = "euc-kr"
	Latin1 = "latin-1"
)

// DefaultEncodings is the attempt order used when none is configured.
var DefaultEncodings = []string{UTF8, CP949, EUCKR, Latin1}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// IOFailure reports an OS-level read error.
type IOFailure struct {
	Path string
	Err  error
}

func (e *IOFailure) Error() string {
	return fmt.Sprintf("textio: read %s: %v", e.Path, e.Err)
}

func (e *IOFailure) Unwrap() error {
	return e.Err
}

// Attempt records one failed decoding attempt.
type Attempt struct {
	Encoding string
	Err      error
}

// Decoded is the result of reading a file.
type Decoded struct {
	Text     string
	Encoding string    // encoding that succeeded; empty when Replaced
	Attempts []Attempt // failed attempts, in order
	Replaced bool      // every encoding failed; invalid bytes were replaced
}

// Lines splits the text into lines without trailing carriage returns.
func (d *Decoded) Lines() []string {
	if d.Text == "" {
		return nil
	}
	lines := strings.Split(d.Text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// Reader decodes files by trying encodings in order.
type Reader struct {
	encodings []string
}

// NewReader returns a reader that tries the given encodings in order, or
// DefaultEncodings when none are given.
func NewReader(encodings ...string) *Reader {
	if len(encodings) == 0 {
		encodings = DefaultEncodings
	}
	return &Reader{encodings: encodings}
}

// Encodings returns the attempt order.
func (r *Reader) Encodings() []string { return r.encodings }

// ReadFile reads and decodes a file. Only OS errors are returned, as *IOFailure.
func (r *Reader) ReadFile(path string) (*Decoded, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &IOFailure{Path: path, Err: err}
	}
	return r.Decode(raw), nil
}

// Decode decodes raw bytes. It never fails: when every encoding is rejected
// the bytes are decoded as UTF-8 with invalid sequences replaced by U+FFFD.
func (r *Reader) Decode(raw []byte) *Decoded {
	d := &Decoded{}
	if len(raw) == 0 {
		if len(r.encodings) > 0 {
			d.Encoding = r.encodings[0]
		}
		return d
	}
	for _, name := range r.encodings {
		text, err := decodeAs(name, raw)
		if err != nil {
			d.Attempts = append(d.Attempts, Attempt{Encoding: name, Err: err})
			continue
		}
		d.Text = text
		d.Encoding = name
		return d
	}
	d.Text = strings.ToValidUTF8(string(raw), string(utf8.RuneError))
	d.Replaced = true
	return d
}

func decodeAs(name string, raw []byte) (string, error) {
	switch strings.ToLower(name) {
	case "utf-8", "utf8":
		if !utf8.Valid(raw) {
			return "", eris.New("invalid utf-8")
		}
		return string(bytes.TrimPrefix(raw, utf8BOM)), nil
	case "cp949", "uhc", "windows-949":
		return decodeStrict(korean.EUCKR, raw)
	case "euc-kr", "euckr":
		if err := checkEUCKR(raw); err != nil {
			return "", err
		}
		return decodeStrict(korean.EUCKR, raw)
	case "latin-1", "latin1", "iso-8859-1":
		return decodeStrict(charmap.ISO8859_1, raw)
	default:
		enc, err := htmlindex.Get(name)
		if err != nil {
			return "", eris.Errorf("unsupported encoding %q", name)
		}
		return decodeStrict(enc, raw)
	}
}

// decodeStrict treats any replacement character in the output as a failure,
// since x/text decoders substitute invalid input rather than erroring.
func decodeStrict(enc encoding.Encoding, raw []byte) (string, error) {
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", err
	}
	if bytes.ContainsRune(out, utf8.RuneError) {
		return "", eris.New("undecodable bytes")
	}
	return string(out), nil
}

// checkEUCKR accepts only ASCII and KS X 1001 double-byte pairs, which is the
// subset of CP949 that plain EUC-KR defines.
func checkEUCKR(raw []byte) error {
	for i := 0; i < len(raw); i++ {
		b := raw[i]
		if b < 0x80 {
			continue
		}
		if b < 0xA1 || b > 0xFE || i+1 >= len(raw) {
			return eris.Errorf("invalid euc-kr lead byte 0x%02X at %d", b, i)
		}
		t := raw[i+1]
		if t < 0xA1 || t > 0xFE {
			return eris.Errorf("invalid euc-kr trail byte 0x%02X at %d", t, i+1)
		}
		i++
	}
	return nil
}
