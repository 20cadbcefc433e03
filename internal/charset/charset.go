// Package charset decodes payloads whose text encoding is not reliably
// declared by the sender.
package charset

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
)

// ErrEncoding is returned when no candidate encoding decodes the payload.
var ErrEncoding = errors.New("no candidate encoding decodes payload")

// DefaultFallbacks is tried, in order, after the declared charset.
var DefaultFallbacks = []string{"utf-8", "windows-1252", "iso-8859-1"}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// FromContentType returns the lower-cased charset parameter of a
// Content-Type header value, or "" when there is none.
func FromContentType(ct string) string {
	if ct == "" {
		return ""
	}
	if _, params, err := mime.ParseMediaType(ct); err == nil {
		return strings.ToLower(strings.TrimSpace(params["charset"]))
	}
	// tolerate malformed headers such as "text/html;charset=UTF-8;"
	lower := strings.ToLower(ct)
	idx := strings.Index(lower, "charset=")
	if idx < 0 {
		return ""
	}
	v := lower[idx+len("charset="):]
	if semi := strings.IndexByte(v, ';'); semi >= 0 {
		v = v[:semi]
	}
	return strings.Trim(strings.TrimSpace(v), `"'`)
}

// Decode returns b as a string, decoded with the declared charset when it is
// known and decodes strictly, otherwise with the first fallback that does.
func Decode(b []byte, declared string, fallbacks []string) (string, error) {
	candidates := make([]string, 0, len(fallbacks)+1)
	if declared != "" {
		candidates = append(candidates, declared)
	}
	candidates = append(candidates, fallbacks...)

	tried := make([]string, 0, len(candidates))
	for _, name := range candidates {
		s, ok := decodeStrict(b, name)
		if ok {
			return s, nil
		}
		tried = append(tried, name)
	}
	return "", fmt.Errorf("%w (tried %s)", ErrEncoding, strings.Join(tried, ", "))
}

// DecodeReader reads r fully and decodes it like Decode.
func DecodeReader(r io.Reader, declared string, fallbacks []string) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read: %w", err)
	}
	return Decode(b, declared, fallbacks)
}

func decodeStrict(b []byte, name string) (string, bool) {
	enc, canonical, err := lookup(name)
	if err != nil {
		return "", false
	}
	if canonical == "utf-8" {
		b = bytes.TrimPrefix(b, utf8BOM)
		if !utf8.Valid(b) {
			return "", false
		}
		return string(b), true
	}
	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", false
	}
	// x/text maps bytes undefined in the code page to U+FFFD.
	if bytes.ContainsRune(out, utf8.RuneError) {
		return "", false
	}
	return string(out), true
}

func lookup(name string) (encoding.Encoding, string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "utf8", "utf-8":
		return encoding.Nop, "utf-8", nil
	// the WHATWG index aliases these to windows-1252, keep the real code pages
	case "latin1", "latin-1", "iso-8859-1", "iso8859-1":
		return charmap.ISO8859_1, "iso-8859-1", nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252, "windows-1252", nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, "", err
	}
	canonical, err := htmlindex.Name(enc)
	if err != nil {
		return nil, "", err
	}
	return enc, canonical, nil
}
