package charset

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromContentType(t *testing.T) {
	cases := map[string]string{
		"":                                 "",
		"text/html":                        "",
		"text/html; charset=UTF-8":         "utf-8",
		`text/html; charset="ISO-8859-1"`:  "iso-8859-1",
		"text/html;charset=windows-1252;":  "windows-1252",
		"text/html; foo=bar; charset=utf8": "utf8",
	}
	for in, want := range cases {
		require.Equalf(t, want, FromContentType(in), "content-type %q", in)
	}
}

func TestDecode_DeclaredCharsetWins(t *testing.T) {
	// 0xE9 is "é" in both latin code pages, invalid as UTF-8.
	s, err := Decode([]byte("Caf\xe9"), "iso-8859-1", DefaultFallbacks)
	require.NoError(t, err)
	require.Equal(t, "Café", s)
}

func TestDecode_FallsBackWhenUTF8IsInvalid(t *testing.T) {
	s, err := Decode([]byte("Caf\xe9 \x80 5"), "", DefaultFallbacks)
	require.NoError(t, err)
	require.Equal(t, "Café € 5", s)
}

func TestDecode_WrongDeclaredCharsetFallsBack(t *testing.T) {
	s, err := Decode([]byte("Caf\xe9"), "utf-8", []string{"utf-8", "iso-8859-1"})
	require.NoError(t, err)
	require.Equal(t, "Café", s)
}

func TestDecode_UnknownDeclaredCharsetIsSkipped(t *testing.T) {
	s, err := Decode([]byte("plain"), "x-no-such-charset", DefaultFallbacks)
	require.NoError(t, err)
	require.Equal(t, "plain", s)
}

func TestDecode_StripsUTF8BOM(t *testing.T) {
	s, err := Decode([]byte("\xef\xbb\xbfid,url"), "", DefaultFallbacks)
	require.NoError(t, err)
	require.Equal(t, "id,url", s)
}

func TestDecode_AllCandidatesFail(t *testing.T) {
	_, err := Decode([]byte{0xff, 0xfe, 0xfd}, "", []string{"utf-8"})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrEncoding))
	require.Contains(t, err.Error(), "utf-8")
}

func TestDecodeReader(t *testing.T) {
	s, err := DecodeReader(strings.NewReader("ok"), "", DefaultFallbacks)
	require.NoError(t, err)
	require.Equal(t, "ok", s)
}
