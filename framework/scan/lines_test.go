package scan

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/require"
)

func TestCountLines(t *testing.T) {
	cases := []struct {
		name  string
		input string
		lines int64
	}{
		{"empty", "", 0},
		{"single unterminated", "package main", 1},
		{"single terminated", "package main\n", 1},
		{"trailing partial", "a\nb\nc", 3},
		{"crlf", "a\r\nb\r\n", 2},
		{"blank lines", "\n\n\n", 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			n, size, err := CountLines(strings.NewReader(tc.input))
			require.NoError(t, err)
			require.Equal(t, tc.lines, n)
			require.Equal(t, int64(len(tc.input)), size)
		})
	}
}

func TestCountLinesLargeInput(t *testing.T) {
	input := strings.Repeat("0123456789\n", 20000)
	n, size, err := CountLines(iotest.HalfReader(strings.NewReader(input)))
	require.NoError(t, err)
	require.Equal(t, int64(20000), n)
	require.Equal(t, int64(len(input)), size)
}

func TestCountLinesBinary(t *testing.T) {
	_, _, err := CountLines(bytes.NewReader([]byte{'a', 0, 'b'}))
	require.ErrorIs(t, err, ErrBinary)

	// NUL bytes past the sniff window are ordinary content.
	late := append(bytes.Repeat([]byte("a\n"), sniffLen), 0)
	n, _, err := CountLines(bytes.NewReader(late))
	require.NoError(t, err)
	require.Equal(t, int64(sniffLen+1), n)
}

func TestCountLinesReadError(t *testing.T) {
	boom := errors.New("boom")
	_, _, err := CountLines(iotest.ErrReader(boom))
	require.ErrorIs(t, err, boom)
}

func TestLanguageOf(t *testing.T) {
	require.Equal(t, "Go", LanguageOf(".go"))
	require.Equal(t, "C#", LanguageOf(".CS"))
	require.Equal(t, "zig", LanguageOf(".zig"))
	require.Equal(t, "(none)", LanguageOf(""))
}
