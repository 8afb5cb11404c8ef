package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitizeTextRemovesNulAndControls(t *testing.T) {
	require.Equal(t, "abcd\n\txy", SanitizeText("ab\x00cd\x01\x02\n\txy"))
}

func TestSanitizeTextNormalizesLines(t *testing.T) {
	in := "Title  \r\n\r\n\r\n\r\nfirst para\u00ad line\t\rsecond\ufffd line\n\n\n"
	require.Equal(t, "Title\n\nfirst para line\nsecond line", SanitizeText(in))
}

func TestSanitizeTextKeepsParagraphBreaks(t *testing.T) {
	in := "one\n\ntwo\n" + PageBreakMarker + "\nthree"
	require.Equal(t, in, SanitizeText(in))
	require.Equal(t, "", SanitizeText(" \x00\x01 "))
}
