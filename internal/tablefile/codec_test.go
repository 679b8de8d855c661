package tablefile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []struct {
		name   string
		fields []string
	}{
		{"plain", []string{"1AB21CS001", "ANITA RAO", "CSE", "3", "1", "T1,T2"}},
		{"embedded delimiter", []string{"a,b", "c"}},
		{"embedded quote", []string{`say "hi"`, "x"}},
		{"embedded backslash", []string{`C:\temp\x`, "y"}},
		{"embedded newline", []string{"line1\nline2", "z"}},
		{"carriage return", []string{"a\rb"}},
		{"leading and trailing space", []string{"  padded  ", "bare"}},
		{"empty fields", []string{"", "mid", ""}},
		{"everything at once", []string{`a,"b"\n` + "\nc", ` spaced `}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DecodeRow(EncodeRow(tc.fields))
			assert.Equal(t, tc.fields, got)
		})
	}
}

func TestDecodeRowTrimsUnquotedFields(t *testing.T) {
	got := DecodeRow("  a , b ,\"  keep  \", c")
	assert.Equal(t, []string{"a", "b", "  keep  ", "c"}, got)
}

func TestDecodeRowStrayQuoteMidField(t *testing.T) {
	// A quote that does not open the field stays literal.
	got := DecodeRow(`ab"cd,e`)
	assert.Equal(t, []string{`ab"cd`, "e"}, got)
}

func TestDecodeAll(t *testing.T) {
	t.Run("multiple records with blank lines", func(t *testing.T) {
		data := "a,b\n\nc,d\n"
		rows := DecodeAll(data)
		require.Len(t, rows, 2)
		assert.Equal(t, []string{"a", "b"}, rows[0])
		assert.Equal(t, []string{"c", "d"}, rows[1])
	})

	t.Run("crlf line endings", func(t *testing.T) {
		rows := DecodeAll("a,b\r\nc,d\r\n")
		require.Len(t, rows, 2)
		assert.Equal(t, []string{"c", "d"}, rows[1])
	})

	t.Run("quoted newline does not split the record", func(t *testing.T) {
		data := EncodeRow([]string{"first\nsecond", "x"}) + "\n" + "y,z\n"
		rows := DecodeAll(data)
		require.Len(t, rows, 2)
		assert.Equal(t, []string{"first\nsecond", "x"}, rows[0])
		assert.Equal(t, []string{"y", "z"}, rows[1])
	})

	t.Run("missing trailing newline", func(t *testing.T) {
		rows := DecodeAll("a,b\nc,d")
		require.Len(t, rows, 2)
	})

	t.Run("empty content", func(t *testing.T) {
		assert.Empty(t, DecodeAll(""))
	})
}
