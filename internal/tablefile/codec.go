package tablefile

import "strings"

// Row format: comma-delimited fields, double-quote quoting, backslash
// escaping inside quoted fields. A field is quoted when it carries the
// delimiter, a quote, a backslash, a line break, or leading/trailing
// whitespace; everything else is written bare. Unquoted fields are
// trimmed on decode, quoted fields are preserved verbatim, so
// DecodeRow(EncodeRow(fields)) round-trips arbitrary strings.
const (
	fieldDelimiter = ','
	fieldQuote     = '"'
	fieldEscape    = '\\'
)

// EncodeRow serializes one record without a trailing newline.
func EncodeRow(fields []string) string {
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(fieldDelimiter)
		}
		if !needsQuoting(f) {
			b.WriteString(f)
			continue
		}
		b.WriteByte(fieldQuote)
		for j := 0; j < len(f); j++ {
			if f[j] == fieldQuote || f[j] == fieldEscape {
				b.WriteByte(fieldEscape)
			}
			b.WriteByte(f[j])
		}
		b.WriteByte(fieldQuote)
	}
	return b.String()
}

func needsQuoting(f string) bool {
	if f == "" {
		return false
	}
	if f != strings.TrimSpace(f) {
		return true
	}
	return strings.ContainsAny(f, ",\"\\\n\r")
}

// DecodeRow parses a single record. Embedded newlines are legal inside
// quoted fields; an unquoted newline terminates the record and anything
// after it is ignored.
func DecodeRow(line string) []string {
	fields, _ := parseRecord(line, 0)
	return fields
}

// DecodeAll splits raw table content into records, honoring quoted
// newlines. Blank lines are dropped.
func DecodeAll(data string) [][]string {
	var rows [][]string
	for i := 0; i < len(data); {
		fields, next := parseRecord(data, i)
		i = next
		if len(fields) == 1 && fields[0] == "" {
			continue
		}
		rows = append(rows, fields)
	}
	return rows
}

// parseRecord consumes one record starting at offset start and returns
// the decoded fields plus the offset of the next record. All syntax
// characters are ASCII, so byte-wise scanning is UTF-8 safe.
func parseRecord(s string, start int) ([]string, int) {
	var fields []string
	var b strings.Builder
	quoted := false
	inQuotes := false

	flush := func() {
		f := b.String()
		if !quoted {
			f = strings.TrimSpace(f)
		}
		fields = append(fields, f)
		b.Reset()
		quoted = false
	}

	i := start
	for i < len(s) {
		c := s[i]
		if inQuotes {
			switch c {
			case fieldEscape:
				if i+1 < len(s) {
					b.WriteByte(s[i+1])
					i += 2
				} else {
					i++
				}
			case fieldQuote:
				inQuotes = false
				i++
			default:
				b.WriteByte(c)
				i++
			}
			continue
		}
		switch c {
		case fieldDelimiter:
			flush()
			i++
		case fieldQuote:
			if strings.TrimSpace(b.String()) == "" {
				// Opening quote; whitespace before it is decorative.
				b.Reset()
				quoted = true
				inQuotes = true
			} else {
				// Stray quote mid-field, keep it literal.
				b.WriteByte(c)
			}
			i++
		case '\n':
			i++
			flush()
			return fields, i
		case '\r':
			if i+1 < len(s) && s[i+1] == '\n' {
				i += 2
			} else {
				i++
			}
			flush()
			return fields, i
		default:
			b.WriteByte(c)
			i++
		}
	}
	flush()
	return fields, i
}
