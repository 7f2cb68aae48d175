package sqldump

import "strings"

// TokenizeRows walks the VALUES region of one statement beginning at start
// and invokes emit for every complete parenthesized row. It returns the
// offset just past the statement's terminating semicolon, or len(text) when
// the input ends first (an unterminated trailing row or string stops
// emitting and is discarded, by contract).
//
// The scan is a single forward pass over the UTF-8 bytes of text. Every
// state-changing delimiter is ASCII, so multi-byte runes inside field values
// pass through the default append case untouched.
//
// Transition rules, in priority order:
//   - inside a string: '' appends a literal quote, a lone ' closes the
//     string, anything else is appended verbatim
//   - ' opens a string
//   - ( opens a row, resetting the pending values and field buffer
//   - , inside a row closes the current field
//   - ) inside a row closes the field and the row, emitting a Record
//   - ; outside a row terminates the statement
//   - anything else accumulates into the current field
//
// A closed field is trimmed and NULL-decoded: empty stays the empty string,
// a value equal to NULL (any case) becomes nil, anything else is kept as the
// trimmed text. Quoting is not remembered at decode time, so the literal
// 'NULL' also decodes to nil; dumps in this dialect do not rely on the
// distinction.
func TokenizeRows(text string, start int, columns []string, emit func(Record)) int {
	inString := false
	inRow := false
	current := make([]byte, 0, 64)
	var values []any

	i := start
	if i < 0 {
		i = 0
	}

	for i < len(text) {
		ch := text[i]

		if inString {
			if ch == '\'' {
				if i+1 < len(text) && text[i+1] == '\'' {
					current = append(current, '\'')
					i += 2
					continue
				}
				inString = false
				i++
				continue
			}
			current = append(current, ch)
			i++
			continue
		}

		switch ch {
		case '\'':
			inString = true

		case '(':
			inRow = true
			values = values[:0]
			current = current[:0]

		case ',':
			if inRow {
				values = append(values, decodeField(current))
				current = current[:0]
			}

		case ')':
			if inRow {
				values = append(values, decodeField(current))
				current = current[:0]
				inRow = false
				emit(buildRecord(columns, values))
			}

		case ';':
			if !inRow {
				return i + 1
			}
			current = append(current, ch)

		default:
			current = append(current, ch)
		}
		i++
	}

	return len(text)
}

// decodeField trims and NULL-decodes one accumulated field buffer.
func decodeField(raw []byte) any {
	s := strings.TrimSpace(string(raw))
	if s == "" {
		return ""
	}
	if strings.EqualFold(s, "NULL") {
		return nil
	}
	return s
}

// buildRecord zips columns with values positionally. Missing values map to
// nil; values beyond the column count were tokenized but are dropped here.
func buildRecord(columns []string, values []any) Record {
	rec := make(Record, len(columns))
	for i, col := range columns {
		if i < len(values) {
			rec[col] = values[i]
		} else {
			rec[col] = nil
		}
	}
	return rec
}
