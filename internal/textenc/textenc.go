// Package textenc decodes raw dump buffers of unknown text encoding.
//
// Dumps arrive as opaque byte blobs with no charset metadata: some tools
// export UTF-8, others UTF-16 in either byte order, with or without a BOM.
// This package picks one of three decodings (UTF-8, UTF-16LE, byte-swapped
// UTF-16BE) using a BOM check first and a zero-byte statistic as fallback,
// and never rejects input: the worst case is treating the bytes as UTF-8.
package textenc

import (
	"golang.org/x/text/encoding/unicode"
)

// Encoding identifies which of the three supported decodings applies.
type Encoding int

const (
	// UTF8 decodes the buffer as-is.
	UTF8 Encoding = iota
	// UTF16LE decodes the buffer as UTF-16 little-endian.
	UTF16LE
	// UTF16BE means the buffer is UTF-16 big-endian; it is byte-swapped
	// pairwise and then decoded as little-endian.
	UTF16BE
)

// String returns the conventional charset label for e.
func (e Encoding) String() string {
	switch e {
	case UTF16LE:
		return "utf-16le"
	case UTF16BE:
		return "utf-16be"
	default:
		return "utf-8"
	}
}

const (
	// detectSample caps how many leading bytes the statistical fallback looks at.
	detectSample = 1024

	// nulThreshold is the zero-byte ratio above which a buffer is considered
	// UTF-16. ASCII-heavy UTF-16 has one zero byte per code unit, so genuine
	// UTF-16 text sits far above this; UTF-8 text sits at (near) zero.
	nulThreshold = 0.3
)

// utf16LE decodes UTF-16LE to UTF-8. IgnoreBOM because Decode strips or
// synthesizes byte order before this decoder ever sees the buffer.
var utf16LE = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// Detect classifies buf and reports how many leading BOM bytes to skip.
//
// Order of checks:
//  1. FF FE prefix: UTF-16LE, skip 2.
//  2. FE FF prefix: UTF-16BE, skip 2.
//  3. Zero-byte statistics over the first min(len, 1024) bytes: count zero
//     bytes at even and odd offsets, divide by the number of even (ceil n/2)
//     and odd (floor n/2) slots. Neither ratio above the threshold means
//     UTF-8. Otherwise the side holding the zeros reveals the byte order:
//     zeros at odd offsets are the high bytes of little-endian ASCII units.
//
// Detect is deterministic and total: any buffer, including empty, yields a
// verdict.
func Detect(buf []byte) (enc Encoding, bomLen int) {
	if len(buf) >= 2 {
		if buf[0] == 0xFF && buf[1] == 0xFE {
			return UTF16LE, 2
		}
		if buf[0] == 0xFE && buf[1] == 0xFF {
			return UTF16BE, 2
		}
	}

	n := len(buf)
	if n > detectSample {
		n = detectSample
	}

	var nulEven, nulOdd int
	for i := 0; i < n; i++ {
		if buf[i] != 0 {
			continue
		}
		if i%2 == 0 {
			nulEven++
		} else {
			nulOdd++
		}
	}

	evenRatio := ratio(nulEven, (n+1)/2)
	oddRatio := ratio(nulOdd, n/2)

	if evenRatio <= nulThreshold && oddRatio <= nulThreshold {
		return UTF8, 0
	}
	if oddRatio >= evenRatio {
		return UTF16LE, 0
	}
	return UTF16BE, 0
}

// Decode converts buf to a string using the Detect verdict. It always
// succeeds; malformed UTF-16 units decode to U+FFFD.
func Decode(buf []byte) string {
	enc, bomLen := Detect(buf)
	body := buf[bomLen:]

	switch enc {
	case UTF16LE:
		return decodeUTF16LE(body)
	case UTF16BE:
		return decodeUTF16LE(swapPairs(body))
	default:
		return string(body)
	}
}

// decodeUTF16LE converts UTF-16LE bytes to a UTF-8 string. The transformer
// substitutes U+FFFD for unpaired surrogates and a dangling final byte, so a
// hard error is not expected; if one ever surfaces, the raw bytes are
// returned to honor the never-fail contract.
func decodeUTF16LE(b []byte) string {
	out, err := utf16LE.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(out)
}

// swapPairs returns a copy of b with every byte pair swapped. A final
// unpaired byte stays at its original position.
func swapPairs(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	for i := 0; i+1 < len(out); i += 2 {
		out[i], out[i+1] = out[i+1], out[i]
	}
	return out
}

func ratio(count, slots int) float64 {
	if slots == 0 {
		return 0
	}
	return float64(count) / float64(slots)
}
