/*
Package runes converts between byte strings and the 16-bit rune units the trie is built on.

A rune here is not a Unicode code point. ASCII bytes map to themselves, a 2-byte UTF-8
sequence is packed into one value as (second<<8 | first), and the bytes of longer sequences
pass through one by one, undecoded. Only the 2-byte Cyrillic range takes part in lowercase
folding and alphabet checks, so the trie stays compact for the letters it actually indexes.

	rs, err := runes.Encode("Барамын")
	if err != nil {
		// malformed input, reject this request only
	}
	s := runes.Decode(rs) // "барамын"
*/
package runes

import (
	"errors"
	"fmt"
)

// Rune is one opaque 16-bit unit produced by Encode.
type Rune uint16

// Runes is an encoded string.
type Runes []Rune

var (
	// ErrInvalidUTF8 reports a multi-byte sequence truncated by the end of input.
	ErrInvalidUTF8 = errors.New("invalid utf-8")
	// ErrUnexpectedZeroByte reports a zero byte in the continuation position.
	ErrUnexpectedZeroByte = errors.New("invalid zero byte")
)

// ConversionResult is the non-error form of an Encode outcome.
type ConversionResult int

const (
	Success ConversionResult = iota
	InvalidUTF8
	UnexpectedZeroByte
)

func (c ConversionResult) String() string {
	switch c {
	case Success:
		return "success"
	case InvalidUTF8:
		return "invalid utf-8"
	case UnexpectedZeroByte:
		return "unexpected zero byte"
	}
	return fmt.Sprintf("ConversionResult(%d)", int(c))
}

// ResultOf maps an error returned by Encode or AppendEncode to its result code.
func ResultOf(err error) ConversionResult {
	switch {
	case err == nil:
		return Success
	case errors.Is(err, ErrUnexpectedZeroByte):
		return UnexpectedZeroByte
	default:
		return InvalidUTF8
	}
}

// Encode converts s into runes, folding the supported Cyrillic letters to lowercase.
func Encode(s string) (Runes, error) {
	return AppendEncode(make(Runes, 0, len(s)), s)
}

// AppendEncode appends the runes of s to dst. On error dst is returned as it was
// before the call together with the error.
func AppendEncode(dst Runes, s string) (Runes, error) {
	start := len(dst)
	for i := 0; i < len(s); {
		ch0 := s[i]
		switch {
		case ch0 < 0x80:
			dst = append(dst, Rune(ch0))
			i++
		case ch0 < 0xE0:
			if i+1 >= len(s) {
				return dst[:start], fmt.Errorf("offset %d: %w", i, ErrInvalidUTF8)
			}
			ch1 := s[i+1]
			if ch1 == 0 {
				return dst[:start], fmt.Errorf("offset %d: %w", i+1, ErrUnexpectedZeroByte)
			}
			dst = append(dst, ToLower(Rune(ch1)<<8|Rune(ch0)))
			i += 2
		default:
			n := 3
			if ch0 >= 0xF0 {
				n = 4
			}
			if i+n > len(s) {
				return dst[:start], fmt.Errorf("offset %d: %w", i, ErrInvalidUTF8)
			}
			for j := 0; j < n; j++ {
				dst = append(dst, Rune(s[i+j]))
			}
			i += n
		}
	}
	return dst, nil
}

// MustEncode is Encode for callers that treat malformed text as fatal.
func MustEncode(s string) Runes {
	rs, err := Encode(s)
	if err != nil {
		panic(fmt.Sprintf("runes: %q: %v", s, err))
	}
	return rs
}

// Decode converts runes back into a byte string.
func Decode(rs Runes) string {
	buf := make([]byte, 0, 2*len(rs))
	for _, r := range rs {
		buf = append(buf, byte(r&0xFF))
		if hi := byte(r >> 8); hi != 0 {
			buf = append(buf, hi)
		}
	}
	return string(buf)
}

// String implements fmt.Stringer.
func (rs Runes) String() string {
	return Decode(rs)
}
