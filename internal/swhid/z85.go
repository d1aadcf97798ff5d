package swhid

import (
	"encoding/binary"
	"fmt"
)

// Z85 alphabet (ZeroMQ spec 32). Chosen for the base85 hash encoding because
// it contains neither ';' nor any control character, so an encoded hash can
// never collide with the qualifier delimiter.
const z85Alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ.-:+=^!/*?&<>()[]{}@%$#"

var z85Reverse = func() [256]int16 {
	var rev [256]int16
	for i := range rev {
		rev[i] = -1
	}
	for i := 0; i < len(z85Alphabet); i++ {
		rev[z85Alphabet[i]] = int16(i)
	}
	return rev
}()

func isZ85String(s string) bool {
	for i := 0; i < len(s); i++ {
		if z85Reverse[s[i]] < 0 {
			return false
		}
	}
	return len(s) > 0
}

// z85Encode renders data (length divisible by 4) as base-85 text, five
// characters per 32-bit big-endian group.
func z85Encode(data []byte) string {
	if len(data)%4 != 0 {
		return ""
	}
	out := make([]byte, 0, len(data)/4*5)
	for i := 0; i < len(data); i += 4 {
		group := binary.BigEndian.Uint32(data[i:])
		var chunk [5]byte
		for j := 4; j >= 0; j-- {
			chunk[j] = z85Alphabet[group%85]
			group /= 85
		}
		out = append(out, chunk[:]...)
	}
	return string(out)
}

// z85Decode reverses z85Encode. Inputs whose length is not divisible by 5,
// that contain characters outside the alphabet, or that encode a group above
// 2^32-1 are rejected.
func z85Decode(text string) ([]byte, error) {
	if len(text)%5 != 0 {
		return nil, fmt.Errorf("base85 text length %d is not divisible by 5", len(text))
	}
	out := make([]byte, 0, len(text)/5*4)
	for i := 0; i < len(text); i += 5 {
		var group uint64
		for j := 0; j < 5; j++ {
			d := z85Reverse[text[i+j]]
			if d < 0 {
				return nil, fmt.Errorf("invalid base85 character %q at offset %d", text[i+j], i+j)
			}
			group = group*85 + uint64(d)
		}
		if group > 0xFFFFFFFF {
			return nil, fmt.Errorf("base85 group at offset %d overflows 32 bits", i)
		}
		var chunk [4]byte
		binary.BigEndian.PutUint32(chunk[:], uint32(group))
		out = append(out, chunk[:]...)
	}
	return out, nil
}
