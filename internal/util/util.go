package util

import (
	"fmt"
	"strings"

	c "kslab/internal"
)

// Dump formats raw memory as u32 words for fatal-path diagnostics. base is the
// address of data[0] and only shows up in the offset column.
func Dump(data []byte, base uintptr) string {
	const bytesPerRow = 32

	var s strings.Builder
	s.WriteString("┏━━━━━━━━━━━━━━━━━━┳━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━┓\n")
	fmt.Fprintf(&s, "┃ Address          ┃ u32 words - %5d bytes (0x%04x)%-39s┃\n", len(data), len(data), "")
	s.WriteString("┣━━━━━━━━━━━━━━━━━━╋━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━┫\n")

	for i := 0; i < len(data); i += bytesPerRow {
		fmt.Fprintf(&s, "┃ %016x ┃ ", base+uintptr(i))
		for j := 0; j < bytesPerRow; j += c.LEN_U32 {
			if i+j+c.LEN_U32 <= len(data) {
				fmt.Fprintf(&s, "%08x ", c.Bin.Uint32(data[i+j:]))
			} else {
				s.WriteString("         ")
			}
			// Space every 16 bytes to keep your eyes from crossing
			if (j+c.LEN_U32)%16 == 0 {
				s.WriteString(" ")
			}
		}
		s.WriteString("┃\n")
	}
	s.WriteString("┗━━━━━━━━━━━━━━━━━━┻━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━┛\n")

	return s.String()
}

// splitmix64
func Hash(val uint64) uint64 {
	x := val
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	x =  x ^ (x >> 31)
	return x
}
