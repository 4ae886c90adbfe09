package main

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

func trimHexPrefix(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return s[2:]
	}

	return s
}

// parseByte parses a single hex byte, with or without 0x prefix.
func parseByte(s string) (byte, error) {
	v, err := strconv.ParseUint(trimHexPrefix(s), 16, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid hex byte %q", s)
	}

	return byte(v), nil
}

// parseHexBytes parses whitespace separated hex fields. A field may hold several bytes, so
// "1E 0F00" and "0x1E 0x0F 0x00" are the same input.
func parseHexBytes(fields []string) ([]byte, error) {
	var out []byte
	for _, field := range fields {
		for _, f := range strings.Fields(field) {
			s := trimHexPrefix(f)
			if len(s)%2 == 1 {
				s = "0" + s
			}

			p, err := hex.DecodeString(s)
			if err != nil {
				return nil, fmt.Errorf("invalid hex input %q", f)
			}
			out = append(out, p...)
		}
	}

	return out, nil
}

// parseService parses a service given as primary and secondary command byte in bus order,
// e.g. "0704". The first byte is the low byte of the service value.
func parseService(s string) (uint16, error) {
	p, err := parseHexBytes([]string{s})
	if err != nil || len(p) != 2 {
		return 0, fmt.Errorf("invalid service %q: want two hex bytes, e.g. 0704", s)
	}

	return uint16(p[0]) | uint16(p[1])<<8, nil
}
