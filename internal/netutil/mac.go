// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package netutil

import (
	"strings"
)

const hexDigits = "0123456789abcdef"

// FormatMAC renders a hardware address of any length as colon-separated
// lowercase hex. An empty address renders as "".
func FormatMAC(mac []byte) string {
	if len(mac) == 0 {
		return ""
	}
	var b strings.Builder
	b.Grow(len(mac)*3 - 1)
	for i, c := range mac {
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteByte(hexDigits[c>>4])
		b.WriteByte(hexDigits[c&0x0f])
	}
	return b.String()
}
