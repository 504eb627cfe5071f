package exfat

import (
	"unicode/utf16"
)

// UnicodeFromAscii returns Unicode from raw UTF-16LE data. The character
// count may still include trailing NULs, so we intentionally skip over
// those.
func UnicodeFromAscii(raw []byte, unicodeCharCount int) string {
	units := make([]uint16, 0, unicodeCharCount)
	for i := 0; i < unicodeCharCount; i++ {
		unit := uint16(raw[i*2+1])<<8 | uint16(raw[i*2])
		if unit == 0 {
			continue
		}

		units = append(units, unit)
	}

	return string(utf16.Decode(units))
}

// UnicodeFromUnits decodes native-order UTF-16 code units. Unpaired
// surrogates decode to the replacement character.
func UnicodeFromUnits(units []uint16) string {
	return string(utf16.Decode(units))
}
