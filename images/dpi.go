package images

import (
	"bytes"
	"encoding/binary"
	"os"
)

var pngSig = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// readDPI extracts horizontal resolution metadata from PNG (pHYs chunk)
// and JPEG (JFIF APP0 segment) files. Anything else, or a file without the
// metadata, gets the fallback.
func readDPI(path string, fallback float64) float64 {
	data, err := os.ReadFile(path)
	if err != nil {
		return fallback
	}
	if bytes.HasPrefix(data, pngSig) {
		if dpi, ok := pngDPI(data); ok {
			return dpi
		}
	}
	if bytes.HasPrefix(data, []byte{0xFF, 0xD8}) {
		if dpi, ok := jpegDPI(data); ok {
			return dpi
		}
	}
	return fallback
}

// pngDPI walks PNG chunks looking for pHYs with the metre unit flag.
func pngDPI(data []byte) (float64, bool) {
	pos := len(pngSig)
	for pos+8 <= len(data) {
		size := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		typ := string(data[pos+4 : pos+8])
		body := pos + 8
		if body+size > len(data) {
			return 0, false
		}
		if typ == "pHYs" && size >= 9 {
			ppu := binary.BigEndian.Uint32(data[body : body+4])
			unit := data[body+8]
			if unit == 1 && ppu > 0 {
				// pixels per metre
				return float64(ppu) * 0.0254, true
			}
			return 0, false
		}
		if typ == "IDAT" || typ == "IEND" {
			return 0, false
		}
		pos = body + size + 4 // skip CRC
	}
	return 0, false
}

// jpegDPI reads the JFIF APP0 density fields.
func jpegDPI(data []byte) (float64, bool) {
	pos := 2
	for pos+4 <= len(data) {
		if data[pos] != 0xFF {
			return 0, false
		}
		marker := data[pos+1]
		if marker == 0xD8 || (marker >= 0xD0 && marker <= 0xD7) {
			pos += 2
			continue
		}
		if marker == 0xDA || marker == 0xD9 {
			return 0, false
		}
		size := int(binary.BigEndian.Uint16(data[pos+2 : pos+4]))
		if size < 2 || pos+2+size > len(data) {
			return 0, false
		}
		seg := data[pos+4 : pos+2+size]
		if marker == 0xE0 && len(seg) >= 12 && bytes.HasPrefix(seg, []byte("JFIF\x00")) {
			units := seg[7]
			xDensity := float64(binary.BigEndian.Uint16(seg[8:10]))
			switch {
			case units == 1 && xDensity > 0:
				return xDensity, true
			case units == 2 && xDensity > 0:
				return xDensity * 2.54, true
			}
			return 0, false
		}
		pos += 2 + size
	}
	return 0, false
}
