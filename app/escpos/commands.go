// Package escpos emits ESC/POS command streams for thermal receipt
// printers: a buffered session over a transport, a tiered QR renderer, and
// a feed-and-cut sequencer that fires the cutter exactly once per job.
package escpos

// Control bytes.
const (
	ESC byte = 0x1B
	GS  byte = 0x1D
	NL  byte = 0x0A
)

// Code pages selected with ESC t n.
const (
	CodePageCP850 byte = 2
	CodePageCP858 byte = 19
)

// Alignment values for ESC a n.
const (
	AlignLeft   byte = 0
	AlignCenter byte = 1
	AlignRight  byte = 2
)

func cmdInit() []byte { return []byte{ESC, '@'} }

func cmdCodePage(n byte) []byte { return []byte{ESC, 't', n} }

func cmdAlign(a byte) []byte { return []byte{ESC, 'a', a} }

func cmdBold(on bool) []byte {
	var n byte
	if on {
		n = 1
	}
	return []byte{ESC, 'E', n}
}

// cmdSize selects character magnification. width/height are multipliers
// 1..8; GS ! encodes them as (w-1)<<4 | (h-1).
func cmdSize(width, height int) []byte {
	w := clampInt(width, 1, 8) - 1
	h := clampInt(height, 1, 8) - 1
	return []byte{GS, '!', byte(w<<4 | h)}
}

// cmdFeedLines advances n text lines (ESC d).
func cmdFeedLines(n int) []byte {
	return []byte{ESC, 'd', byte(clampInt(n, 0, 255))}
}

// cmdFeedDots advances n motion units (ESC J), finer grained than lines.
func cmdFeedDots(n int) []byte {
	return []byte{ESC, 'J', byte(clampInt(n, 0, 255))}
}

// cmdCutAtomic is the combined feed-and-cut form: GS V m n feeds n motion
// units and then cuts in one instruction.
func cmdCutAtomic(partial bool, feed byte) []byte {
	m := byte(0x41) // full
	if partial {
		m = 0x42
	}
	return []byte{GS, 'V', m, feed}
}

// cmdCutPlain cuts at the current position without feeding.
func cmdCutPlain(partial bool) []byte {
	var m byte // 0x00 full
	if partial {
		m = 0x01
	}
	return []byte{GS, 'V', m}
}

// cmdRaster is the GS v 0 raster header; bitmap rows follow it directly.
func cmdRaster(widthBytes, height int) []byte {
	return []byte{
		GS, 'v', '0', 0,
		byte(widthBytes % 256), byte(widthBytes / 256),
		byte(height % 256), byte(height / 256),
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
