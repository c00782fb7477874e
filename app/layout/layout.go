// Package layout holds the pure text-layout helpers for fixed-width receipt
// strips. Everything here works in display columns, not runes: the printer
// advances two columns for full-width (CJK) glyphs and one for everything
// else, so naive len() based padding drifts as soon as an order carries a
// Chinese dish name.
package layout

import (
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/shopspring/decimal"
)

// DisplayWidth returns the number of print columns the text occupies.
// Additive: DisplayWidth(a+b) == DisplayWidth(a)+DisplayWidth(b).
func DisplayWidth(text string) int {
	w := 0
	for _, r := range text {
		w += runeWidth(r)
	}
	return w
}

func runeWidth(r rune) int {
	if w := runewidth.RuneWidth(r); w > 1 {
		return 2
	}
	return 1
}

// Wrap greedily breaks text into lines of at most maxColumns display
// columns. Breaks are character-level, no hyphenation; a full-width glyph
// that would straddle the boundary moves whole to the next line.
func Wrap(text string, maxColumns int) []string {
	if maxColumns < 1 {
		maxColumns = 1
	}
	if text == "" {
		return []string{""}
	}

	var lines []string
	var b strings.Builder
	width := 0
	for _, r := range text {
		rw := runeWidth(r)
		if width+rw > maxColumns && width > 0 {
			lines = append(lines, b.String())
			b.Reset()
			width = 0
		}
		b.WriteRune(r)
		width += rw
	}
	if b.Len() > 0 {
		lines = append(lines, b.String())
	}
	return lines
}

// TwoColumn lays out a label/value pair on one line: label at column 0,
// the value's last column at totalColumns-1. The gap is always at least one
// space, even when the pair does not fit, so the line may exceed
// totalColumns under overflow but the value never glues to the label.
func TwoColumn(label, value string, totalColumns int) string {
	pad := totalColumns - DisplayWidth(label) - DisplayWidth(value)
	if pad < 1 {
		pad = 1
	}
	return label + strings.Repeat(" ", pad) + value
}

// Separator returns a full-width rule of the given glyph.
func Separator(glyph rune, totalColumns int) string {
	n := totalColumns / runeWidth(glyph)
	return strings.Repeat(string(glyph), n)
}

// Currency formats decimal amounts for the strip. Symbol is normally the
// euro glyph; encodings that cannot carry it use an ASCII code instead.
type Currency struct {
	Symbol string
}

// EuroSign is the default currency glyph. CP858 carries it, plain ASCII
// fallbacks swap in "EUR".
const EuroSign = "€"

// Format renders an amount with two decimals and a decimal comma. Negative
// amounts carry an explicit leading minus before the symbol.
func (c Currency) Format(amount decimal.Decimal) string {
	symbol := c.Symbol
	if symbol == "" {
		symbol = EuroSign
	}
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Neg()
	}
	digits := strings.Replace(amount.StringFixed(2), ".", ",", 1)
	return sign + symbol + digits
}

// ItemLines renders one order line. The first line carries the "{qty}x "
// prefix and the price right-aligned inside a reserved column count; the
// name wraps into what remains. Continuation, option, and note lines indent
// under the name, not under the quantity prefix.
func ItemLines(qty int, name, price string, options []string, note string, totalColumns, priceReserve int) []string {
	prefix := itemPrefix(qty)
	indent := strings.Repeat(" ", DisplayWidth(prefix))
	nameColumns := totalColumns - DisplayWidth(prefix) - priceReserve
	if nameColumns < 1 {
		nameColumns = 1
	}

	wrapped := Wrap(name, nameColumns)
	lines := make([]string, 0, len(wrapped)+len(options)+1)
	lines = append(lines, TwoColumn(prefix+wrapped[0], price, totalColumns))
	for _, cont := range wrapped[1:] {
		lines = append(lines, indent+cont)
	}
	for _, opt := range options {
		for i, w := range Wrap("- "+opt, nameColumns) {
			if i > 0 {
				w = "  " + w
			}
			lines = append(lines, indent+w)
		}
	}
	if note != "" {
		for _, w := range Wrap("* "+note, nameColumns) {
			lines = append(lines, indent+w)
		}
	}
	return lines
}

func itemPrefix(qty int) string {
	if qty < 1 {
		qty = 1
	}
	return strconv.Itoa(qty) + "x "
}
