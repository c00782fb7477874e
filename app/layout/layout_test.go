package layout

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisplayWidth(t *testing.T) {
	assert.Equal(t, 0, DisplayWidth(""))
	assert.Equal(t, 5, DisplayWidth("hello"))
	assert.Equal(t, 4, DisplayWidth("谢谢"))
	assert.Equal(t, 10, DisplayWidth("ok 谢谢 ok"))
}

func TestDisplayWidthAdditive(t *testing.T) {
	parts := []string{"Bami", " ", "谢谢惠顾", "1x", "€9,00"}
	for _, a := range parts {
		for _, b := range parts {
			assert.Equal(t, DisplayWidth(a)+DisplayWidth(b), DisplayWidth(a+b))
		}
	}
}

func TestWrap(t *testing.T) {
	lines := Wrap("abcdefghij", 4)
	assert.Equal(t, []string{"abcd", "efgh", "ij"}, lines)

	// Wide glyphs never straddle the boundary.
	lines = Wrap("谢谢惠顾", 3)
	assert.Equal(t, []string{"谢", "谢", "惠", "顾"}, lines)

	for _, line := range Wrap("Babi Pangang met extra saus 谢谢", 10) {
		assert.LessOrEqual(t, DisplayWidth(line), 10)
	}

	assert.Equal(t, []string{""}, Wrap("", 10))
}

func TestTwoColumn(t *testing.T) {
	line := TwoColumn("Subtotaal", "€36,00", 42)
	assert.Equal(t, 42, DisplayWidth(line))
	assert.Equal(t, "Subtotaal", line[:9])
	assert.Equal(t, "€36,00", line[len(line)-len("€36,00"):])

	// Wide label still lands the value on the last column.
	line = TwoColumn("谢谢惠顾", "9,00", 20)
	assert.Equal(t, 20, DisplayWidth(line))
}

func TestTwoColumnOverflowKeepsGap(t *testing.T) {
	label := "an unreasonably long label for the width"
	value := "€123,45"
	line := TwoColumn(label, value, 10)
	assert.Equal(t, label+" "+value, line)
	assert.GreaterOrEqual(t, DisplayWidth(line), DisplayWidth(label)+DisplayWidth(value)+1)
}

func TestSeparator(t *testing.T) {
	assert.Equal(t, 42, len(Separator('-', 42)))
	assert.Equal(t, 42, DisplayWidth(Separator('=', 42)))
}

func TestCurrencyFormat(t *testing.T) {
	c := Currency{}
	assert.Equal(t, "€9,00", c.Format(decimal.RequireFromString("9")))
	assert.Equal(t, "€13,50", c.Format(decimal.RequireFromString("13.5")))
	assert.Equal(t, "-€2,50", c.Format(decimal.RequireFromString("-2.5")))
	assert.Equal(t, "€0,00", c.Format(decimal.Zero))

	ascii := Currency{Symbol: "EUR "}
	assert.Equal(t, "EUR 1,25", ascii.Format(decimal.RequireFromString("1.25")))
	assert.Equal(t, "-EUR 1,25", ascii.Format(decimal.RequireFromString("-1.25")))
}

func TestItemLines(t *testing.T) {
	lines := ItemLines(2, "Babi Pangang", "€27,00", nil, "", 42, 10)
	require.Len(t, lines, 1)
	assert.Equal(t, 42, DisplayWidth(lines[0]))
	assert.Equal(t, "2x Babi Pangang", lines[0][:15])

	// Continuations and options indent under the name.
	lines = ItemLines(1, "Grote Rijsttafel Speciaal Deluxe Menu", "€45,00",
		[]string{"extra saus"}, "niet pittig", 30, 8)
	require.GreaterOrEqual(t, len(lines), 3)
	for _, l := range lines[1:] {
		assert.True(t, len(l) > 3 && l[:3] == "   ", "line %q not indented", l)
	}
	assert.Contains(t, lines[len(lines)-2], "- extra saus")
	assert.Contains(t, lines[len(lines)-1], "* niet pittig")
}
