package normalize

import (
	"regexp"
	"strings"
)

// Dutch address layouts: "Dorpsstraat 1, 1234AB Amsterdam" or the same
// without the comma. Street name, house number with optional letter suffix,
// 4-digit + 2-letter postcode, city.
var addressPattern = regexp.MustCompile(`^\s*([^0-9]+?)\s+([0-9]+[a-zA-Z]?)\s*,?\s*([0-9]{4}\s?[A-Z]{2})?\s*(.+)?$`)

// SplitAddress splits a free-text address into its structured parts. When
// the text does not match either accepted layout the whole string lands in
// street, so the receipt still shows something usable.
func SplitAddress(text string) (street, houseNumber, postcode, city string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", "", "", ""
	}
	m := addressPattern.FindStringSubmatch(text)
	if m == nil {
		return text, "", "", ""
	}
	street = strings.TrimSpace(m[1])
	houseNumber = strings.TrimSpace(m[2])
	postcode = strings.ReplaceAll(m[3], " ", "")
	city = strings.TrimSpace(m[4])
	return street, houseNumber, postcode, city
}
