package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Pick resolves the first present, non-nil, non-empty value among the given
// candidate paths. A path may be dotted ("summary.subtotal") to descend into
// nested maps. This ordered-candidate lookup is the single place where the
// historical field-naming variants are reconciled.
func Pick(raw map[string]interface{}, paths ...string) interface{} {
	for _, p := range paths {
		if p == "" {
			continue
		}
		cur := interface{}(raw)
		found := true
		for _, key := range strings.Split(p, ".") {
			m, ok := cur.(map[string]interface{})
			if !ok {
				found = false
				break
			}
			cur, ok = m[key]
			if !ok {
				found = false
				break
			}
		}
		if !found || cur == nil {
			continue
		}
		if s, ok := cur.(string); ok && s == "" {
			continue
		}
		return cur
	}
	return nil
}

// PickString resolves candidates to a trimmed display string.
func PickString(raw map[string]interface{}, paths ...string) string {
	return asString(Pick(raw, paths...))
}

func asString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// asDecimal converts a JSON-shaped scalar to a finite decimal. The second
// return is false when the value is absent, blank, non-numeric, or not
// finite.
func asDecimal(v interface{}) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case nil:
		return decimal.Zero, false
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(t), true
	case int:
		return decimal.NewFromInt(int64(t)), true
	case int64:
		return decimal.NewFromInt(t), true
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return decimal.Zero, false
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	default:
		return decimal.Zero, false
	}
}

// PickDecimal resolves candidates to a decimal; ok is false when none parse.
func PickDecimal(raw map[string]interface{}, paths ...string) (decimal.Decimal, bool) {
	for _, p := range paths {
		if d, ok := asDecimal(Pick(raw, p)); ok {
			return d, true
		}
	}
	return decimal.Zero, false
}

// PickMax returns the largest value among the candidates, zero when none
// parse. Used for fee fields where historical writers duplicated the figure
// under several names.
func PickMax(raw map[string]interface{}, paths ...string) decimal.Decimal {
	max := decimal.Zero
	seen := false
	for _, p := range paths {
		d, ok := asDecimal(Pick(raw, p))
		if !ok {
			continue
		}
		if !seen || d.GreaterThan(max) {
			max = d
		}
		seen = true
	}
	return max
}

func asInt(v interface{}, def int) int {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return def
		}
		return int(t)
	case int:
		return t
	case int64:
		return int(t)
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return int(n)
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return n
		}
	}
	return def
}

func asBool(v interface{}) bool {
	b, _ := v.(bool)
	return b
}
