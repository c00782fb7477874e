// Package normalize maps the historical order-record shapes onto the
// canonical order model. Records written by several schema generations are
// still in circulation (flat vs. nested customer/address/summary blocks,
// Dutch vs. English field names, items as a list or a keyed map); every
// variant is reconciled here through ordered candidate paths instead of
// per-version branches spread through the pipeline.
package normalize

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"receiptd/app/models"
)

var asapSuffix = regexp.MustCompile(`(?i)Z$`)

// Normalize builds a canonical order from a raw JSON-shaped record. It only
// maps and validates; monetary figures are taken as supplied and never
// recomputed, except the subtotal fallback when none is present. Normalizing
// the same record twice yields identical results.
func Normalize(raw map[string]interface{}) (*models.Order, error) {
	if raw == nil {
		return nil, &ValidationError{Field: "record", Reason: "missing"}
	}

	orderNumber := PickString(raw, "order_number", "orderNumber", "id")
	if orderNumber == "" {
		return nil, &ValidationError{Field: "order_number", Reason: "missing"}
	}

	items, err := normalizeItems(raw["items"])
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, &ValidationError{Field: "items", Reason: "empty"}
	}

	o := &models.Order{
		OrderNumber: orderNumber,
		OrderID:     PickString(raw, "id", "order_id"),
		CreatedAt:   PickString(raw, "created_at", "time", "timestamp"),
		Source:      PickString(raw, "bron", "source"),
		Items:       items,
	}

	resolveCustomer(raw, o)
	resolveFulfillment(raw, o)
	resolveAddress(raw, o)
	resolveMoney(raw, o)

	o.PaymentMethod = PickString(raw, "payment_method", "payment.method", "pay_method", "paymentMethod", "payment")
	o.Remark = PickString(raw, "opmerking", "notes", "remark", "comment", "note")
	o.QRPayload = PickString(raw, "google_maps_link", "maps_link", "qr_url")

	return o, nil
}

func resolveCustomer(raw map[string]interface{}, o *models.Order) {
	o.CustomerName = PickString(raw,
		"customer.name", "customer.full_name", "customer.naam", "customer.klantnaam", "customer.voornaam",
		"customer_name", "name")
	o.Phone = PickString(raw, "customer.phone", "customer.telefoon", "customer.tel", "phone", "telefoon")
	o.Email = PickString(raw, "customer.email", "email")
}

func resolveFulfillment(raw map[string]interface{}, o *models.Order) {
	typeRaw := strings.ToLower(PickString(raw, "order_type", "type"))
	o.OrderType = typeRaw
	o.Delivery = strings.Contains(typeRaw, "bezorg") ||
		strings.Contains(typeRaw, "delivery") ||
		asBool(raw["delivery"])

	// The urgent marker on the order number wins over any explicit slot.
	o.IsASAP = asBool(raw["is_zsm"]) || asapSuffix.MatchString(o.OrderNumber)
	var slot string
	if o.Delivery {
		slot = PickString(raw, "tijdslot", "tijdslot_display", "delivery_time", "pickup_time")
	} else {
		slot = PickString(raw, "tijdslot", "tijdslot_display", "pickup_time", "delivery_time")
	}
	if o.IsASAP {
		o.TimeSlot = models.TimeSlotASAP
	} else {
		o.TimeSlot = slot
	}
}

func resolveAddress(raw map[string]interface{}, o *models.Order) {
	o.Street = PickString(raw, "street", "delivery.street", "address.street", "customer.street")
	o.HouseNumber = PickString(raw, "house_number", "housenumber", "delivery.house_number", "address.house_number", "customer.house_number")
	o.Postcode = PickString(raw, "postcode", "postal_code", "delivery.postcode", "address.postcode", "customer.postcode", "customer.zip")
	o.City = PickString(raw, "city", "town", "delivery.city", "address.city", "customer.city")

	if o.Street != "" && o.Postcode != "" && o.City != "" {
		return
	}
	text := PickString(raw, "customer.address", "address", "delivery.address")
	if text == "" {
		return
	}
	street, house, postcode, city := SplitAddress(text)
	if o.Street == "" {
		o.Street = street
	}
	if o.HouseNumber == "" {
		o.HouseNumber = house
	}
	if o.Postcode == "" {
		o.Postcode = postcode
	}
	if o.City == "" {
		o.City = city
	}
}

func resolveMoney(raw map[string]interface{}, o *models.Order) {
	subtotal, haveSubtotal := PickDecimal(raw, "summary.subtotal", "subtotal", "sub_total")
	if !haveSubtotal {
		// The only computed figure in the pipeline: a fallback when the
		// source provided nothing.
		subtotal = decimal.Zero
		for _, it := range o.Items {
			subtotal = subtotal.Add(it.LineTotal())
		}
	}
	o.Subtotal = round2(subtotal)

	packaging := PickMax(raw, "summary.packaging_fee", "verpakkingskosten", "packaging", "package_fee", "packaging_fee")
	surcharge := PickMax(raw, "toeslag", "surcharge", "service_fee")
	o.Packaging = round2(packaging.Add(surcharge))
	o.Deposit = round2(PickMax(raw, "statiegeld", "deposit"))
	o.DeliveryFee = round2(PickMax(raw, "summary.delivery_fee", "bezorgkosten", "delivery_cost", "delivery_fee"))
	o.Tip = round2(PickMax(raw, "summary.tip", "fooi", "tip"))

	// VAT is read, never derived from a rate. Split buckets and the
	// combined figure are independent sources.
	vatLow, _ := PickDecimal(raw, "btw_9", "btw9", "vat_9", "vat9")
	vatHigh, _ := PickDecimal(raw, "btw_21", "btw21", "vat_21", "vat21")
	o.VATLow = round2(vatLow)
	o.VATHigh = round2(vatHigh)
	vat, _ := PickDecimal(raw, "summary.btw", "btw_total", "vat_total", "btw", "vat")
	o.VAT = round2(vat)

	// Used-now and earned-for-later discounts come from mutually exclusive
	// candidate sets; a future-order coupon must never show as a deduction
	// on this receipt.
	usedAmount, haveUsed := PickDecimal(raw, "discount_used_amount", "discountAmount")
	o.DiscountUsed = models.Discount{
		Amount: round2(usedAmount),
		Code:   PickString(raw, "discount_used_code", "discountCode"),
	}
	if !haveUsed {
		o.DiscountUsed.Amount = round2(PickMax(raw, "korting", "discount"))
	}
	earnedAmount, _ := PickDecimal(raw, "discount_earned_amount", "discount_amount")
	o.DiscountEarned = models.Discount{
		Amount: round2(earnedAmount),
		Code:   PickString(raw, "discount_earned_code", "discount_code"),
	}

	total, haveTotal := PickDecimal(raw, "summary.total", "totaal", "total")
	if !haveTotal {
		total = o.Subtotal.Add(o.Packaging).Add(o.Deposit).Add(o.DeliveryFee).Add(o.Tip).Sub(o.DiscountUsed.Amount)
	}
	o.Total = round2(total)
}

func normalizeItems(v interface{}) ([]models.OrderItem, error) {
	if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
		// Flattened rows store items as a JSON string.
		var decoded interface{}
		if err := json.Unmarshal([]byte(s), &decoded); err != nil {
			return nil, &ValidationError{Field: "items", Reason: "not valid JSON"}
		}
		v = decoded
	}

	switch t := v.(type) {
	case nil:
		return nil, nil
	case []interface{}:
		items := make([]models.OrderItem, 0, len(t))
		for _, e := range t {
			m, ok := e.(map[string]interface{})
			if !ok {
				continue
			}
			items = append(items, itemFromMap(m, ""))
		}
		return items, nil
	case map[string]interface{}:
		// Keyed mapping: the key doubles as a fallback display name. Keys
		// are iterated sorted so repeated normalization is deterministic.
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		items := make([]models.OrderItem, 0, len(keys))
		for _, k := range keys {
			m, ok := t[k].(map[string]interface{})
			if !ok {
				continue
			}
			items = append(items, itemFromMap(m, k))
		}
		return items, nil
	default:
		return nil, &ValidationError{Field: "items", Reason: "unsupported shape"}
	}
}

func itemFromMap(m map[string]interface{}, fallbackName string) models.OrderItem {
	name := PickString(m, "displayName", "name")
	if name == "" {
		name = fallbackName
	}
	qty := asInt(Pick(m, "qty", "quantity"), 1)
	if qty < 1 {
		qty = 1
	}
	price, _ := asDecimal(Pick(m, "price", "unit_price"))

	var options []string
	if rawOpts, ok := Pick(m, "options").([]interface{}); ok {
		for _, opt := range rawOpts {
			if s := asString(opt); s != "" {
				options = append(options, s)
			}
		}
	}

	return models.OrderItem{
		Name:      name,
		Qty:       qty,
		UnitPrice: round2(price),
		Options:   options,
		Note:      PickString(m, "note", "remark"),
	}
}

func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
