package normalize

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"receiptd/app/models"
)

func item(name string, qty int, price string) map[string]interface{} {
	return map[string]interface{}{"name": name, "qty": qty, "price": price}
}

func baseOrder() map[string]interface{} {
	return map[string]interface{}{
		"order_number": "1042",
		"items": []interface{}{
			item("Babi Pangang", 2, "13.50"),
			item("Nasi Goreng", 1, "9.00"),
		},
	}
}

func TestNormalizeRequiresOrderNumber(t *testing.T) {
	raw := baseOrder()
	delete(raw, "order_number")

	_, err := Normalize(raw)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "order_number", verr.Field)
}

func TestNormalizeRequiresItems(t *testing.T) {
	raw := baseOrder()
	raw["items"] = []interface{}{}

	_, err := Normalize(raw)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "items", verr.Field)
}

func TestNormalizeSubtotalFallback(t *testing.T) {
	o, err := Normalize(baseOrder())
	require.NoError(t, err)

	assert.True(t, o.Subtotal.Equal(decimal.RequireFromString("36.00")), "got %s", o.Subtotal)
	assert.True(t, o.Total.Equal(decimal.RequireFromString("36.00")))
}

func TestNormalizeSuppliedTotalsAreNotRecomputed(t *testing.T) {
	raw := baseOrder()
	raw["subtotal"] = "40.00"
	raw["totaal"] = "41.50"

	o, err := Normalize(raw)
	require.NoError(t, err)

	assert.True(t, o.Subtotal.Equal(decimal.RequireFromString("40.00")))
	assert.True(t, o.Total.Equal(decimal.RequireFromString("41.50")))
}

func TestNormalizeASAPFromOrderNumberSuffix(t *testing.T) {
	raw := baseOrder()
	raw["order_number"] = "1099Z"
	raw["tijdslot"] = "18:30"

	o, err := Normalize(raw)
	require.NoError(t, err)

	assert.True(t, o.IsASAP)
	assert.Equal(t, models.TimeSlotASAP, o.TimeSlot)
}

func TestNormalizeASAPFlag(t *testing.T) {
	raw := baseOrder()
	raw["is_zsm"] = true

	o, err := Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, models.TimeSlotASAP, o.TimeSlot)
}

func TestNormalizeDeliveryDetection(t *testing.T) {
	for _, typ := range []string{"bezorgen", "Bezorging", "delivery", "DELIVERY"} {
		raw := baseOrder()
		raw["type"] = typ
		o, err := Normalize(raw)
		require.NoError(t, err)
		assert.True(t, o.Delivery, "type %q", typ)
	}

	raw := baseOrder()
	raw["type"] = "afhalen"
	o, err := Normalize(raw)
	require.NoError(t, err)
	assert.False(t, o.Delivery)
}

func TestNormalizeKeyedItemMap(t *testing.T) {
	raw := baseOrder()
	raw["items"] = map[string]interface{}{
		"Loempia": map[string]interface{}{"qty": 3, "price": 2.5},
		"Kroepoek": map[string]interface{}{
			"price": 3.0,
			"name":  "Kroepoek Groot",
		},
	}

	o, err := Normalize(raw)
	require.NoError(t, err)

	require.Len(t, o.Items, 2)
	// Sorted by key, and the key only names items without their own name.
	assert.Equal(t, "Kroepoek Groot", o.Items[0].Name)
	assert.Equal(t, 1, o.Items[0].Qty)
	assert.Equal(t, "Loempia", o.Items[1].Name)
	assert.Equal(t, 3, o.Items[1].Qty)
}

func TestNormalizeItemsFromJSONString(t *testing.T) {
	raw := baseOrder()
	raw["items"] = `[{"name":"Sate","qty":2,"price":"6.75"}]`

	o, err := Normalize(raw)
	require.NoError(t, err)
	require.Len(t, o.Items, 1)
	assert.Equal(t, "Sate", o.Items[0].Name)
	assert.True(t, o.Items[0].UnitPrice.Equal(decimal.RequireFromString("6.75")))
}

func TestNormalizeDiscountUsedVersusEarned(t *testing.T) {
	raw := baseOrder()
	raw["discountAmount"] = "2.50"
	raw["discountCode"] = "WELKOM"
	raw["discount_amount"] = "5.00"
	raw["discount_code"] = "VOLGENDE"

	o, err := Normalize(raw)
	require.NoError(t, err)

	assert.True(t, o.DiscountUsed.Amount.Equal(decimal.RequireFromString("2.50")))
	assert.Equal(t, "WELKOM", o.DiscountUsed.Code)
	assert.True(t, o.DiscountEarned.Amount.Equal(decimal.RequireFromString("5.00")))
	assert.Equal(t, "VOLGENDE", o.DiscountEarned.Code)
}

func TestNormalizeLegacyDiscountOnlyWhenUsedAbsent(t *testing.T) {
	raw := baseOrder()
	raw["korting"] = "1.00"

	o, err := Normalize(raw)
	require.NoError(t, err)
	assert.True(t, o.DiscountUsed.Amount.Equal(decimal.RequireFromString("1.00")))

	raw["discount_used_amount"] = "0.50"
	o, err = Normalize(raw)
	require.NoError(t, err)
	assert.True(t, o.DiscountUsed.Amount.Equal(decimal.RequireFromString("0.50")))
}

func TestNormalizeAddressFreeText(t *testing.T) {
	raw := baseOrder()
	raw["type"] = "bezorgen"
	raw["customer"] = map[string]interface{}{
		"naam":    "J. de Vries",
		"address": "Dorpsstraat 12a, 1234 AB Amsterdam",
	}

	o, err := Normalize(raw)
	require.NoError(t, err)

	assert.Equal(t, "J. de Vries", o.CustomerName)
	assert.Equal(t, "Dorpsstraat", o.Street)
	assert.Equal(t, "12a", o.HouseNumber)
	assert.Equal(t, "1234AB", o.Postcode)
	assert.Equal(t, "Amsterdam", o.City)
}

func TestNormalizeStructuredAddressWins(t *testing.T) {
	raw := baseOrder()
	raw["street"] = "Kerkstraat"
	raw["house_number"] = "5"
	raw["postcode"] = "9999 ZZ"
	raw["city"] = "Utrecht"
	raw["address"] = "Andereweg 1, 1111 AA Elders"

	o, err := Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, "Kerkstraat", o.Street)
	assert.Equal(t, "Utrecht", o.City)
}

func TestNormalizePackagingSumsFeeAndSurcharge(t *testing.T) {
	raw := baseOrder()
	raw["verpakkingskosten"] = "0.50"
	raw["packaging_fee"] = "0.30" // lower duplicate of the same fee
	raw["toeslag"] = "0.25"

	o, err := Normalize(raw)
	require.NoError(t, err)
	assert.True(t, o.Packaging.Equal(decimal.RequireFromString("0.75")), "got %s", o.Packaging)
}

func TestNormalizeVATBuckets(t *testing.T) {
	raw := baseOrder()
	raw["btw_9"] = "1.20"
	raw["btw_21"] = "0.80"
	raw["btw_total"] = "2.00"

	o, err := Normalize(raw)
	require.NoError(t, err)
	assert.True(t, o.HasVATSplit())
	assert.True(t, o.VATLow.Equal(decimal.RequireFromString("1.20")))
	assert.True(t, o.VATHigh.Equal(decimal.RequireFromString("0.80")))
	assert.True(t, o.VAT.Equal(decimal.RequireFromString("2.00")))
}

func TestNormalizeIdempotent(t *testing.T) {
	raw := baseOrder()
	raw["customer"] = map[string]interface{}{"name": "):-", "phone": "0612345678"}
	raw["tijdslot"] = "17:45"

	first, err := Normalize(raw)
	require.NoError(t, err)
	second, err := Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
