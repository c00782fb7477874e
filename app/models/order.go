package models

import (
	"github.com/shopspring/decimal"
)

// TimeSlotASAP is the display sentinel for orders that must go out as soon
// as possible. It overrides any explicit time slot carried by the record.
const TimeSlotASAP = "Z.S.M."

// DiscountCodeRegister is the reserved discount code for discounts applied
// at the register; it renders with a fixed label instead of the code.
const DiscountCodeRegister = "KASSA"

// Order is the canonical normalized order. It is built once by the
// normalizer and consumed read-only by layout and emission; nothing
// downstream mutates it.
type Order struct {
	OrderNumber string `json:"order_number"`
	OrderID     string `json:"order_id,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"` // display string, not parsed
	Source      string `json:"source,omitempty"`

	CustomerName string `json:"customer_name,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Email        string `json:"email,omitempty"`

	OrderType string `json:"order_type,omitempty"`
	Delivery  bool   `json:"delivery"`
	IsASAP    bool   `json:"is_asap"`
	TimeSlot  string `json:"time_slot,omitempty"`

	Street      string `json:"street,omitempty"`
	HouseNumber string `json:"house_number,omitempty"`
	Postcode    string `json:"postcode,omitempty"`
	City        string `json:"city,omitempty"`

	Items []OrderItem `json:"items"`

	Subtotal    decimal.Decimal `json:"subtotal"`
	Packaging   decimal.Decimal `json:"packaging"` // packaging fee + surcharge, summed
	Deposit     decimal.Decimal `json:"deposit"`   // statiegeld, informational only
	DeliveryFee decimal.Decimal `json:"delivery_fee"`
	Tip         decimal.Decimal `json:"tip"`
	VAT         decimal.Decimal `json:"vat"`      // combined figure
	VATLow      decimal.Decimal `json:"vat_low"`  // 9% bucket
	VATHigh     decimal.Decimal `json:"vat_high"` // 21% bucket
	Total       decimal.Decimal `json:"total"`

	// Discount applied to this order vs. discount earned toward a future
	// order. These come from disjoint source fields and are never merged.
	DiscountUsed   Discount `json:"discount_used"`
	DiscountEarned Discount `json:"discount_earned"`

	PaymentMethod string `json:"payment_method,omitempty"`
	Remark        string `json:"remark,omitempty"`
	QRPayload     string `json:"qr_payload,omitempty"`
}

// OrderItem is one line item on the receipt.
type OrderItem struct {
	Name      string          `json:"name"`
	Qty       int             `json:"qty"`
	UnitPrice decimal.Decimal `json:"price"`
	Options   []string        `json:"options,omitempty"`
	Note      string          `json:"note,omitempty"`
}

// LineTotal returns qty × unit price.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Qty)))
}

// Discount is an amount/code pair.
type Discount struct {
	Amount decimal.Decimal `json:"amount"`
	Code   string          `json:"code,omitempty"`
}

// Present reports whether the discount carries anything worth rendering.
func (d Discount) Present() bool {
	return d.Amount.IsPositive() || d.Code != ""
}

// HasVATSplit reports whether tax arrived pre-split into rate buckets.
func (o *Order) HasVATSplit() bool {
	return !o.VATLow.IsZero() || !o.VATHigh.IsZero()
}
