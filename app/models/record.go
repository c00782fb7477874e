package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// OrderRecord is a stored row in the orders table. The full raw payload is
// kept verbatim in Data; the flattened columns exist for querying and for
// whitelisted patching. Column names match the historical schema, including
// the camelCase discount pair that older writers produced.
type OrderRecord struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	OrderID     string `gorm:"index" json:"order_id"`
	OrderNumber string `gorm:"uniqueIndex;not null" json:"order_number"`
	Data        string `gorm:"type:text;not null" json:"data"`

	CustomerName string `json:"customer_name"`
	Phone        string `json:"phone"`
	Email        string `json:"email"`

	OrderType     string `json:"order_type"`
	PickupTime    string `json:"pickup_time"`
	DeliveryTime  string `json:"delivery_time"`
	PaymentMethod string `json:"payment_method"`

	Postcode    string `json:"postcode"`
	HouseNumber string `json:"house_number"`
	Street      string `json:"street"`
	City        string `json:"city"`

	Remark string `gorm:"column:opmerking" json:"opmerking"`
	Items  string `gorm:"type:text" json:"items"` // JSON, as supplied

	Subtotal     *float64 `json:"subtotal"`
	Total        *float64 `json:"total"`
	PackagingFee *float64 `json:"packaging_fee"`
	DeliveryFee  *float64 `json:"delivery_fee"`
	Tip          *float64 `json:"tip"`

	BTW9     *float64 `gorm:"column:btw_9" json:"btw_9"`
	BTW21    *float64 `gorm:"column:btw_21" json:"btw_21"`
	BTWTotal *float64 `gorm:"column:btw_total" json:"btw_total"`

	// Earned-toward-next-order pair (legacy snake_case columns).
	DiscountEarnedAmount *float64 `gorm:"column:discount_amount" json:"discount_amount"`
	DiscountEarnedCode   string   `gorm:"column:discount_code" json:"discount_code"`
	// Used-on-this-order pair (legacy camelCase columns).
	DiscountUsedAmount *float64 `gorm:"column:discountAmount" json:"discountAmount"`
	DiscountUsedCode   string   `gorm:"column:discountCode" json:"discountCode"`

	IsCompleted bool `gorm:"default:false" json:"is_completed"`
	IsCancelled bool `gorm:"default:false" json:"is_cancelled"`

	Source string `gorm:"column:bron;not null" json:"bron"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TableName keeps the historical table name.
func (OrderRecord) TableName() string { return "orders" }

// RawPayload decodes the stored payload and overlays the split-VAT columns,
// which may have been patched after the payload was written.
func (r *OrderRecord) RawPayload() (map[string]interface{}, error) {
	raw := map[string]interface{}{}
	if r.Data != "" {
		if err := json.Unmarshal([]byte(r.Data), &raw); err != nil {
			return nil, fmt.Errorf("decode order %s payload: %w", r.OrderNumber, err)
		}
	}
	if r.BTW9 != nil {
		raw["btw_9"] = *r.BTW9
	}
	if r.BTW21 != nil {
		raw["btw_21"] = *r.BTW21
	}
	return raw, nil
}
