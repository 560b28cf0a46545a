package validator

import (
	"fmt"
	"strings"

	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/usecase"
)

const (
	maxOrderLines    = 50
	maxLineQuantity  = 1000
	maxNotesLen      = 1000
	maxVariantFields = 20
)

type orderValidator struct{}

func NewOrderValidator() usecase.OrderValidator {
	return orderValidator{}
}

// ValidateCreateOrder は注文作成の入力を検証する。数量・商品IDの不正はここで弾き、
// 金額計算には渡さない。
func (orderValidator) ValidateCreateOrder(in usecase.CreateOrderInput) map[string]string {
	fields := map[string]string{}

	switch {
	case len(in.Items) == 0:
		fields["items"] = "at least one item is required"
	case len(in.Items) > maxOrderLines:
		fields["items"] = fmt.Sprintf("at most %d items", maxOrderLines)
	}
	for i, it := range in.Items {
		if it.ProductID <= 0 {
			fields[fmt.Sprintf("items[%d].product_id", i)] = "must be positive"
		}
		if it.Quantity < 1 || it.Quantity > maxLineQuantity {
			fields[fmt.Sprintf("items[%d].quantity", i)] = fmt.Sprintf("must be between 1 and %d", maxLineQuantity)
		}
		if len(it.Variant) > maxVariantFields {
			fields[fmt.Sprintf("items[%d].variant", i)] = "too many attributes"
		}
	}

	for _, name := range in.ShippingAddress.MissingFields() {
		fields["shipping_address."+name] = "is required"
	}
	if in.BillingAddress != nil {
		for _, name := range in.BillingAddress.MissingFields() {
			fields["billing_address."+name] = "is required"
		}
	}

	if len(strings.TrimSpace(in.Notes)) > maxNotesLen {
		fields["notes"] = fmt.Sprintf("at most %d characters", maxNotesLen)
	}
	return fields
}
