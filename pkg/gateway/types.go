package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/angelmondragon/storefront/pkg/types"
)

// CartItem is one line mirrored onto the remote cart.
type CartItem struct {
	StoreID   int64 `json:"store_id"`
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type addToCartRequest struct {
	CartItems []CartItem `json:"cartItems"`
}

// CheckoutRequest places the order for one store.
type CheckoutRequest struct {
	StoreID         int64         `json:"store_id"`
	PaymentMethodID string        `json:"payment_method_id"`
	Address         types.Address `json:"address"`
	CouponCode      string        `json:"coupon_code,omitempty"`
}

// CheckoutResult is the gateway's verdict for one store.
type CheckoutResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// decodeList accepts either a bare JSON array or an object wrapping the
// array under "data", both of which the marketplace API serves.
func decodeList(raw json.RawMessage, dest any) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return json.Unmarshal([]byte("[]"), dest)
	}
	if trimmed[0] == '[' {
		return json.Unmarshal(trimmed, dest)
	}
	var wrapped struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return err
	}
	data := bytes.TrimSpace(wrapped.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return json.Unmarshal([]byte("[]"), dest)
	}
	if data[0] != '[' {
		return fmt.Errorf("expected array under data")
	}
	return json.Unmarshal(data, dest)
}

// decodeObject accepts either a bare object or one wrapped under "data".
func decodeObject(raw json.RawMessage, dest any) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return fmt.Errorf("expected JSON object")
	}
	var wrapped struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err == nil {
		if data := bytes.TrimSpace(wrapped.Data); len(data) > 0 && data[0] == '{' {
			return json.Unmarshal(data, dest)
		}
	}
	return json.Unmarshal(trimmed, dest)
}
