package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestFulfillmentPayloadRoundTrip(t *testing.T) {
	voucher := "voucher-1"
	payload := FulfillmentPayload{
		UserID:         "user-1",
		AppliedVoucher: &voucher,
		AmountPayable:  9000,
		Items: []PayloadItem{
			{ID: "item-1", ActivityName: "Kayak Tour", UnitPrice: 5000, Quantity: 2},
		},
	}

	meta, err := payload.Encode()
	if err != nil {
		t.Fatalf("unexpected encode error: %v", err)
	}
	if meta[MetaPayloadVersion] != "1" {
		t.Fatalf("expected version 1, got %q", meta[MetaPayloadVersion])
	}
	if meta[MetaAmountPayable] != "9000" {
		t.Fatalf("expected amount 9000, got %q", meta[MetaAmountPayable])
	}

	decoded, err := DecodeFulfillmentPayload(meta)
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if decoded.UserID != "user-1" {
		t.Fatalf("expected user-1, got %s", decoded.UserID)
	}
	if decoded.AppliedVoucher == nil || *decoded.AppliedVoucher != "voucher-1" {
		t.Fatalf("expected applied voucher voucher-1, got %#v", decoded.AppliedVoucher)
	}
	if decoded.AmountPayable != 9000 {
		t.Fatalf("expected amount 9000, got %d", decoded.AmountPayable)
	}
	if len(decoded.Items) != 1 || decoded.Items[0].Quantity != 2 {
		t.Fatalf("unexpected items %#v", decoded.Items)
	}
}

func TestFulfillmentPayloadEncodeWithoutVoucherOmitsKey(t *testing.T) {
	payload := FulfillmentPayload{
		UserID:        "user-1",
		AmountPayable: 5000,
		Items:         []PayloadItem{{ID: "item-1", UnitPrice: 5000, Quantity: 1}},
	}
	meta, err := payload.Encode()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := meta[MetaAppliedVoucher]; ok {
		t.Fatalf("expected no voucher key, got %q", meta[MetaAppliedVoucher])
	}
}

func TestDecodeFulfillmentPayloadFailures(t *testing.T) {
	base := func() map[string]string {
		return map[string]string{
			MetaPayloadVersion: "1",
			MetaUserID:         "user-1",
			MetaAmountPayable:  "5000",
			MetaCartItems:      `[{"id":"item-1","name":"Kayak","price":5000,"quantity":1}]`,
		}
	}

	cases := []struct {
		name   string
		mutate func(map[string]string)
	}{
		{"missing version", func(m map[string]string) { delete(m, MetaPayloadVersion) }},
		{"bad version", func(m map[string]string) { m[MetaPayloadVersion] = "zero" }},
		{"future version", func(m map[string]string) { m[MetaPayloadVersion] = "9" }},
		{"missing user", func(m map[string]string) { delete(m, MetaUserID) }},
		{"missing amount", func(m map[string]string) { delete(m, MetaAmountPayable) }},
		{"negative amount", func(m map[string]string) { m[MetaAmountPayable] = "-100" }},
		{"unparsable amount", func(m map[string]string) { m[MetaAmountPayable] = "ninety" }},
		{"missing items", func(m map[string]string) { delete(m, MetaCartItems) }},
		{"unparsable items", func(m map[string]string) { m[MetaCartItems] = "{" }},
		{"empty items", func(m map[string]string) { m[MetaCartItems] = "[]" }},
		{"zero quantity item", func(m map[string]string) {
			m[MetaCartItems] = `[{"id":"item-1","price":5000,"quantity":0}]`
		}},
		{"item without id", func(m map[string]string) {
			m[MetaCartItems] = `[{"price":5000,"quantity":1}]`
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			meta := base()
			tc.mutate(meta)
			_, err := DecodeFulfillmentPayload(meta)
			if !errors.Is(err, ErrMalformedPayload) {
				t.Fatalf("expected ErrMalformedPayload, got %v", err)
			}
		})
	}
}

func TestEncodeRejectsEmptyPayload(t *testing.T) {
	_, err := FulfillmentPayload{UserID: " ", Items: nil}.Encode()
	if !errors.Is(err, ErrMalformedPayload) {
		t.Fatalf("expected ErrMalformedPayload, got %v", err)
	}
	_, err = FulfillmentPayload{UserID: "user-1"}.Encode()
	if err == nil || !strings.Contains(err.Error(), "cart item") {
		t.Fatalf("expected missing items error, got %v", err)
	}
}
