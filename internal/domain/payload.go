package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// FulfillmentPayloadVersion identifies the current payload schema carried in
// gateway session metadata.
const FulfillmentPayloadVersion = 1

// Metadata keys used on the payment session. The payload is the sole channel
// of information between session creation and event processing; the cart is
// not trusted to survive the asynchronous round trip unchanged.
const (
	MetaPayloadVersion = "payloadVersion"
	MetaUserID         = "userId"
	MetaAppliedVoucher = "appliedVoucher"
	MetaAmountPayable  = "amountPayable"
	MetaCartItems      = "cartItems"
)

// ErrMalformedPayload is returned when required payload fields are missing
// or unparsable.
var ErrMalformedPayload = errors.New("payload: malformed fulfillment payload")

// PayloadItem is the cart line snapshot embedded in the fulfillment payload.
type PayloadItem struct {
	ID           string `json:"id"`
	ActivityName string `json:"name"`
	UnitPrice    int64  `json:"price"`
	Quantity     int    `json:"quantity"`
}

// FulfillmentPayload is the strongly typed contract embedded in the payment
// session metadata at checkout and recovered from the confirmation event.
type FulfillmentPayload struct {
	Version        int
	UserID         string
	AppliedVoucher *string
	AmountPayable  int64
	Items          []PayloadItem
}

// Encode serialises the payload into gateway metadata key/value pairs.
func (p FulfillmentPayload) Encode() (map[string]string, error) {
	if strings.TrimSpace(p.UserID) == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrMalformedPayload)
	}
	if len(p.Items) == 0 {
		return nil, fmt.Errorf("%w: at least one cart item is required", ErrMalformedPayload)
	}
	items, err := json.Marshal(p.Items)
	if err != nil {
		return nil, fmt.Errorf("%w: encode cart items: %v", ErrMalformedPayload, err)
	}

	version := p.Version
	if version == 0 {
		version = FulfillmentPayloadVersion
	}

	meta := map[string]string{
		MetaPayloadVersion: strconv.Itoa(version),
		MetaUserID:         p.UserID,
		MetaAmountPayable:  strconv.FormatInt(p.AmountPayable, 10),
		MetaCartItems:      string(items),
	}
	if p.AppliedVoucher != nil && strings.TrimSpace(*p.AppliedVoucher) != "" {
		meta[MetaAppliedVoucher] = strings.TrimSpace(*p.AppliedVoucher)
	}
	return meta, nil
}

// DecodeFulfillmentPayload parses gateway event metadata back into the typed
// payload, failing explicitly on any missing or unparsable field.
func DecodeFulfillmentPayload(meta map[string]string) (FulfillmentPayload, error) {
	if len(meta) == 0 {
		return FulfillmentPayload{}, fmt.Errorf("%w: metadata is empty", ErrMalformedPayload)
	}

	rawVersion := strings.TrimSpace(meta[MetaPayloadVersion])
	if rawVersion == "" {
		return FulfillmentPayload{}, fmt.Errorf("%w: %s missing", ErrMalformedPayload, MetaPayloadVersion)
	}
	version, err := strconv.Atoi(rawVersion)
	if err != nil || version <= 0 {
		return FulfillmentPayload{}, fmt.Errorf("%w: %s %q invalid", ErrMalformedPayload, MetaPayloadVersion, rawVersion)
	}
	if version > FulfillmentPayloadVersion {
		return FulfillmentPayload{}, fmt.Errorf("%w: unsupported payload version %d", ErrMalformedPayload, version)
	}

	userID := strings.TrimSpace(meta[MetaUserID])
	if userID == "" {
		return FulfillmentPayload{}, fmt.Errorf("%w: %s missing", ErrMalformedPayload, MetaUserID)
	}

	rawAmount := strings.TrimSpace(meta[MetaAmountPayable])
	if rawAmount == "" {
		return FulfillmentPayload{}, fmt.Errorf("%w: %s missing", ErrMalformedPayload, MetaAmountPayable)
	}
	amount, err := strconv.ParseInt(rawAmount, 10, 64)
	if err != nil || amount < 0 {
		return FulfillmentPayload{}, fmt.Errorf("%w: %s %q invalid", ErrMalformedPayload, MetaAmountPayable, rawAmount)
	}

	rawItems := strings.TrimSpace(meta[MetaCartItems])
	if rawItems == "" {
		return FulfillmentPayload{}, fmt.Errorf("%w: %s missing", ErrMalformedPayload, MetaCartItems)
	}
	var items []PayloadItem
	if err := json.Unmarshal([]byte(rawItems), &items); err != nil {
		return FulfillmentPayload{}, fmt.Errorf("%w: %s unparsable: %v", ErrMalformedPayload, MetaCartItems, err)
	}
	if len(items) == 0 {
		return FulfillmentPayload{}, fmt.Errorf("%w: %s is empty", ErrMalformedPayload, MetaCartItems)
	}
	for _, item := range items {
		if strings.TrimSpace(item.ID) == "" {
			return FulfillmentPayload{}, fmt.Errorf("%w: cart item id missing", ErrMalformedPayload)
		}
		if item.Quantity <= 0 {
			return FulfillmentPayload{}, fmt.Errorf("%w: cart item %s quantity must be positive", ErrMalformedPayload, item.ID)
		}
		if item.UnitPrice < 0 {
			return FulfillmentPayload{}, fmt.Errorf("%w: cart item %s price cannot be negative", ErrMalformedPayload, item.ID)
		}
	}

	payload := FulfillmentPayload{
		Version:       version,
		UserID:        userID,
		AmountPayable: amount,
		Items:         items,
	}
	if voucher := strings.TrimSpace(meta[MetaAppliedVoucher]); voucher != "" {
		payload.AppliedVoucher = &voucher
	}
	return payload, nil
}
