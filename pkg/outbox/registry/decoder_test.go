package registry

import (
	"encoding/json"
	"testing"

	"github.com/norberto-e-888/pos-app/pkg/enums"
	"github.com/norberto-e-888/pos-app/pkg/outbox/payloads"
)

func TestDecoderRegistry(t *testing.T) {
	reg := NewDecoderRegistry()
	reg.Register(enums.EventOrderCreated, 1, func(payload json.RawMessage) (interface{}, error) {
		var decoded map[string]string
		if err := json.Unmarshal(payload, &decoded); err != nil {
			return nil, err
		}
		return decoded, nil
	})

	input := json.RawMessage(`{"status":"DRAFTING"}`)
	output, err := reg.Decode(enums.EventOrderCreated, 1, input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outMap, ok := output.(map[string]string); !ok || outMap["status"] != "DRAFTING" {
		t.Fatalf("unexpected output %+v", output)
	}
	if _, err := reg.Decode(enums.EventOrderCreated, 2, input); err == nil {
		t.Fatalf("expected error for unregistered version")
	}
}

func TestPaymentDecoders(t *testing.T) {
	reg := NewPaymentDecoders()

	out, err := reg.Decode(enums.EventPaymentCheckoutCompleted, 1, json.RawMessage(`{"id":"cs_1","metadata":{"orderId":"abc"},"amount_total":300}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	event, ok := out.(*payloads.PaymentCheckoutEvent)
	if !ok || event.Metadata.OrderID != "abc" || event.AmountTotal != 300 {
		t.Fatalf("unexpected output %+v", out)
	}

	if _, err := reg.Decode(enums.EventPaymentCheckoutFailed, 1, json.RawMessage(`{"metadata":{}}`)); err == nil {
		t.Fatalf("expected error for missing order reference")
	}
}
