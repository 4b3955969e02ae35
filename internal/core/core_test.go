package core

import (
	"testing"
	"time"
)

func TestDeliveryValid(t *testing.T) {
	cases := []struct {
		name string
		d    Delivery
		want bool
	}{
		{"email only", Delivery{Email: &EmailDelivery{Email: "a@b.c"}}, true},
		{"chat only", Delivery{Chat: &ChatDelivery{ChatID: "oc_1"}}, true},
		{"neither", Delivery{}, false},
		{"both", Delivery{Email: &EmailDelivery{}, Chat: &ChatDelivery{}}, false},
	}
	for _, tc := range cases {
		if got := tc.d.Valid(); got != tc.want {
			t.Errorf("%s: Valid() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestPipelineContextClock(t *testing.T) {
	fixed := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	ctx := PipelineContext{Now: func() time.Time { return fixed }}
	if !ctx.Clock().Equal(fixed) {
		t.Errorf("expected injected clock, got %v", ctx.Clock())
	}

	var zero PipelineContext
	if zero.Clock().IsZero() {
		t.Errorf("zero context should fall back to time.Now")
	}
}
