package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOrderLineStatusEqualIgnoresSurrogateIDs(t *testing.T) {
	a := OrderLineStatus{
		ID:             1,
		OrderLineID:    10,
		Status:         "Shipped",
		StatusQuantity: Quantity{UnitOfMeasurement: "EACH", Amount: "2"},
		TrackingInfo: TrackingInfo{
			CarrierName:    CarrierName{Carrier: "UPS"},
			TrackingNumber: "1Z999",
		},
	}
	b := a
	b.ID = 42
	b.OrderLineID = 99

	require.True(t, a.Equal(b))
}

func TestOrderLineStatusEqualComparesEveryField(t *testing.T) {
	base := OrderLineStatus{
		Status:         "Shipped",
		StatusQuantity: Quantity{UnitOfMeasurement: "EACH", Amount: "2"},
		TrackingInfo: TrackingInfo{
			ShipDateTime:   1700000000000,
			CarrierName:    CarrierName{Carrier: "UPS"},
			MethodCode:     "Standard",
			TrackingNumber: "1Z999",
			TrackingURL:    "https://example.com/1Z999",
		},
	}

	cases := map[string]func(s *OrderLineStatus){
		"status":          func(s *OrderLineStatus) { s.Status = "Delivered" },
		"quantity amount": func(s *OrderLineStatus) { s.StatusQuantity.Amount = "3" },
		"quantity unit":   func(s *OrderLineStatus) { s.StatusQuantity.UnitOfMeasurement = "PACK" },
		"ship date":       func(s *OrderLineStatus) { s.TrackingInfo.ShipDateTime = 1 },
		"carrier":         func(s *OrderLineStatus) { s.TrackingInfo.CarrierName.Carrier = "USPS" },
		"other carrier":   func(s *OrderLineStatus) { s.TrackingInfo.CarrierName.OtherCarrier = "Local" },
		"method code":     func(s *OrderLineStatus) { s.TrackingInfo.MethodCode = "Express" },
		"tracking number": func(s *OrderLineStatus) { s.TrackingInfo.TrackingNumber = "1Z000" },
		"tracking url":    func(s *OrderLineStatus) { s.TrackingInfo.TrackingURL = "https://other" },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			changed := base
			mutate(&changed)
			require.False(t, base.Equal(changed))
		})
	}
}
