package services

import (
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/backstage/services/marketsync/internal/models"
)

func lineWithStatuses(statuses ...models.OrderLineStatus) models.OrderLine {
	return models.OrderLine{Statuses: statuses}
}

func status(id uint, name string) models.OrderLineStatus {
	return models.OrderLineStatus{ID: id, Status: name}
}

func TestDeriveStatusDefaultsToAwaiting(t *testing.T) {
	require.Equal(t, "awaiting", deriveStatus(nil))
	require.Equal(t, "awaiting", deriveStatus([]models.OrderLine{lineWithStatuses()}))
}

func TestDeriveStatusUsesNewestEntryPerLine(t *testing.T) {
	// The newest entry wins regardless of slice order.
	line := lineWithStatuses(status(5, "Shipped"), status(2, "Created"))
	require.Equal(t, "shipped", deriveStatus([]models.OrderLine{line}))

	line = lineWithStatuses(status(2, "Shipped"), status(5, "Created"))
	require.Equal(t, "awaiting", deriveStatus([]models.OrderLine{line}))
}

func TestDeriveStatusShortCircuits(t *testing.T) {
	// An awaiting line stops the scan even when a later line shipped.
	lines := []models.OrderLine{
		lineWithStatuses(status(1, "Acknowledged")),
		lineWithStatuses(status(2, "Shipped")),
	}
	require.Equal(t, "awaiting", deriveStatus(lines))

	lines = []models.OrderLine{
		lineWithStatuses(status(1, "Cancelled")),
		lineWithStatuses(status(2, "Shipped")),
	}
	require.Equal(t, "cancelled", deriveStatus(lines))

	// A shipped line keeps scanning, so a later awaiting line wins.
	lines = []models.OrderLine{
		lineWithStatuses(status(1, "Shipped")),
		lineWithStatuses(status(2, "Created")),
	}
	require.Equal(t, "awaiting", deriveStatus(lines))
}

func TestDeriveStatusSkipsLinesWithoutHistory(t *testing.T) {
	lines := []models.OrderLine{
		lineWithStatuses(),
		lineWithStatuses(status(1, "Delivered")),
	}
	require.Equal(t, "shipped", deriveStatus(lines))
}

func TestToOrderSummaryPricesFromProductCharge(t *testing.T) {
	order := models.Order{
		ID:              7,
		PurchaseOrderID: "PO-1",
		CustomerOrderID: "CO-1",
		Lines: []models.OrderLine{{
			ID:       3,
			Item:     models.Item{SKU: "SKU-1", ProductName: "Widget", WeightValue: "8", WeightUnit: "Ounces"},
			Quantity: models.Quantity{Amount: "2"},
			Charges: []models.Charge{
				{
					ChargeType:   "SHIPPING",
					ChargeAmount: models.Money{Currency: "USD", Amount: 4.99},
				},
				{
					ChargeType:   "PRODUCT",
					ChargeAmount: models.Money{Currency: "USD", Amount: 19.99},
					Tax:          models.Tax{TaxAmount: models.Money{Currency: "USD", Amount: 1.65}},
				},
			},
		}},
	}

	summary := toOrderSummary(&order)

	require.Equal(t, "7", summary.ID)
	require.Equal(t, "PO-1-CO-1", summary.Number)
	require.Equal(t, "PO-1", summary.DispatchID)
	require.Len(t, summary.Items, 1)

	item := summary.Items[0]
	require.Equal(t, "3", item.Number)
	require.Equal(t, 2, item.Quantity)
	require.Equal(t, "USD", item.CurrencyCode)
	require.Equal(t, 21.64, item.TotalSellingPrice)
	require.Equal(t, 10.82, item.UnitSellingPrice)

	// Ounces are normalized to pounds.
	require.Equal(t, 0.5, item.Weight.Amount)
	require.Equal(t, "lb", item.Weight.Unit)
}

func TestToOrderSummaryWithoutProductCharge(t *testing.T) {
	order := models.Order{
		Lines: []models.OrderLine{{
			Quantity: models.Quantity{Amount: "0"},
		}},
	}

	summary := toOrderSummary(&order)
	item := summary.Items[0]

	require.Equal(t, "USD", item.CurrencyCode)
	require.Zero(t, item.TotalSellingPrice)
	require.Zero(t, item.UnitSellingPrice)
}

func TestToCustomerSummaryConvertsCountryCode(t *testing.T) {
	order := models.Order{
		CustomerEmailID: "buyer@example.com",
		ShippingInfo: &models.ShippingInfo{
			Phone: "555-0100",
			PostalAddress: models.PostalAddress{
				Name:        "Jordan Reyes",
				Address1:    "1 Main St",
				Address2:    "Apt 2",
				Country:     "USA",
				AddressType: "RESIDENTIAL",
			},
		},
	}

	summary := toOrderSummary(&order)

	require.Equal(t, "US", summary.Customer.CountryCode)
	require.Equal(t, "buyer@example.com", summary.Customer.Email)
	require.Equal(t, []string{"1 Main St", "Apt 2"}, summary.Customer.Street)
	require.True(t, summary.Customer.Residential)
}

func TestToCustomerSummaryPassesUnknownCountryThrough(t *testing.T) {
	order := models.Order{
		ShippingInfo: &models.ShippingInfo{
			PostalAddress: models.PostalAddress{Country: "XYZ"},
		},
	}

	summary := toOrderSummary(&order)
	require.Equal(t, "XYZ", summary.Customer.CountryCode)
}

func TestToOrderSummaryWithoutShippingInfo(t *testing.T) {
	summary := toOrderSummary(&models.Order{})
	require.Equal(t, CustomerSummary{}, summary.Customer)
	require.Equal(t, "awaiting", summary.Status)
}
