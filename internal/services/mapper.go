package services

import (
	"math"
	"strconv"

	"example.com/backstage/services/marketsync/internal/models"
)

// OrderSummary is the read-side view of a mirrored order.
type OrderSummary struct {
	ID         string          `json:"id"`
	CreatedAt  int64           `json:"created_at"`
	UpdatedAt  int64           `json:"updated_at"`
	Number     string          `json:"number"`
	DispatchID string          `json:"dispatch_id"`
	Status     string          `json:"status"`
	Tags       []string        `json:"tags"`
	BuyerNote  string          `json:"buyer_note"`
	Customer   CustomerSummary `json:"customer"`
	Items      []OrderItem     `json:"items"`
}

// CustomerSummary is the recipient block of an order summary.
type CustomerSummary struct {
	Name        string   `json:"name"`
	Company     string   `json:"company"`
	TaxNumber   string   `json:"tax_number"`
	Phone       string   `json:"phone"`
	Email       string   `json:"email"`
	CountryCode string   `json:"country_code"`
	ZipCode     string   `json:"zip_code"`
	StateCode   string   `json:"state_code"`
	City        string   `json:"city"`
	Street      []string `json:"street"`
	Residential bool     `json:"residential"`
}

// OrderItem is one line of an order summary.
type OrderItem struct {
	Number            string     `json:"number"`
	Code              string     `json:"code"`
	Description       string     `json:"description"`
	ImageURL          string     `json:"image_url"`
	CurrencyCode      string     `json:"currency_code"`
	Quantity          int        `json:"quantity"`
	TotalSellingPrice float64    `json:"total_selling_price"`
	UnitSellingPrice  float64    `json:"unit_selling_price"`
	Dimensions        Dimensions `json:"dimensions"`
	Weight            WeightInfo `json:"weight"`
}

// Dimensions is a placeholder box size; the marketplace does not report
// package dimensions.
type Dimensions struct {
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Unit   string  `json:"unit"`
}

// WeightInfo is the item weight normalized to pounds.
type WeightInfo struct {
	Amount float64 `json:"amount"`
	Unit   string  `json:"unit"`
}

// toOrderSummaries maps stored orders to their read-side view.
func toOrderSummaries(orders []models.Order) []OrderSummary {
	summaries := make([]OrderSummary, 0, len(orders))
	for i := range orders {
		summaries = append(summaries, toOrderSummary(&orders[i]))
	}
	return summaries
}

func toOrderSummary(order *models.Order) OrderSummary {
	return OrderSummary{
		ID:         strconv.FormatUint(uint64(order.ID), 10),
		CreatedAt:  order.OrderDate,
		UpdatedAt:  order.OrderLocalUpdateDate,
		Number:     order.PurchaseOrderID + "-" + order.CustomerOrderID,
		DispatchID: order.PurchaseOrderID,
		Status:     deriveStatus(order.Lines),
		Tags:       []string{},
		Customer:   toCustomerSummary(order.ShippingInfo, order.CustomerEmailID),
		Items:      toOrderItems(order.Lines),
	}
}

// deriveStatus folds line status histories into one order status. Lines
// are visited in stored order; per line only the newest history entry
// counts. Created and Acknowledged short-circuit to awaiting, Cancelled
// short-circuits to cancelled, anything else marks the order shipped
// and the scan continues.
func deriveStatus(lines []models.OrderLine) string {
	result := "awaiting"

	for i := range lines {
		latest := latestStatus(lines[i].Statuses)
		if latest == nil {
			continue
		}

		switch latest.Status {
		case "Created", "Acknowledged":
			return "awaiting"
		case "Cancelled":
			return "cancelled"
		default:
			result = "shipped"
		}
	}

	return result
}

// latestStatus picks the history entry with the largest surrogate id.
func latestStatus(statuses []models.OrderLineStatus) *models.OrderLineStatus {
	var latest *models.OrderLineStatus
	for i := range statuses {
		if latest == nil || statuses[i].ID > latest.ID {
			latest = &statuses[i]
		}
	}
	return latest
}

func toCustomerSummary(info *models.ShippingInfo, email string) CustomerSummary {
	if info == nil {
		return CustomerSummary{}
	}

	addr := info.PostalAddress
	return CustomerSummary{
		Name:        addr.Name,
		Phone:       info.Phone,
		Email:       email,
		CountryCode: countryAlpha2(addr.Country),
		ZipCode:     addr.PostalCode,
		StateCode:   addr.State,
		City:        addr.City,
		Street:      []string{addr.Address1, addr.Address2},
		Residential: addr.AddressType == "RESIDENTIAL",
	}
}

func toOrderItems(lines []models.OrderLine) []OrderItem {
	items := make([]OrderItem, 0, len(lines))

	for i := range lines {
		line := &lines[i]

		item := OrderItem{
			Number:       strconv.FormatUint(uint64(line.ID), 10),
			Code:         line.Item.SKU,
			Description:  line.Item.ProductName,
			ImageURL:     line.Item.ImageURL,
			CurrencyCode: "USD",
			Dimensions:   Dimensions{Unit: "cm"},
		}

		quantity, _ := strconv.Atoi(line.Quantity.Amount)
		item.Quantity = quantity

		if charge := findCharge(line.Charges, "PRODUCT"); charge != nil {
			item.CurrencyCode = charge.ChargeAmount.Currency
			item.TotalSellingPrice = roundCents(charge.ChargeAmount.Amount + charge.Tax.TaxAmount.Amount)
			if quantity > 0 {
				item.UnitSellingPrice = roundCents(item.TotalSellingPrice / float64(quantity))
			}
		}

		weight, _ := strconv.ParseFloat(line.Item.WeightValue, 64)
		if unit := line.Item.WeightUnit; unit == "Ounces" || unit == "oz" {
			weight = weight / 16
		}
		item.Weight = WeightInfo{Amount: weight, Unit: "lb"}

		items = append(items, item)
	}

	return items
}

func findCharge(charges []models.Charge, chargeType string) *models.Charge {
	for i := range charges {
		if charges[i].ChargeType == chargeType {
			return &charges[i]
		}
	}
	return nil
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// countryAlpha2 maps an ISO 3166-1 alpha-3 country code to alpha-2,
// covering the countries the marketplace ships to. Unknown codes pass
// through unchanged.
func countryAlpha2(alpha3 string) string {
	if alpha2, ok := countryCodes[alpha3]; ok {
		return alpha2
	}
	return alpha3
}

var countryCodes = map[string]string{
	"USA": "US",
	"CAN": "CA",
	"MEX": "MX",
	"PRI": "PR",
	"VIR": "VI",
	"GUM": "GU",
	"ASM": "AS",
	"GBR": "GB",
	"IRL": "IE",
	"DEU": "DE",
	"FRA": "FR",
	"ESP": "ES",
	"ITA": "IT",
	"PRT": "PT",
	"NLD": "NL",
	"BEL": "BE",
	"LUX": "LU",
	"CHE": "CH",
	"AUT": "AT",
	"DNK": "DK",
	"SWE": "SE",
	"NOR": "NO",
	"FIN": "FI",
	"POL": "PL",
	"CZE": "CZ",
	"GRC": "GR",
	"TUR": "TR",
	"AUS": "AU",
	"NZL": "NZ",
	"JPN": "JP",
	"KOR": "KR",
	"CHN": "CN",
	"HKG": "HK",
	"TWN": "TW",
	"SGP": "SG",
	"IND": "IN",
	"BRA": "BR",
	"ARG": "AR",
	"CHL": "CL",
	"COL": "CO",
	"ISR": "IL",
	"ARE": "AE",
	"SAU": "SA",
	"ZAF": "ZA",
}
