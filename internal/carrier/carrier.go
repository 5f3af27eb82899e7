// Package carrier maps free-text carrier codes onto the fixed set of
// carrier names the marketplace accepts on shipment confirmations.
package carrier

import "strings"

// carrierMapping translates application carrier codes to the
// marketplace enumeration value. Codes without an accepted mapping
// (evri, uniuni, intelcom, ...) are intentionally absent.
var carrierMapping = map[string]string{
	"dhl":     "DHL",
	"usps":    "USPS",
	"fedex":   "FedEx",
	"ups":     "UPS",
	"asendia": "Asendia",
}

// Resolve converts a free-text carrier code to the marketplace carrier
// enumeration value. Matching is case-insensitive and ignores
// surrounding whitespace. The second return is false when the code has
// no accepted mapping, including blank input.
func Resolve(code string) (string, bool) {
	normalized := strings.ToLower(strings.TrimSpace(code))
	if normalized == "" {
		return "", false
	}

	mapped, ok := carrierMapping[normalized]
	return mapped, ok
}

// SupportedCarriers is the full enumeration of carrier names the
// marketplace accepts.
var SupportedCarriers = []string{
	"UPS", "USPS", "FedEx", "Airborne", "OnTrac", "DHL Ecommerce - US",
	"DHL", "LS", "UDS", "UPSMI", "FDX", "PILOT", "ESTES", "SAIA",
	"FDS Express", "Seko Worldwide", "HIT Delivery", "FEDEXSP",
	"RL Carriers", "Metropolitan Warehouse & Delivery", "China Post",
	"YunExpress", "Yellow Freight Sys", "AIT Worldwide Logistics",
	"Chukou1", "Sendle", "Landmark Global", "Sunyou", "Yanwen", "4PX",
	"GLS", "OSM Worldwide", "FIRST MILE", "AM Trucking", "CEVA",
	"India Post", "SF Express", "CNE", "TForce Freight", "AxleHire",
	"LSO", "Royal Mail", "ABF Freight System", "WanB",
	"Roadrunner Freight", "Meyer Distribution", "AAA Cooper",
	"Canada Post", "Southeastern Freight Lines", "Japan Post",
	"Correos de Mexico", "XPO Logistics", "JD Logistics", "YDH", "JCEX",
	"Flyt", "Deutsche Post", "Better Trucks", "Asendia", "SFC", "UBI",
	"ePost Global", "YF Logistics", "RXO", "Estes Express", "Shypmax",
	"WIN.IT America", "PITT OHIO", "PostNord Sweden", "Equick", "Whistl",
	"Tusou", "Shiprocket", "DTDC", "PTS",
}
