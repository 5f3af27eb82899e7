package marketplace

// JSON shapes of the remote marketplace API.

// TokenResponse is the credential exchange response.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// OrderListRoot is the paginated order listing response.
type OrderListRoot struct {
	List OrderListWrapper `json:"list"`
}

// OrderListWrapper carries one page of orders plus paging metadata.
type OrderListWrapper struct {
	Meta     Meta     `json:"meta"`
	Elements Elements `json:"elements"`
}

// Meta is the paging metadata of a listing page. NextCursor is empty
// on the final page.
type Meta struct {
	TotalCount int    `json:"totalCount"`
	Limit      int    `json:"limit"`
	NextCursor string `json:"nextCursor"`
}

// Elements wraps the orders of one page.
type Elements struct {
	Order []Order `json:"order"`
}

// SingleOrderRoot is the single-order lookup response.
type SingleOrderRoot struct {
	Order Order `json:"order"`
}

// Order is one remote order snapshot.
type Order struct {
	PurchaseOrderID         string       `json:"purchaseOrderId"`
	CustomerOrderID         string       `json:"customerOrderId"`
	CustomerEmailID         string       `json:"customerEmailId"`
	OrderType               string       `json:"orderType"`
	OriginalCustomerOrderID string       `json:"originalCustomerOrderID"`
	OrderDate               int64        `json:"orderDate"`
	ShippingInfo            ShippingInfo `json:"shippingInfo"`
	OrderLines              OrderLines   `json:"orderLines"`
}

// ShippingInfo is the remote shipping block of an order.
type ShippingInfo struct {
	Phone                 string        `json:"phone"`
	EstimatedDeliveryDate int64         `json:"estimatedDeliveryDate"`
	EstimatedShipDate     int64         `json:"estimatedShipDate"`
	MethodCode            string        `json:"methodCode"`
	PostalAddress         PostalAddress `json:"postalAddress"`
}

// PostalAddress is the remote recipient address.
type PostalAddress struct {
	Name        string `json:"name"`
	Address1    string `json:"address1"`
	Address2    string `json:"address2"`
	City        string `json:"city"`
	State       string `json:"state"`
	PostalCode  string `json:"postalCode"`
	Country     string `json:"country"`
	AddressType string `json:"addressType"`
}

// OrderLines wraps the line collection of an order.
type OrderLines struct {
	OrderLine []OrderLine `json:"orderLine"`
}

// OrderLine is one remote order line.
type OrderLine struct {
	LineNumber        string            `json:"lineNumber"`
	Item              Item              `json:"item"`
	Charges           Charges           `json:"charges"`
	OrderLineQuantity Quantity          `json:"orderLineQuantity"`
	StatusDate        int64             `json:"statusDate"`
	OrderLineStatuses OrderLineStatuses `json:"orderLineStatuses"`
	Fulfillment       Fulfillment       `json:"fulfillment"`
}

// Fulfillment is the remote fulfillment descriptor of a line.
type Fulfillment struct {
	FulfillmentOption string `json:"fulfillmentOption"`
	ShipMethod        string `json:"shipMethod"`
	PickUpDateTime    int64  `json:"pickUpDateTime"`
}

// Item is the remote product descriptor.
type Item struct {
	ProductName string `json:"productName"`
	SKU         string `json:"sku"`
	Condition   string `json:"condition"`
	ImageURL    string `json:"imageUrl"`
	Weight      Weight `json:"weight"`
}

// Weight is a stringly weight value with its unit.
type Weight struct {
	Value string `json:"value"`
	Unit  string `json:"unit"`
}

// Charges wraps the charge collection of a line.
type Charges struct {
	Charge []Charge `json:"charge"`
}

// Charge is one remote charge.
type Charge struct {
	ChargeType   string `json:"chargeType"`
	ChargeName   string `json:"chargeName"`
	ChargeAmount Money  `json:"chargeAmount"`
	Tax          Tax    `json:"tax"`
}

// Money is a currency amount.
type Money struct {
	Currency string  `json:"currency"`
	Amount   float64 `json:"amount"`
}

// Tax is the tax on a charge.
type Tax struct {
	TaxName   string `json:"taxName"`
	TaxAmount Money  `json:"taxAmount"`
}

// Quantity is a unit with a stringly amount.
type Quantity struct {
	UnitOfMeasurement string `json:"unitOfMeasurement"`
	Amount            string `json:"amount"`
}

// OrderLineStatuses wraps the status history of a line.
type OrderLineStatuses struct {
	OrderLineStatus []OrderLineStatus `json:"orderLineStatus"`
}

// OrderLineStatus is one remote status history entry.
type OrderLineStatus struct {
	Status         string       `json:"status"`
	StatusQuantity Quantity     `json:"statusQuantity"`
	TrackingInfo   TrackingInfo `json:"trackingInfo"`
}

// TrackingInfo is the remote tracking snapshot.
type TrackingInfo struct {
	ShipDateTime   int64       `json:"shipDateTime"`
	CarrierName    CarrierName `json:"carrierName"`
	MethodCode     string      `json:"methodCode"`
	TrackingNumber string      `json:"trackingNumber"`
	TrackingURL    string      `json:"trackingURL"`
}

// CarrierName is either a recognized carrier or a free-text fallback.
type CarrierName struct {
	OtherCarrier string `json:"otherCarrier,omitempty"`
	Carrier      string `json:"carrier,omitempty"`
}

// Shipment is the outbound shipment-confirmation payload.
type Shipment struct {
	OrderShipment OrderShipment `json:"orderShipment"`
}

// OrderShipment wraps the confirmed lines of a dispatch.
type OrderShipment struct {
	OrderLines ShipmentOrderLines `json:"orderLines"`
}

// ShipmentOrderLines wraps the shipment line collection.
type ShipmentOrderLines struct {
	OrderLine []ShipmentOrderLine `json:"orderLine"`
}

// ShipmentOrderLine confirms shipment of one persisted order line.
type ShipmentOrderLine struct {
	LineNumber             string                   `json:"lineNumber"`
	IntentToCancelOverride bool                     `json:"intentToCancelOverride"`
	SellerOrderID          string                   `json:"sellerOrderId"`
	OrderLineStatuses      ShipmentLineStatusesWrap `json:"orderLineStatuses"`
}

// ShipmentLineStatusesWrap wraps the statuses of a shipment line.
type ShipmentLineStatusesWrap struct {
	OrderLineStatus []OrderLineStatus `json:"orderLineStatus"`
}

// ErrorResponse is the remote error envelope.
type ErrorResponse struct {
	Error []ErrorDetail `json:"error"`
}

// ErrorDetail is one remote error entry.
type ErrorDetail struct {
	Code        string `json:"code"`
	Field       string `json:"field"`
	Description string `json:"description"`
	Info        string `json:"info"`
	Severity    string `json:"severity"`
	Category    string `json:"category"`
}
