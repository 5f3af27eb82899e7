package models

import (
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// Account holds one marketplace credential set for a store.
// Soft deletion keeps the row so historical orders stay linked.
type Account struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
	AccountID    string    `gorm:"column:account_id;index" json:"account_id"`
	StoreID      string    `gorm:"column:store_id" json:"store_id"`
	ClientID     string    `gorm:"column:client_id;uniqueIndex" json:"client_id"`
	ClientSecret string    `gorm:"column:client_secret" json:"-"`
	IsDeleted    bool      `gorm:"column:is_deleted;not null;default:false" json:"is_deleted"`
}

// Order mirrors one remote marketplace order for a tenant.
// Uniqueness is (store_id, purchase_order_id).
type Order struct {
	ID                      uint      `gorm:"primaryKey" json:"id"`
	CreatedAt               time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt               time.Time `gorm:"autoUpdateTime" json:"updated_at"`
	ClientID                string    `gorm:"column:client_id;index" json:"client_id"`
	StoreID                 string    `gorm:"column:store_id;uniqueIndex:idx_orders_store_po" json:"store_id"`
	PurchaseOrderID         string    `gorm:"column:purchase_order_id;uniqueIndex:idx_orders_store_po" json:"purchase_order_id"`
	CustomerOrderID         string    `gorm:"column:customer_order_id" json:"customer_order_id"`
	CustomerEmailID         string    `gorm:"column:customer_email_id" json:"customer_email_id"`
	OrderType               string    `gorm:"column:order_type" json:"order_type"`
	OriginalCustomerOrderID string    `gorm:"column:original_customer_order_id" json:"original_customer_order_id"`
	OrderDate               int64     `gorm:"column:order_date" json:"order_date"`
	// OrderLocalUpdateDate is the sync watermark, unix milliseconds.
	OrderLocalUpdateDate int64         `gorm:"column:order_local_update_date;index" json:"order_local_update_date"`
	ShippingInfoID       uint          `gorm:"column:shipping_info_id" json:"-"`
	ShippingInfo         *ShippingInfo `gorm:"foreignKey:ShippingInfoID" json:"shipping_info,omitempty"`
	Lines                []OrderLine   `gorm:"foreignKey:OrderID" json:"lines,omitempty"`
}

// PostalAddress is the recipient address, flattened into shipping_info.
type PostalAddress struct {
	Name        string `gorm:"column:name" json:"name"`
	Address1    string `gorm:"column:address1" json:"address1"`
	Address2    string `gorm:"column:address2" json:"address2"`
	City        string `gorm:"column:city" json:"city"`
	State       string `gorm:"column:state" json:"state"`
	PostalCode  string `gorm:"column:postal_code" json:"postal_code"`
	Country     string `gorm:"column:country" json:"country"`
	AddressType string `gorm:"column:address_type" json:"address_type"`
}

// ShippingInfo is owned by exactly one order.
type ShippingInfo struct {
	ID                    uint          `gorm:"primaryKey" json:"id"`
	Phone                 string        `gorm:"column:phone" json:"phone"`
	EstimatedDeliveryDate int64         `gorm:"column:estimated_delivery_date" json:"estimated_delivery_date"`
	EstimatedShipDate     int64         `gorm:"column:estimated_ship_date" json:"estimated_ship_date"`
	MethodCode            string        `gorm:"column:method_code" json:"method_code"`
	PostalAddress         PostalAddress `gorm:"embedded;embeddedPrefix:postal_address_" json:"postal_address"`
}

// Item describes the product on an order line.
type Item struct {
	ProductName string `gorm:"column:product_name" json:"product_name"`
	SKU         string `gorm:"column:sku" json:"sku"`
	Condition   string `gorm:"column:condition" json:"condition"`
	ImageURL    string `gorm:"column:image_url" json:"image_url"`
	WeightValue string `gorm:"column:weight_value" json:"weight_value"`
	WeightUnit  string `gorm:"column:weight_unit" json:"weight_unit"`
}

// Quantity is a unit plus a stringly amount, as the remote API reports it.
type Quantity struct {
	UnitOfMeasurement string `gorm:"column:unit_of_measurement" json:"unit_of_measurement"`
	Amount            string `gorm:"column:amount" json:"amount"`
}

// Fulfillment describes how an order line ships.
type Fulfillment struct {
	FulfillmentOption string `gorm:"column:fulfillment_option" json:"fulfillment_option"`
	ShipMethod        string `gorm:"column:ship_method" json:"ship_method"`
	PickUpDateTime    int64  `gorm:"column:pick_up_date_time" json:"pick_up_date_time"`
}

// OrderLine is one line of an order, unique per (order, line number).
type OrderLine struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	OrderID     uint              `gorm:"column:order_id;index" json:"-"`
	LineNumber  string            `gorm:"column:line_number" json:"line_number"`
	Item        Item              `gorm:"embedded;embeddedPrefix:item_" json:"item"`
	Quantity    Quantity          `gorm:"embedded;embeddedPrefix:quantity_" json:"quantity"`
	StatusDate  int64             `gorm:"column:status_date" json:"status_date"`
	Fulfillment Fulfillment       `gorm:"embedded;embeddedPrefix:fulfillment_" json:"fulfillment"`
	Charges     []Charge          `gorm:"foreignKey:OrderLineID" json:"charges,omitempty"`
	Statuses    []OrderLineStatus `gorm:"foreignKey:OrderLineID" json:"statuses,omitempty"`
}

// Money is an amount with its currency.
type Money struct {
	Currency string  `gorm:"column:currency" json:"currency"`
	Amount   float64 `gorm:"column:amount" json:"amount"`
}

// Tax is the tax portion of a charge.
type Tax struct {
	TaxName   string `gorm:"column:tax_name" json:"tax_name"`
	TaxAmount Money  `gorm:"embedded;embeddedPrefix:tax_amount_" json:"tax_amount"`
}

// Charge is a fee on an order line. Charges are written once when the
// order is created and replaced wholesale with the line, never merged.
type Charge struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	OrderLineID  uint   `gorm:"column:order_line_id;index" json:"-"`
	ChargeType   string `gorm:"column:charge_type" json:"charge_type"`
	ChargeName   string `gorm:"column:charge_name" json:"charge_name"`
	ChargeAmount Money  `gorm:"embedded;embeddedPrefix:charge_amount_" json:"charge_amount"`
	Tax          Tax    `gorm:"embedded;embeddedPrefix:tax_" json:"tax"`
}

// CarrierName holds either a marketplace-recognized carrier or a free
// text fallback, never both.
type CarrierName struct {
	OtherCarrier string `gorm:"column:other_carrier" json:"otherCarrier,omitempty"`
	Carrier      string `gorm:"column:carrier" json:"carrier,omitempty"`
}

// TrackingInfo is the tracking snapshot attached to a status entry.
type TrackingInfo struct {
	ShipDateTime   int64       `gorm:"column:ship_date_time" json:"ship_date_time"`
	CarrierName    CarrierName `gorm:"embedded;embeddedPrefix:carrier_name_" json:"carrier_name"`
	MethodCode     string      `gorm:"column:method_code" json:"method_code"`
	TrackingNumber string      `gorm:"column:tracking_number" json:"tracking_number"`
	TrackingURL    string      `gorm:"column:tracking_url" json:"tracking_url"`
}

// OrderLineStatus is one append-only history entry on an order line.
// Entries are never updated or deleted; reconciliation only appends
// entries not already present by Equal.
type OrderLineStatus struct {
	ID             uint         `gorm:"primaryKey" json:"id"`
	OrderLineID    uint         `gorm:"column:order_line_id;index" json:"-"`
	Status         string       `gorm:"column:status" json:"status"`
	StatusQuantity Quantity     `gorm:"embedded;embeddedPrefix:status_quantity_" json:"status_quantity"`
	TrackingInfo   TrackingInfo `gorm:"embedded;embeddedPrefix:tracking_info_" json:"tracking_info"`
}

// Equal reports value equality over every field except the surrogate
// id. Two entries differing in any field are distinct history events.
func (s OrderLineStatus) Equal(other OrderLineStatus) bool {
	return s.Status == other.Status &&
		s.StatusQuantity == other.StatusQuantity &&
		s.TrackingInfo == other.TrackingInfo
}

// SetupModels configures GORM models and runs migrations
func SetupModels(db *gorm.DB) error {
	// Apply all migrations
	err := db.AutoMigrate(
		&Account{},
		&ShippingInfo{},
		&Order{},
		&OrderLine{},
		&Charge{},
		&OrderLineStatus{},
	)

	if err != nil {
		return errors.Wrap(err, "failed to run auto migrations")
	}

	return nil
}
