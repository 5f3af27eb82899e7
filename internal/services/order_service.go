package services

import (
	"context"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"example.com/backstage/services/marketsync/internal/cache"
	"example.com/backstage/services/marketsync/internal/carrier"
	"example.com/backstage/services/marketsync/internal/marketplace"
	"example.com/backstage/services/marketsync/internal/messaging"
	"example.com/backstage/services/marketsync/internal/metrics"
	"example.com/backstage/services/marketsync/internal/models"
	"example.com/backstage/services/marketsync/internal/repositories"
	"example.com/backstage/services/marketsync/internal/search"
	"example.com/backstage/services/marketsync/internal/tracing"
)

// errDispatchPairs is the message returned when a dispatch line carries
// neither a usable carrier/tracking-number pair nor a tracking URL.
const errDispatchPairs = "Known Carrier Name - TrackingNumber or Unknown Carrier Name - Tracking Url pairs are required."

// DispatchLine is one shipped line of a dispatch request.
type DispatchLine struct {
	CarrierName    string `json:"carrierName"`
	TrackingNumber string `json:"trackingNumber"`
	TrackingURL    string `json:"trackingURL"`
	MethodCode     string `json:"methodCode"`
	ShipDateTime   int64  `json:"shipDateTime"`
}

// DispatchRequest asks the marketplace to confirm an order shipped.
type DispatchRequest struct {
	AccountID string         `json:"accountId" binding:"required"`
	StoreID   string         `json:"storeId" binding:"required"`
	OrderID   string         `json:"orderId" binding:"required"`
	Lines     []DispatchLine `json:"shippingLines" binding:"required"`
}

// OrderService orchestrates order synchronization, the read API and
// dispatch confirmation for all tenants.
type OrderService struct {
	accounts  *repositories.AccountRepository
	orders    *repositories.OrderRepository
	client    *marketplace.Client
	cache     *cache.RedisCache
	search    *search.ElasticClient
	publisher messaging.Publisher
	metrics   *metrics.Metrics
	tracer    tracing.Tracer

	// accountTimeout bounds one tenant's sync so a slow remote cannot
	// stall the whole sweep.
	accountTimeout time.Duration
}

// NewOrderService creates the order service. The search client and
// publisher may be nil when those integrations are not configured.
func NewOrderService(
	accounts *repositories.AccountRepository,
	orders *repositories.OrderRepository,
	client *marketplace.Client,
	redisCache *cache.RedisCache,
	searchClient *search.ElasticClient,
	publisher messaging.Publisher,
	m *metrics.Metrics,
	tracer tracing.Tracer,
	accountTimeout time.Duration,
) *OrderService {
	return &OrderService{
		accounts:       accounts,
		orders:         orders,
		client:         client,
		cache:          redisCache,
		search:         searchClient,
		publisher:      publisher,
		metrics:        m,
		tracer:         tracer,
		accountTimeout: accountTimeout,
	}
}

// GetOrdersSince returns the tenant's mirrored orders with a watermark
// at or after the given unix millisecond bound. A tenant with no
// mirrored orders yet gets a synchronous first sync before the read.
func (s *OrderService) GetOrdersSince(ctx context.Context, accountID, storeID string, sinceMillis int64) ([]OrderSummary, error) {
	account, err := s.accounts.GetActive(ctx, accountID, storeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	hasOrders, err := s.orders.HasAnyForTenant(ctx, account.ClientID, account.StoreID)
	if err != nil {
		return nil, err
	}
	if !hasOrders {
		if err := s.SyncAccount(ctx, account); err != nil {
			return nil, err
		}
	}

	orders, err := s.orders.ListUpdatedSince(ctx, account.ClientID, account.StoreID, sinceMillis)
	if err != nil {
		return nil, err
	}

	return toOrderSummaries(orders), nil
}

// RefreshOrder fetches one order from the marketplace on demand,
// reconciles it into the mirror and returns the stored view.
func (s *OrderService) RefreshOrder(ctx context.Context, accountID, storeID, purchaseOrderID string) (*OrderSummary, error) {
	account, err := s.accounts.GetActive(ctx, accountID, storeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	token, err := s.token(ctx, account)
	if err != nil {
		return nil, err
	}

	remote, err := s.client.FetchOrder(ctx, token, purchaseOrderID)
	if err != nil {
		return nil, err
	}

	mapped := s.mapRemoteOrders([]marketplace.Order{*remote}, account)
	if _, err := s.orders.Merge(ctx, mapped); err != nil {
		return nil, err
	}

	stored, err := s.orders.GetByPurchaseOrderID(ctx, account.StoreID, purchaseOrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	summary := toOrderSummary(stored)
	return &summary, nil
}

// SyncAccount pulls every order the marketplace changed since the
// tenant's watermark and reconciles them into the mirror. A terminal
// partner revocation deactivates the account; every other fetch
// failure leaves the partial result reconciled and the watermark
// advancing only as far as the stored orders carry it.
func (s *OrderService) SyncAccount(ctx context.Context, account *models.Account) error {
	if s.accountTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.accountTimeout)
		defer cancel()
	}

	ctx, txn := s.tracer.StartBackgroundTransaction(ctx, "order-sync")
	defer s.tracer.EndTransaction(txn)

	start := time.Now()

	log.Info().Str("account_id", account.AccountID).Str("store_id", account.StoreID).Msg("Starting order sync")

	watermark, err := s.orders.MaxLocalUpdateDate(ctx, account.ClientID, account.StoreID)
	if err != nil {
		s.noteSyncError(txn, err)
		return err
	}

	if watermark == 0 {
		// First sync for this tenant. The bound is produced in unix
		// seconds while the listing call consumes unix milliseconds,
		// which lands the start date in 1970 and pulls the full order
		// history. Downstream tenants rely on that backfill, so the
		// unit mismatch stays.
		watermark = time.Now().Unix() - 30*24*60*60
	}

	token, err := s.token(ctx, account)
	if err != nil {
		s.noteSyncError(txn, err)
		return err
	}

	remoteOrders, err := s.client.FetchOrdersSince(ctx, token, watermark)
	if err != nil {
		if errors.Is(err, marketplace.ErrPartnerTerminated) {
			log.Warn().Str("account_id", account.AccountID).Msg("Partner terminated, deactivating account")
			if delErr := s.accounts.SoftDelete(ctx, account); delErr != nil {
				log.Error().Err(delErr).Str("account_id", account.AccountID).Msg("Failed to deactivate terminated account")
			}
		}
		s.noteSyncError(txn, err)
		return err
	}

	mapped := s.mapRemoteOrders(remoteOrders, account)

	result, err := s.orders.Merge(ctx, mapped)
	if err != nil {
		s.noteSyncError(txn, err)
		return err
	}

	s.metrics.IncrementCounterBy(metrics.CounterOrdersSynced, int64(len(mapped)))
	s.metrics.IncrementCounterBy(metrics.CounterOrdersCreated, int64(result.Created))
	s.metrics.IncrementCounterBy(metrics.CounterOrdersUpdated, int64(result.Updated))
	s.metrics.RecordTimer(metrics.TimerAccountSyncMillis, time.Since(start))

	s.indexOrders(ctx, account, mapped)

	log.Info().
		Str("account_id", account.AccountID).
		Int("fetched", len(mapped)).
		Int("created", result.Created).
		Int("updated", result.Updated).
		Dur("took", time.Since(start)).
		Msg("Order sync complete")

	return nil
}

func (s *OrderService) noteSyncError(txn *newrelic.Transaction, err error) {
	s.metrics.IncrementCounter(metrics.CounterSyncErrors)
	s.tracer.RecordError(txn, err)
}

// Dispatch validates a shipment request, builds the confirmation
// payload from the persisted lines and submits it to the marketplace.
func (s *OrderService) Dispatch(ctx context.Context, req DispatchRequest) error {
	if len(req.Lines) == 0 {
		return errors.WithMessage(ErrValidation, errDispatchPairs)
	}
	for _, line := range req.Lines {
		if err := validateDispatchLine(line); err != nil {
			return err
		}
	}

	account, err := s.accounts.Get(ctx, req.AccountID, req.StoreID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAccountNotFound
		}
		return err
	}

	order, err := s.orders.GetForDispatch(ctx, account.ClientID, account.StoreID, req.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrOrderNotFound
		}
		return err
	}

	shipment := buildShipment(order, req.Lines[0])

	token, err := s.token(ctx, account)
	if err != nil {
		return err
	}

	if err := s.client.Dispatch(ctx, token, order.PurchaseOrderID, shipment); err != nil {
		s.metrics.IncrementCounter(metrics.CounterDispatchErrors)
		return err
	}

	s.metrics.IncrementCounter(metrics.CounterDispatches)
	s.publishDispatch(ctx, account, order, req.Lines[0])

	log.Info().
		Str("account_id", account.AccountID).
		Str("purchase_order_id", order.PurchaseOrderID).
		Msg("Dispatch confirmed")

	return nil
}

// validateDispatchLine enforces the carrier/tracking pairing rule: a
// recognized carrier needs a tracking number, an unrecognized one
// needs a tracking URL.
func validateDispatchLine(line DispatchLine) error {
	_, recognized := carrier.Resolve(line.CarrierName)

	if recognized && line.TrackingNumber != "" {
		return nil
	}
	if !recognized && line.TrackingURL != "" {
		return nil
	}

	return errors.WithMessage(ErrValidation, errDispatchPairs)
}

// buildShipment confirms every persisted line of the order as Shipped,
// each with its own persisted quantity and the tracking details of the
// first request line.
func buildShipment(order *models.Order, tracking DispatchLine) *marketplace.Shipment {
	carrierName := marketplace.CarrierName{OtherCarrier: tracking.CarrierName}
	if code, ok := carrier.Resolve(tracking.CarrierName); ok {
		carrierName = marketplace.CarrierName{Carrier: code}
	}

	shipment := &marketplace.Shipment{}

	for i := range order.Lines {
		line := &order.Lines[i]

		shipment.OrderShipment.OrderLines.OrderLine = append(
			shipment.OrderShipment.OrderLines.OrderLine,
			marketplace.ShipmentOrderLine{
				LineNumber:             line.LineNumber,
				IntentToCancelOverride: false,
				SellerOrderID:          order.CustomerOrderID,
				OrderLineStatuses: marketplace.ShipmentLineStatusesWrap{
					OrderLineStatus: []marketplace.OrderLineStatus{{
						Status: "Shipped",
						StatusQuantity: marketplace.Quantity{
							UnitOfMeasurement: "EACH",
							Amount:            line.Quantity.Amount,
						},
						TrackingInfo: marketplace.TrackingInfo{
							ShipDateTime:   tracking.ShipDateTime,
							CarrierName:    carrierName,
							MethodCode:     tracking.MethodCode,
							TrackingNumber: tracking.TrackingNumber,
							TrackingURL:    tracking.TrackingURL,
						},
					}},
				},
			},
		)
	}

	return shipment
}

// publishDispatch emits the dispatch event, best effort.
func (s *OrderService) publishDispatch(ctx context.Context, account *models.Account, order *models.Order, tracking DispatchLine) {
	if s.publisher == nil {
		return
	}

	carrierName := tracking.CarrierName
	if code, ok := carrier.Resolve(tracking.CarrierName); ok {
		carrierName = code
	}

	event := messaging.DispatchEvent{
		AccountID:       account.AccountID,
		StoreID:         account.StoreID,
		PurchaseOrderID: order.PurchaseOrderID,
		CarrierName:     carrierName,
		TrackingNumber:  tracking.TrackingNumber,
		TrackingURL:     tracking.TrackingURL,
		DispatchedAt:    time.Now().UTC().Format(time.RFC3339),
	}

	if err := s.publisher.PublishDispatch(ctx, event); err != nil {
		log.Error().Err(err).Str("purchase_order_id", order.PurchaseOrderID).Msg("Failed to publish dispatch event")
	}
}

// indexOrders pushes the reconciled orders to the search index, best
// effort. A search outage never fails a sync.
func (s *OrderService) indexOrders(ctx context.Context, account *models.Account, orders []models.Order) {
	if s.search == nil {
		return
	}

	for i := range orders {
		order := &orders[i]
		if err := s.search.IndexOrder(ctx, order, deriveStatus(order.Lines)); err != nil {
			log.Warn().Err(err).Str("purchase_order_id", order.PurchaseOrderID).Msg("Failed to index order")
			continue
		}
	}
}

// token returns a marketplace access token for the account, served
// from the cache when a live one is present.
func (s *OrderService) token(ctx context.Context, account *models.Account) (string, error) {
	if cached := s.cache.GetToken(ctx, account.ClientID); cached != "" {
		return cached, nil
	}

	token, err := s.client.Token(ctx, account.ClientID, account.ClientSecret)
	if err != nil {
		return "", err
	}

	if err := s.cache.SetToken(ctx, account.ClientID, token.AccessToken, time.Duration(token.ExpiresIn)*time.Second); err != nil {
		log.Warn().Err(err).Msg("Failed to cache access token")
	}

	return token.AccessToken, nil
}

// mapRemoteOrders converts fetched order snapshots to mirror entities
// stamped with the tenant identity and a fresh local watermark.
func (s *OrderService) mapRemoteOrders(remote []marketplace.Order, account *models.Account) []models.Order {
	now := time.Now().UnixMilli()

	orders := make([]models.Order, 0, len(remote))
	for i := range remote {
		orders = append(orders, mapRemoteOrder(&remote[i], account, now))
	}
	return orders
}

func mapRemoteOrder(remote *marketplace.Order, account *models.Account, nowMillis int64) models.Order {
	order := models.Order{
		ClientID:                account.ClientID,
		StoreID:                 account.StoreID,
		PurchaseOrderID:         remote.PurchaseOrderID,
		CustomerOrderID:         remote.CustomerOrderID,
		CustomerEmailID:         remote.CustomerEmailID,
		OrderType:               remote.OrderType,
		OriginalCustomerOrderID: remote.OriginalCustomerOrderID,
		OrderDate:               remote.OrderDate,
		OrderLocalUpdateDate:    nowMillis,
		ShippingInfo: &models.ShippingInfo{
			Phone:                 remote.ShippingInfo.Phone,
			EstimatedDeliveryDate: remote.ShippingInfo.EstimatedDeliveryDate,
			EstimatedShipDate:     remote.ShippingInfo.EstimatedShipDate,
			MethodCode:            remote.ShippingInfo.MethodCode,
			PostalAddress: models.PostalAddress{
				Name:        remote.ShippingInfo.PostalAddress.Name,
				Address1:    remote.ShippingInfo.PostalAddress.Address1,
				Address2:    remote.ShippingInfo.PostalAddress.Address2,
				City:        remote.ShippingInfo.PostalAddress.City,
				State:       remote.ShippingInfo.PostalAddress.State,
				PostalCode:  remote.ShippingInfo.PostalAddress.PostalCode,
				Country:     remote.ShippingInfo.PostalAddress.Country,
				AddressType: remote.ShippingInfo.PostalAddress.AddressType,
			},
		},
	}

	for i := range remote.OrderLines.OrderLine {
		order.Lines = append(order.Lines, mapRemoteLine(&remote.OrderLines.OrderLine[i]))
	}

	return order
}

func mapRemoteLine(remote *marketplace.OrderLine) models.OrderLine {
	line := models.OrderLine{
		LineNumber: remote.LineNumber,
		Item: models.Item{
			ProductName: remote.Item.ProductName,
			SKU:         remote.Item.SKU,
			Condition:   remote.Item.Condition,
			ImageURL:    remote.Item.ImageURL,
			WeightValue: remote.Item.Weight.Value,
			WeightUnit:  remote.Item.Weight.Unit,
		},
		Quantity: models.Quantity{
			UnitOfMeasurement: remote.OrderLineQuantity.UnitOfMeasurement,
			Amount:            remote.OrderLineQuantity.Amount,
		},
		StatusDate: remote.StatusDate,
		Fulfillment: models.Fulfillment{
			FulfillmentOption: remote.Fulfillment.FulfillmentOption,
			ShipMethod:        remote.Fulfillment.ShipMethod,
			PickUpDateTime:    remote.Fulfillment.PickUpDateTime,
		},
	}

	for _, c := range remote.Charges.Charge {
		line.Charges = append(line.Charges, models.Charge{
			ChargeType: c.ChargeType,
			ChargeName: c.ChargeName,
			ChargeAmount: models.Money{
				Currency: c.ChargeAmount.Currency,
				Amount:   c.ChargeAmount.Amount,
			},
			Tax: models.Tax{
				TaxName: c.Tax.TaxName,
				TaxAmount: models.Money{
					Currency: c.Tax.TaxAmount.Currency,
					Amount:   c.Tax.TaxAmount.Amount,
				},
			},
		})
	}

	for _, st := range remote.OrderLineStatuses.OrderLineStatus {
		line.Statuses = append(line.Statuses, models.OrderLineStatus{
			Status: st.Status,
			StatusQuantity: models.Quantity{
				UnitOfMeasurement: st.StatusQuantity.UnitOfMeasurement,
				Amount:            st.StatusQuantity.Amount,
			},
			TrackingInfo: models.TrackingInfo{
				ShipDateTime:   st.TrackingInfo.ShipDateTime,
				CarrierName: models.CarrierName{
					OtherCarrier: st.TrackingInfo.CarrierName.OtherCarrier,
					Carrier:      st.TrackingInfo.CarrierName.Carrier,
				},
				MethodCode:     st.TrackingInfo.MethodCode,
				TrackingNumber: st.TrackingInfo.TrackingNumber,
				TrackingURL:    st.TrackingInfo.TrackingURL,
			},
		})
	}

	return line
}
