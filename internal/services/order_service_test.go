package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"example.com/backstage/services/marketsync/config"
	"example.com/backstage/services/marketsync/internal/cache"
	"example.com/backstage/services/marketsync/internal/marketplace"
	"example.com/backstage/services/marketsync/internal/metrics"
	"example.com/backstage/services/marketsync/internal/models"
	"example.com/backstage/services/marketsync/internal/repositories"
	"example.com/backstage/services/marketsync/internal/search"
	"example.com/backstage/services/marketsync/internal/tracing"
)

type testEnv struct {
	db       *gorm.DB
	accounts *repositories.AccountRepository
	orders   *repositories.OrderRepository
	service  *OrderService
	server   *httptest.Server
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, models.SetupModels(db))

	return db
}

func newTestEnv(t *testing.T, handler http.Handler) *testEnv {
	t.Helper()

	db := setupTestDB(t)
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := marketplace.NewClient(config.MarketplaceConfig{
		BaseURL:        server.URL,
		ServiceName:    "test-service",
		RequestTimeout: 5 * time.Second,
	})

	redisCache, err := cache.NewRedisCache(config.RedisConfig{Enabled: false})
	require.NoError(t, err)

	tracer, err := tracing.NewTracer(config.TracingConfig{})
	require.NoError(t, err)

	accounts := repositories.NewAccountRepository(db, db)
	orders := repositories.NewOrderRepository(db, db)

	service := NewOrderService(accounts, orders, client, redisCache, nil, nil,
		metrics.NewMetrics(), tracer, 30*time.Second)

	return &testEnv{
		db:       db,
		accounts: accounts,
		orders:   orders,
		service:  service,
		server:   server,
	}
}

func (e *testEnv) seedAccount(t *testing.T) *models.Account {
	t.Helper()

	account := &models.Account{
		AccountID:    "acct-1",
		StoreID:      "store-1",
		ClientID:     "client-1",
		ClientSecret: "secret",
	}
	require.NoError(t, e.accounts.Save(context.Background(), account))
	return account
}

func writeToken(w http.ResponseWriter) {
	json.NewEncoder(w).Encode(marketplace.TokenResponse{AccessToken: "token", ExpiresIn: 900})
}

func remoteOrder(po string) marketplace.Order {
	return marketplace.Order{
		PurchaseOrderID: po,
		CustomerOrderID: "CO-" + po,
		OrderDate:       1700000000000,
		OrderLines: marketplace.OrderLines{OrderLine: []marketplace.OrderLine{{
			LineNumber:        "1",
			Item:              marketplace.Item{SKU: "SKU-1", ProductName: "Widget"},
			OrderLineQuantity: marketplace.Quantity{UnitOfMeasurement: "EACH", Amount: "2"},
			StatusDate:        1700000002000,
			OrderLineStatuses: marketplace.OrderLineStatuses{OrderLineStatus: []marketplace.OrderLineStatus{{
				Status:         "Created",
				StatusQuantity: marketplace.Quantity{UnitOfMeasurement: "EACH", Amount: "2"},
			}}},
		}}},
	}
}

func TestFirstSyncFetchesFullHistory(t *testing.T) {
	var startDate string

	env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			writeToken(w)
		case "/orders":
			startDate = r.URL.Query().Get("lastModifiedStartDate")
			page := marketplace.OrderListRoot{}
			page.List.Elements.Order = []marketplace.Order{remoteOrder("PO-1")}
			json.NewEncoder(w).Encode(page)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	account := env.seedAccount(t)

	require.NoError(t, env.service.SyncAccount(context.Background(), account))

	// A tenant with no stored orders syncs from a second-precision
	// bound consumed as milliseconds, which lands the start date in
	// early 1970 and pulls the tenant's full order history.
	parsed, err := time.Parse("2006-01-02T15:04:05", startDate)
	require.NoError(t, err)
	require.Less(t, parsed.Year(), 1971)

	stored, err := env.orders.GetByPurchaseOrderID(context.Background(), "store-1", "PO-1")
	require.NoError(t, err)
	require.Equal(t, "client-1", stored.ClientID)
	require.Positive(t, stored.OrderLocalUpdateDate)
}

func TestSyncUsesStoredWatermark(t *testing.T) {
	var startDate string

	env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			writeToken(w)
		case "/orders":
			startDate = r.URL.Query().Get("lastModifiedStartDate")
			json.NewEncoder(w).Encode(marketplace.OrderListRoot{})
		}
	}))

	account := env.seedAccount(t)

	seeded := models.Order{
		ClientID:             "client-1",
		StoreID:              "store-1",
		PurchaseOrderID:      "PO-0",
		OrderLocalUpdateDate: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC).UnixMilli(),
	}
	_, err := env.orders.Merge(context.Background(), []models.Order{seeded})
	require.NoError(t, err)

	require.NoError(t, env.service.SyncAccount(context.Background(), account))
	require.Equal(t, "2024-06-01T12:00:00", startDate)
}

func TestSyncDeactivatesTerminatedPartner(t *testing.T) {
	env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			writeToken(w)
		case "/orders":
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":[{"description":"Partner is TERMINATED"}]}`))
		}
	}))

	account := env.seedAccount(t)

	err := env.service.SyncAccount(context.Background(), account)
	require.Error(t, err)
	require.True(t, errors.Is(err, marketplace.ErrPartnerTerminated))

	stored, err := env.accounts.Get(context.Background(), "acct-1", "store-1")
	require.NoError(t, err)
	require.True(t, stored.IsDeleted)
}

func TestSyncRespectsAccountTimeout(t *testing.T) {
	env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			writeToken(w)
		case "/orders":
			time.Sleep(300 * time.Millisecond)
			json.NewEncoder(w).Encode(marketplace.OrderListRoot{})
		}
	}))

	env.service.accountTimeout = 50 * time.Millisecond
	account := env.seedAccount(t)

	// The slow listing page is swallowed as a partial result, so the
	// sync itself succeeds but nothing lands in the mirror.
	require.NoError(t, env.service.SyncAccount(context.Background(), account))

	has, err := env.orders.HasAnyForTenant(context.Background(), "client-1", "store-1")
	require.NoError(t, err)
	require.False(t, has)
}

func TestGetOrdersSinceTriggersFirstSync(t *testing.T) {
	env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			writeToken(w)
		case "/orders":
			page := marketplace.OrderListRoot{}
			page.List.Elements.Order = []marketplace.Order{remoteOrder("PO-1")}
			json.NewEncoder(w).Encode(page)
		}
	}))

	env.seedAccount(t)

	summaries, err := env.service.GetOrdersSince(context.Background(), "acct-1", "store-1", 0)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	require.Equal(t, "PO-1", summaries[0].DispatchID)
	require.Equal(t, "awaiting", summaries[0].Status)
}

func TestGetOrdersSinceUnknownAccount(t *testing.T) {
	env := newTestEnv(t, http.NotFoundHandler())

	_, err := env.service.GetOrdersSince(context.Background(), "nobody", "nowhere", 0)
	require.ErrorIs(t, err, ErrAccountNotFound)
}

func TestGetOrdersSinceFiltersByWatermark(t *testing.T) {
	env := newTestEnv(t, http.NotFoundHandler())
	env.seedAccount(t)

	old := models.Order{
		ClientID:             "client-1",
		StoreID:              "store-1",
		PurchaseOrderID:      "PO-old",
		OrderLocalUpdateDate: 1000,
	}
	fresh := models.Order{
		ClientID:             "client-1",
		StoreID:              "store-1",
		PurchaseOrderID:      "PO-new",
		OrderLocalUpdateDate: 2000,
	}
	_, err := env.orders.Merge(context.Background(), []models.Order{old, fresh})
	require.NoError(t, err)

	summaries, err := env.service.GetOrdersSince(context.Background(), "acct-1", "store-1", 1500)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	require.Equal(t, "PO-new", summaries[0].DispatchID)
}

func TestRefreshOrderReconcilesSingleOrder(t *testing.T) {
	env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			writeToken(w)
		case "/orders/PO-7":
			json.NewEncoder(w).Encode(marketplace.SingleOrderRoot{Order: remoteOrder("PO-7")})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	env.seedAccount(t)

	summary, err := env.service.RefreshOrder(context.Background(), "acct-1", "store-1", "PO-7")
	require.NoError(t, err)
	require.Equal(t, "PO-7", summary.DispatchID)
	require.Len(t, summary.Items, 1)

	stored, err := env.orders.GetByPurchaseOrderID(context.Background(), "store-1", "PO-7")
	require.NoError(t, err)
	require.Equal(t, "CO-PO-7", stored.CustomerOrderID)
}

func TestValidateDispatchLine(t *testing.T) {
	cases := []struct {
		name    string
		line    DispatchLine
		wantErr bool
	}{
		{
			name: "recognized carrier with tracking number",
			line: DispatchLine{CarrierName: "usps", TrackingNumber: "9400-123"},
		},
		{
			name:    "recognized carrier without tracking number",
			line:    DispatchLine{CarrierName: "UPS", TrackingURL: "https://example.com/track"},
			wantErr: true,
		},
		{
			name: "unrecognized carrier with tracking url",
			line: DispatchLine{CarrierName: "LocalCourier", TrackingURL: "https://example.com/track"},
		},
		{
			name:    "unrecognized carrier without tracking url",
			line:    DispatchLine{CarrierName: "LocalCourier", TrackingNumber: "ABC-1"},
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateDispatchLine(tc.line)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrValidation)
				require.Contains(t, err.Error(), "pairs are required")
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestDispatchBuildsOneStatusPerPersistedLine(t *testing.T) {
	var received marketplace.Shipment

	env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			writeToken(w)
		case "/orders/PO-1/shipping":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	env.seedAccount(t)

	order := models.Order{
		ClientID:        "client-1",
		StoreID:         "store-1",
		PurchaseOrderID: "PO-1",
		CustomerOrderID: "CO-1",
		Lines: []models.OrderLine{
			{LineNumber: "1", Quantity: models.Quantity{UnitOfMeasurement: "EACH", Amount: "2"}},
			{LineNumber: "2", Quantity: models.Quantity{UnitOfMeasurement: "EACH", Amount: "5"}},
		},
	}
	_, err := env.orders.Merge(context.Background(), []models.Order{order})
	require.NoError(t, err)

	req := DispatchRequest{
		AccountID: "acct-1",
		StoreID:   "store-1",
		OrderID:   "CO-1",
		Lines: []DispatchLine{{
			CarrierName:    "usps",
			TrackingNumber: "9400-123",
			MethodCode:     "Standard",
			ShipDateTime:   1700000005000,
		}},
	}
	require.NoError(t, env.service.Dispatch(context.Background(), req))

	lines := received.OrderShipment.OrderLines.OrderLine
	require.Len(t, lines, 2)

	for i, line := range lines {
		require.Equal(t, "CO-1", line.SellerOrderID)
		require.False(t, line.IntentToCancelOverride)
		require.Len(t, line.OrderLineStatuses.OrderLineStatus, 1)

		st := line.OrderLineStatuses.OrderLineStatus[0]
		require.Equal(t, "Shipped", st.Status)
		require.Equal(t, "EACH", st.StatusQuantity.UnitOfMeasurement)

		// Quantities come from the persisted lines, tracking from the
		// first request line.
		if i == 0 {
			require.Equal(t, "2", st.StatusQuantity.Amount)
		} else {
			require.Equal(t, "5", st.StatusQuantity.Amount)
		}
		require.Equal(t, "USPS", st.TrackingInfo.CarrierName.Carrier)
		require.Empty(t, st.TrackingInfo.CarrierName.OtherCarrier)
		require.Equal(t, "9400-123", st.TrackingInfo.TrackingNumber)
		require.Equal(t, int64(1700000005000), st.TrackingInfo.ShipDateTime)
	}
}

func TestDispatchUnrecognizedCarrierUsesOtherCarrier(t *testing.T) {
	var received marketplace.Shipment

	env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			writeToken(w)
		case "/orders/PO-1/shipping":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		}
	}))

	env.seedAccount(t)

	order := models.Order{
		ClientID:        "client-1",
		StoreID:         "store-1",
		PurchaseOrderID: "PO-1",
		CustomerOrderID: "CO-1",
		Lines:           []models.OrderLine{{LineNumber: "1", Quantity: models.Quantity{Amount: "1"}}},
	}
	_, err := env.orders.Merge(context.Background(), []models.Order{order})
	require.NoError(t, err)

	req := DispatchRequest{
		AccountID: "acct-1",
		StoreID:   "store-1",
		OrderID:   "PO-1",
		Lines: []DispatchLine{{
			CarrierName: "LocalCourier",
			TrackingURL: "https://courier.example/track/1",
		}},
	}
	require.NoError(t, env.service.Dispatch(context.Background(), req))

	st := received.OrderShipment.OrderLines.OrderLine[0].OrderLineStatuses.OrderLineStatus[0]
	require.Equal(t, "LocalCourier", st.TrackingInfo.CarrierName.OtherCarrier)
	require.Empty(t, st.TrackingInfo.CarrierName.Carrier)
	require.Equal(t, "https://courier.example/track/1", st.TrackingInfo.TrackingURL)
}

func TestDispatchUnknownOrder(t *testing.T) {
	env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/token" {
			writeToken(w)
		}
	}))

	env.seedAccount(t)

	req := DispatchRequest{
		AccountID: "acct-1",
		StoreID:   "store-1",
		OrderID:   "PO-missing",
		Lines:     []DispatchLine{{CarrierName: "UPS", TrackingNumber: "1Z"}},
	}
	require.ErrorIs(t, env.service.Dispatch(context.Background(), req), ErrOrderNotFound)
}

func TestDispatchUnknownAccount(t *testing.T) {
	env := newTestEnv(t, http.NotFoundHandler())

	req := DispatchRequest{
		AccountID: "nobody",
		StoreID:   "nowhere",
		OrderID:   "PO-1",
		Lines:     []DispatchLine{{CarrierName: "UPS", TrackingNumber: "1Z"}},
	}
	require.ErrorIs(t, env.service.Dispatch(context.Background(), req), ErrAccountNotFound)
}

func TestDispatchRejectsEmptyLines(t *testing.T) {
	env := newTestEnv(t, http.NotFoundHandler())

	req := DispatchRequest{AccountID: "acct-1", StoreID: "store-1", OrderID: "PO-1"}
	require.ErrorIs(t, env.service.Dispatch(context.Background(), req), ErrValidation)
}

func TestIndexOrdersContinuesPastFailedDocument(t *testing.T) {
	var indexed []string
	es := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		docID := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		if strings.Contains(docID, "PO-BAD") {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		indexed = append(indexed, docID)
		w.Write([]byte(`{"result":"created"}`))
	}))
	t.Cleanup(es.Close)

	elastic, err := search.NewElasticClient(config.ElasticConfig{
		URL:    es.URL,
		Index:  "orders",
		Prefix: "test",
	})
	require.NoError(t, err)

	env := newTestEnv(t, http.NotFoundHandler())
	env.service.search = elastic
	account := env.seedAccount(t)

	orders := []models.Order{
		{StoreID: "store-1", PurchaseOrderID: "PO-BAD"},
		{StoreID: "store-1", PurchaseOrderID: "PO-2"},
		{StoreID: "store-1", PurchaseOrderID: "PO-3"},
	}
	env.service.indexOrders(context.Background(), account, orders)

	require.Equal(t, []string{"store-1:PO-2", "store-1:PO-3"}, indexed)
}
