// Package marketplace is the HTTP client for the remote marketplace
// order API: credential exchange, incremental order listing with
// cursor pagination, single-order lookup and shipment confirmation.
package marketplace

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/marketsync/config"
)

// terminatedMarker is the fragment the remote API puts in its error
// body when a partner integration has been permanently revoked. It is
// the one fetch failure that must not be swallowed.
const terminatedMarker = "Partner is TERMINATED"

// ErrPartnerTerminated signals the remote integration is permanently
// revoked for this account.
var ErrPartnerTerminated = errors.New("marketplace: partner is terminated")

// maxResponseSize caps remote response bodies at 10MB.
const maxResponseSize = 10 * 1024 * 1024

// Client talks to the marketplace API.
type Client struct {
	baseURL     string
	serviceName string
	httpClient  *http.Client
}

// NewClient creates a marketplace API client.
func NewClient(cfg config.MarketplaceConfig) *Client {
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		serviceName: cfg.ServiceName,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
	}
}

// Token exchanges client credentials for a bearer token. Every call
// carries a fresh correlation id.
func (c *Client) Token(ctx context.Context, clientID, clientSecret string) (*TokenResponse, error) {
	reqURL := c.baseURL + "/token"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL,
		strings.NewReader("grant_type=client_credentials"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build token request")
	}

	basicAuth := base64.StdEncoding.EncodeToString([]byte(clientID + ":" + clientSecret))
	req.Header.Set("Authorization", "Basic "+basicAuth)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c.setCommonHeaders(req)

	body, status, err := c.do(req)
	if err != nil {
		return nil, errors.Wrap(err, "token exchange failed")
	}
	if status != http.StatusOK {
		return nil, errors.Errorf("token exchange failed: %s", string(body))
	}

	var token TokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, errors.Wrap(err, "failed to decode token response")
	}

	return &token, nil
}

// FetchOrdersSince walks the paginated order listing starting at the
// given lower bound (unix milliseconds) and accumulates every page
// until the continuation cursor is absent. A failed page ends the walk
// and the orders fetched so far are returned; only a terminal partner
// revocation propagates as an error.
func (c *Client) FetchOrdersSince(ctx context.Context, accessToken string, sinceMillis int64) ([]Order, error) {
	var orders []Order

	since := time.UnixMilli(sinceMillis).UTC().Format("2006-01-02T15:04:05")
	reqURL := fmt.Sprintf("%s/orders?lastModifiedStartDate=%s&limit=100&productInfo=true",
		c.baseURL, url.QueryEscape(since))

	page, err := c.fetchOrderPage(ctx, accessToken, reqURL)
	if err != nil {
		log.Error().Err(err).Msg("Order listing failed")
		if isTerminated(err) {
			return orders, errors.WithMessage(ErrPartnerTerminated, err.Error())
		}
		return orders, nil
	}

	orders = append(orders, page.List.Elements.Order...)

	for cursor := page.List.Meta.NextCursor; cursor != ""; {
		reqURL = c.baseURL + "/orders" + cursor

		page, err = c.fetchOrderPage(ctx, accessToken, reqURL)
		if err != nil {
			log.Error().Err(err).Str("cursor", cursor).Msg("Order listing page failed, returning partial result")
			if isTerminated(err) {
				return orders, errors.WithMessage(ErrPartnerTerminated, err.Error())
			}
			return orders, nil
		}

		orders = append(orders, page.List.Elements.Order...)
		cursor = page.List.Meta.NextCursor
	}

	return orders, nil
}

func (c *Client) fetchOrderPage(ctx context.Context, accessToken, reqURL string) (*OrderListRoot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build order listing request")
	}
	c.setAuthHeaders(req, accessToken)

	body, status, err := c.do(req)
	if err != nil {
		return nil, errors.Wrap(err, "order listing request failed")
	}
	if status != http.StatusOK {
		return nil, errors.Errorf("order listing returned %d: %s", status, string(body))
	}

	var page OrderListRoot
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, errors.Wrap(err, "failed to decode order listing page")
	}

	return &page, nil
}

// FetchOrder looks up a single order by purchase order id.
func (c *Client) FetchOrder(ctx context.Context, accessToken, purchaseOrderID string) (*Order, error) {
	reqURL := fmt.Sprintf("%s/orders/%s?productInfo=true", c.baseURL, url.PathEscape(purchaseOrderID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build order lookup request")
	}
	c.setAuthHeaders(req, accessToken)

	body, status, err := c.do(req)
	if err != nil {
		return nil, errors.Wrap(err, "order lookup request failed")
	}
	if status != http.StatusOK {
		return nil, errors.Errorf("order lookup returned %d: %s", status, string(body))
	}

	var root SingleOrderRoot
	if err := json.Unmarshal(body, &root); err != nil {
		return nil, errors.Wrap(err, "failed to decode order lookup response")
	}

	return &root.Order, nil
}

// Dispatch submits a shipment confirmation for an order.
func (c *Client) Dispatch(ctx context.Context, accessToken, purchaseOrderID string, shipment *Shipment) error {
	reqURL := fmt.Sprintf("%s/orders/%s/shipping", c.baseURL, url.PathEscape(purchaseOrderID))

	payload, err := json.Marshal(shipment)
	if err != nil {
		return errors.Wrap(err, "failed to marshal shipment payload")
	}

	log.Debug().Str("purchase_order_id", purchaseOrderID).RawJSON("payload", payload).Msg("Dispatching shipment")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "failed to build dispatch request")
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuthHeaders(req, accessToken)

	body, status, err := c.do(req)
	if err != nil {
		return errors.Wrap(err, "dispatch request failed")
	}
	if status != http.StatusOK {
		return errors.Errorf("dispatch returned %d: %s", status, string(body))
	}

	return nil
}

func (c *Client) setCommonHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("WM_QOS.CORRELATION_ID", uuid.NewString())
	req.Header.Set("WM_SVC.NAME", c.serviceName)
}

func (c *Client) setAuthHeaders(req *http.Request, accessToken string) {
	c.setCommonHeaders(req)
	req.Header.Set("WM_SEC.ACCESS_TOKEN", accessToken)
}

func (c *Client) do(req *http.Request) ([]byte, int, error) {
	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxResponseSize))
	if err != nil {
		return nil, res.StatusCode, errors.Wrap(err, "failed to read response body")
	}

	return body, res.StatusCode, nil
}

func isTerminated(err error) bool {
	return err != nil && strings.Contains(err.Error(), terminatedMarker)
}
