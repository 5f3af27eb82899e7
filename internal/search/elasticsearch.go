package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/marketsync/config"
	"example.com/backstage/services/marketsync/internal/models"
)

// ElasticClient indexes reconciled orders for back-office search
type ElasticClient struct {
	client *elasticsearch.Client
	config config.ElasticConfig
}

// NewElasticClient creates a new Elasticsearch client
func NewElasticClient(cfg config.ElasticConfig) (*ElasticClient, error) {
	esConfig := elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
	}

	client, err := elasticsearch.NewClient(esConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Elasticsearch client")
	}

	return &ElasticClient{
		client: client,
		config: cfg,
	}, nil
}

// IndexOrder indexes one mirrored order. The document id is the
// (store, purchase order) identity, so reindexing on every sync stays
// idempotent.
func (c *ElasticClient) IndexOrder(ctx context.Context, order *models.Order, status string) error {
	doc := map[string]interface{}{
		"client_id":         order.ClientID,
		"store_id":          order.StoreID,
		"purchase_order_id": order.PurchaseOrderID,
		"customer_order_id": order.CustomerOrderID,
		"order_type":        order.OrderType,
		"order_date":        order.OrderDate,
		"local_update_date": order.OrderLocalUpdateDate,
		"status":            status,
		"line_count":        len(order.Lines),
	}

	if order.ShippingInfo != nil {
		doc["recipient"] = order.ShippingInfo.PostalAddress.Name
		doc["city"] = order.ShippingInfo.PostalAddress.City
		doc["country"] = order.ShippingInfo.PostalAddress.Country
	}

	skus := make([]string, 0, len(order.Lines))
	for _, line := range order.Lines {
		skus = append(skus, line.Item.SKU)
	}
	doc["skus"] = skus

	docJSON, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "failed to marshal order document")
	}

	indexName := config.FormatIndex(c.config, c.config.Index)
	req := esapi.IndexRequest{
		Index:      indexName,
		DocumentID: fmt.Sprintf("%s:%s", order.StoreID, order.PurchaseOrderID),
		Body:       bytes.NewReader(docJSON),
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return errors.Wrap(err, "failed to execute Elasticsearch index request")
	}
	defer res.Body.Close()

	if res.IsError() {
		var e map[string]interface{}
		if err := json.NewDecoder(res.Body).Decode(&e); err != nil {
			return errors.Wrap(err, "failed to parse Elasticsearch error response")
		}
		return errors.Errorf("Elasticsearch index error: %v", e)
	}

	log.Debug().Str("purchase_order_id", order.PurchaseOrderID).Msg("order indexed")
	return nil
}
