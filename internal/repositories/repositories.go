package repositories

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"example.com/backstage/services/marketsync/internal/models"
)

// AccountRepository provides access to marketplace account data
type AccountRepository struct {
	db         *gorm.DB // Write database
	readOnlyDB *gorm.DB // Read-only database
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *gorm.DB, readOnlyDB *gorm.DB) *AccountRepository {
	return &AccountRepository{
		db:         db,
		readOnlyDB: readOnlyDB,
	}
}

// GetActive gets a non-deleted account by its tenant identity
func (r *AccountRepository) GetActive(ctx context.Context, accountID, storeID string) (*models.Account, error) {
	var account models.Account
	err := r.readOnlyDB.WithContext(ctx).
		Where("account_id = ? AND store_id = ? AND is_deleted = ?", accountID, storeID, false).
		First(&account).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to get active account")
	}
	return &account, nil
}

// Get gets an account by its tenant identity regardless of deletion state
func (r *AccountRepository) Get(ctx context.Context, accountID, storeID string) (*models.Account, error) {
	var account models.Account
	err := r.readOnlyDB.WithContext(ctx).
		Where("account_id = ? AND store_id = ?", accountID, storeID).
		First(&account).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to get account")
	}
	return &account, nil
}

// GetByClientID gets an account by its marketplace client id
func (r *AccountRepository) GetByClientID(ctx context.Context, clientID string) (*models.Account, error) {
	var account models.Account
	err := r.readOnlyDB.WithContext(ctx).
		Where("client_id = ?", clientID).
		First(&account).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to get account by client id")
	}
	return &account, nil
}

// GetByAccountAndClient gets an account by the (account id, client id) pairing
func (r *AccountRepository) GetByAccountAndClient(ctx context.Context, accountID, clientID string) (*models.Account, error) {
	var account models.Account
	err := r.readOnlyDB.WithContext(ctx).
		Where("account_id = ? AND client_id = ?", accountID, clientID).
		First(&account).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to get account by account and client id")
	}
	return &account, nil
}

// ListActive lists all accounts not soft-deleted
func (r *AccountRepository) ListActive(ctx context.Context) ([]models.Account, error) {
	var accounts []models.Account
	err := r.readOnlyDB.WithContext(ctx).
		Where("is_deleted = ?", false).
		Find(&accounts).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list active accounts")
	}
	return accounts, nil
}

// Save persists an account
func (r *AccountRepository) Save(ctx context.Context, account *models.Account) error {
	return r.db.WithContext(ctx).Save(account).Error
}

// SoftDelete marks an account deleted while keeping the row
func (r *AccountRepository) SoftDelete(ctx context.Context, account *models.Account) error {
	account.IsDeleted = true
	result := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ?", account.ID).
		Update("is_deleted", true)

	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to soft delete account")
	}

	return nil
}

// OrderRepository provides access to mirrored order data
type OrderRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db *gorm.DB, readOnlyDB *gorm.DB) *OrderRepository {
	return &OrderRepository{
		db:         db,
		readOnlyDB: readOnlyDB,
	}
}

// withGraph preloads the full order graph.
func withGraph(db *gorm.DB) *gorm.DB {
	return db.
		Preload("ShippingInfo").
		Preload("Lines").
		Preload("Lines.Charges").
		Preload("Lines.Statuses")
}

// HasAnyForTenant reports whether the tenant has at least one stored order
func (r *OrderRepository) HasAnyForTenant(ctx context.Context, clientID, storeID string) (bool, error) {
	var count int64
	err := r.readOnlyDB.WithContext(ctx).
		Model(&models.Order{}).
		Where("client_id = ? AND store_id = ?", clientID, storeID).
		Limit(1).
		Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "failed to count tenant orders")
	}
	return count > 0, nil
}

// MaxLocalUpdateDate returns the tenant's sync watermark, zero when no
// orders are stored yet
func (r *OrderRepository) MaxLocalUpdateDate(ctx context.Context, clientID, storeID string) (int64, error) {
	var maxDate *int64
	err := r.readOnlyDB.WithContext(ctx).
		Model(&models.Order{}).
		Where("client_id = ? AND store_id = ?", clientID, storeID).
		Select("MAX(order_local_update_date)").
		Scan(&maxDate).Error
	if err != nil {
		return 0, errors.Wrap(err, "failed to read sync watermark")
	}
	if maxDate == nil {
		return 0, nil
	}
	return *maxDate, nil
}

// ListUpdatedSince returns the tenant's orders with a watermark at or
// after the given lower bound, full graph loaded
func (r *OrderRepository) ListUpdatedSince(ctx context.Context, clientID, storeID string, sinceMillis int64) ([]models.Order, error) {
	var orders []models.Order
	err := withGraph(r.readOnlyDB.WithContext(ctx)).
		Where("client_id = ? AND store_id = ? AND order_local_update_date >= ?", clientID, storeID, sinceMillis).
		Find(&orders).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list updated orders")
	}
	return orders, nil
}

// GetByPurchaseOrderID gets one order by purchase order id within a store
func (r *OrderRepository) GetByPurchaseOrderID(ctx context.Context, storeID, purchaseOrderID string) (*models.Order, error) {
	var order models.Order
	err := withGraph(r.readOnlyDB.WithContext(ctx)).
		Where("store_id = ? AND purchase_order_id = ?", storeID, purchaseOrderID).
		First(&order).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to get order by purchase order id")
	}
	return &order, nil
}

// GetForDispatch finds a tenant's order by either the marketplace
// purchase order id or the customer order id
func (r *OrderRepository) GetForDispatch(ctx context.Context, clientID, storeID, orderID string) (*models.Order, error) {
	var order models.Order
	err := r.readOnlyDB.WithContext(ctx).
		Preload("Lines").
		Where("(purchase_order_id = ? OR customer_order_id = ?)", orderID, orderID).
		Where("client_id = ? AND store_id = ?", clientID, storeID).
		First(&order).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to get order for dispatch")
	}
	return &order, nil
}

// MergeResult reports what a reconciliation write changed.
type MergeResult struct {
	Created int
	Updated int
}

// Merge reconciles fetched order snapshots against the mirror inside
// one transaction. An order with no stored counterpart is created with
// its full graph. An existing order only has its watermark advanced,
// matched lines' status dates refreshed and missing status history
// entries appended; charges, addresses and unmatched incoming lines
// are never touched on update.
func (r *OrderRepository) Merge(ctx context.Context, orders []models.Order) (MergeResult, error) {
	var result MergeResult

	if len(orders) == 0 {
		return result, nil
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range orders {
			incoming := &orders[i]

			var existing models.Order
			err := tx.
				Preload("Lines").
				Preload("Lines.Statuses").
				Where("store_id = ? AND purchase_order_id = ?", incoming.StoreID, incoming.PurchaseOrderID).
				First(&existing).Error

			if errors.Is(err, gorm.ErrRecordNotFound) {
				if err := tx.Create(incoming).Error; err != nil {
					return errors.Wrap(err, "failed to create order")
				}
				result.Created++
				continue
			}
			if err != nil {
				return errors.Wrap(err, "failed to look up order for merge")
			}

			if err := r.mergeExisting(tx, &existing, incoming); err != nil {
				return err
			}
			result.Updated++
		}
		return nil
	})
	if err != nil {
		return MergeResult{}, err
	}

	return result, nil
}

func (r *OrderRepository) mergeExisting(tx *gorm.DB, existing *models.Order, incoming *models.Order) error {
	err := tx.Model(existing).
		Update("order_local_update_date", incoming.OrderLocalUpdateDate).Error
	if err != nil {
		return errors.Wrap(err, "failed to advance order watermark")
	}

	for li := range existing.Lines {
		line := &existing.Lines[li]

		incomingLine := findLine(incoming.Lines, line.LineNumber)
		if incomingLine == nil {
			continue
		}

		err := tx.Model(line).Update("status_date", incomingLine.StatusDate).Error
		if err != nil {
			return errors.Wrap(err, "failed to update line status date")
		}

		for si := range incomingLine.Statuses {
			status := incomingLine.Statuses[si]
			if containsStatus(line.Statuses, status) {
				continue
			}

			status.ID = 0
			status.OrderLineID = line.ID
			if err := tx.Create(&status).Error; err != nil {
				return errors.Wrap(err, "failed to append line status")
			}
			line.Statuses = append(line.Statuses, status)
		}
	}

	return nil
}

func findLine(lines []models.OrderLine, lineNumber string) *models.OrderLine {
	for i := range lines {
		if lines[i].LineNumber == lineNumber {
			return &lines[i]
		}
	}
	return nil
}

func containsStatus(statuses []models.OrderLineStatus, status models.OrderLineStatus) bool {
	for i := range statuses {
		if statuses[i].Equal(status) {
			return true
		}
	}
	return false
}
