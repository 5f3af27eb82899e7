package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/marketsync/internal/services"
	"example.com/backstage/services/marketsync/internal/tracing"
)

// AccountHandler handles account management HTTP requests
type AccountHandler struct {
	accountService *services.AccountService
	tracer         tracing.Tracer
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(accountService *services.AccountService, tracer tracing.Tracer) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
		tracer:         tracer,
	}
}

// HandleCreateAccount registers a marketplace account or refreshes the
// credentials of an existing one.
func (h *AccountHandler) HandleCreateAccount(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-create-account")
	defer h.tracer.EndTransaction(txn)

	var req services.AccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error().Err(err).Msg("Invalid account request body")
		h.tracer.RecordError(txn, err)
		writeError(c, errors.WithMessage(services.ErrValidation, err.Error()))
		return
	}

	h.tracer.AddAttribute(txn, "account_id", req.AccountID)
	h.tracer.AddAttribute(txn, "store_id", req.StoreID)

	account, err := h.accountService.CreateOrUpdate(c.Request.Context(), req)
	if err != nil {
		log.Error().Err(err).Str("account_id", req.AccountID).Msg("Failed to create account")
		h.tracer.RecordError(txn, err)
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, account)
}

// HandleDeleteAccount soft deletes the active account of a store.
func (h *AccountHandler) HandleDeleteAccount(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-delete-account")
	defer h.tracer.EndTransaction(txn)

	accountID := c.Param("accountId")
	storeID := c.Param("storeId")

	if err := h.accountService.Delete(c.Request.Context(), accountID, storeID); err != nil {
		log.Error().Err(err).Str("account_id", accountID).Msg("Failed to delete account")
		h.tracer.RecordError(txn, err)
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"accountId": accountID})
}

// RegisterRoutes registers the handler's routes
func (h *AccountHandler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	v1.POST("/accounts", h.HandleCreateAccount)
	v1.DELETE("/accounts/:accountId/:storeId", h.HandleDeleteAccount)
}
