package api

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/alfanzaky/txqueue/internal/domain"
	"github.com/alfanzaky/txqueue/pkg/logger"
	"github.com/alfanzaky/txqueue/pkg/observability"
	"github.com/alfanzaky/txqueue/pkg/utils"
	"github.com/alfanzaky/txqueue/pkg/xresponse"
)

// ChainRegistry reports which chains have a ledger reader
type ChainRegistry interface {
	GetReader(chainID uint64) (domain.LedgerReader, error)
}

// TransactionHandler handles transaction-related HTTP requests
type TransactionHandler struct {
	queue     domain.TransactionQueue
	chains    ChainRegistry
	roleGuard *RoleGuard
}

// NewTransactionHandler creates a new transaction handler. A nil registry
// accepts every chain id.
func NewTransactionHandler(queue domain.TransactionQueue, chains ChainRegistry) *TransactionHandler {
	return &TransactionHandler{
		queue:     queue,
		chains:    chains,
		roleGuard: NewRoleGuard(),
	}
}

// CreateTransactionRequest represents request for tracking a submitted transaction.
// Integers are decimal or 0x-hex strings.
type CreateTransactionRequest struct {
	Hash        string                 `json:"hash" binding:"required"`
	ChainID     uint64                 `json:"chain_id" binding:"required"`
	Type        string                 `json:"type"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Value       string                 `json:"value"`
	GasLimit    string                 `json:"gas_limit"`
	GasPrice    string                 `json:"gas_price"`
	Metadata    map[string]interface{} `json:"metadata"`
}

// UpdateMetadataRequest merges keys into a transaction's metadata
type UpdateMetadataRequest struct {
	Metadata map[string]interface{} `json:"metadata" binding:"required"`
}

// CancelTransactionRequest represents request for cancelling a transaction
type CancelTransactionRequest struct {
	Reason string `json:"reason"`
}

// ReplaceTransactionRequest marks a transaction superseded by another hash
type ReplaceTransactionRequest struct {
	ReplacementHash string `json:"replacement_hash" binding:"required"`
}

// ReceiptResponse represents a ledger receipt
type ReceiptResponse struct {
	TransactionHash   string `json:"transaction_hash"`
	BlockHash         string `json:"block_hash"`
	BlockNumber       string `json:"block_number,omitempty"`
	GasUsed           string `json:"gas_used,omitempty"`
	EffectiveGasPrice string `json:"effective_gas_price,omitempty"`
	Success           bool   `json:"success"`
}

// TransactionResponse represents response for transaction
type TransactionResponse struct {
	ID                string                 `json:"id"`
	Hash              string                 `json:"hash"`
	ChainID           uint64                 `json:"chain_id"`
	Status            string                 `json:"status"`
	Type              string                 `json:"type"`
	Title             string                 `json:"title"`
	Description       string                 `json:"description,omitempty"`
	Value             string                 `json:"value,omitempty"`
	GasLimit          string                 `json:"gas_limit,omitempty"`
	GasPrice          string                 `json:"gas_price,omitempty"`
	GasUsed           string                 `json:"gas_used,omitempty"`
	EffectiveGasPrice string                 `json:"effective_gas_price,omitempty"`
	BlockNumber       string                 `json:"block_number,omitempty"`
	Receipt           *ReceiptResponse       `json:"receipt,omitempty"`
	Error             string                 `json:"error,omitempty"`
	SubmittedAt       string                 `json:"submitted_at"`
	ConfirmedAt       *string                `json:"confirmed_at,omitempty"`
	DurationMs        *int64                 `json:"duration_ms,omitempty"`
	RetryCount        int                    `json:"retry_count"`
	Metadata          map[string]interface{} `json:"metadata,omitempty"`
}

// CreateTransaction starts tracking a submitted transaction
func (h *TransactionHandler) CreateTransaction(c *gin.Context) {
	var req CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", logger.ErrorField(err))
		xresponse.BadRequest(c, "Invalid request format")
		return
	}

	if !utils.IsTxHash(req.Hash) {
		xresponse.BadRequest(c, "hash must be a 0x-prefixed 32-byte hex string")
		return
	}
	if h.chains != nil {
		if _, err := h.chains.GetReader(req.ChainID); err != nil {
			xresponse.ChainNotSupported(c, fmt.Sprintf("Chain %d is not supported", req.ChainID))
			return
		}
	}

	draft := &domain.TransactionDraft{
		Hash:        req.Hash,
		ChainID:     req.ChainID,
		Type:        domain.TxType(strings.ToLower(strings.TrimSpace(req.Type))),
		Title:       req.Title,
		Description: req.Description,
		Metadata:    req.Metadata,
	}

	amounts := []struct {
		name string
		raw  string
		dst  **big.Int
	}{
		{"value", req.Value, &draft.Value},
		{"gas_limit", req.GasLimit, &draft.GasLimit},
		{"gas_price", req.GasPrice, &draft.GasPrice},
	}
	invalid := make(map[string]string)
	for _, a := range amounts {
		v, err := utils.ParseBigInt(a.raw)
		if err != nil {
			invalid[a.name] = err.Error()
			continue
		}
		*a.dst = v
	}
	if len(invalid) > 0 {
		xresponse.ValidationError(c, invalid)
		return
	}

	h.roleGuard.LogAccess(c, "add_transaction", domain.TransactionID(req.ChainID, req.Hash))

	tx, err := h.queue.AddTransaction(draft)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateTransaction) && tx != nil {
			xresponse.DuplicateTransaction(c, "Transaction is already tracked", toTransactionResponse(tx))
			return
		}
		respondQueueError(c, err, "Failed to add transaction")
		return
	}

	xresponse.Created(c, "Transaction queued", toTransactionResponse(tx))
}

// ListTransactions lists tracked transactions, newest first
func (h *TransactionHandler) ListTransactions(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		xresponse.BadRequest(c, err.Error())
		return
	}

	txs := h.queue.GetTransactions(filter)
	data := make([]TransactionResponse, len(txs))
	for i, tx := range txs {
		data[i] = toTransactionResponse(tx)
	}

	xresponse.Success(c, "Transactions retrieved", data)
}

// GetTransaction returns one transaction by id
func (h *TransactionHandler) GetTransaction(c *gin.Context) {
	tx := h.queue.GetTransaction(c.Param("id"))
	if tx == nil {
		xresponse.NotFound(c, "Transaction not found")
		return
	}

	xresponse.Success(c, "Transaction retrieved", toTransactionResponse(tx))
}

// UpdateMetadata merges caller context into a transaction
func (h *TransactionHandler) UpdateMetadata(c *gin.Context) {
	id := c.Param("id")

	var req UpdateMetadataRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Metadata) == 0 {
		xresponse.BadRequest(c, "metadata object is required")
		return
	}

	h.roleGuard.LogAccess(c, "update_metadata", id)

	tx, err := h.queue.UpdateTransaction(id, &domain.TransactionUpdate{Metadata: req.Metadata})
	if err != nil {
		respondQueueError(c, err, "Failed to update transaction")
		return
	}

	xresponse.Success(c, "Transaction updated", toTransactionResponse(tx))
}

// CancelTransaction moves a pending transaction to cancelled
func (h *TransactionHandler) CancelTransaction(c *gin.Context) {
	id := c.Param("id")

	var req CancelTransactionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			xresponse.BadRequest(c, "Invalid request format")
			return
		}
	}

	h.roleGuard.LogAccess(c, "cancel_transaction", id)

	tx, err := h.queue.CancelTransaction(id, strings.TrimSpace(req.Reason))
	if err != nil {
		respondQueueError(c, err, "Failed to cancel transaction")
		return
	}

	xresponse.Success(c, "Transaction cancelled", toTransactionResponse(tx))
}

// ReplaceTransaction marks a pending transaction as replaced
func (h *TransactionHandler) ReplaceTransaction(c *gin.Context) {
	id := c.Param("id")

	var req ReplaceTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		xresponse.BadRequest(c, "replacement_hash is required")
		return
	}
	if !utils.IsTxHash(req.ReplacementHash) {
		xresponse.BadRequest(c, "replacement_hash must be a 0x-prefixed 32-byte hex string")
		return
	}

	h.roleGuard.LogAccess(c, "replace_transaction", id)

	tx, err := h.queue.MarkReplaced(id, req.ReplacementHash)
	if err != nil {
		respondQueueError(c, err, "Failed to mark transaction replaced")
		return
	}

	xresponse.Success(c, "Transaction marked replaced", toTransactionResponse(tx))
}

// RemoveTransaction stops tracking a transaction
func (h *TransactionHandler) RemoveTransaction(c *gin.Context) {
	id := c.Param("id")
	h.roleGuard.LogAccess(c, "remove_transaction", id)

	if !h.queue.RemoveTransaction(id) {
		xresponse.NotFound(c, "Transaction not found")
		return
	}

	xresponse.Success(c, "Transaction removed", gin.H{"id": id})
}

// ClearTransactions clears the queue, optionally for one chain
func (h *TransactionHandler) ClearTransactions(c *gin.Context) {
	var chainID *uint64
	if raw := c.Query("chain_id"); raw != "" {
		id, err := utils.ParseChainID(raw)
		if err != nil {
			xresponse.BadRequest(c, err.Error())
			return
		}
		chainID = &id
	}

	h.roleGuard.LogAccess(c, "clear_queue", c.Query("chain_id"))
	h.queue.ClearQueue(chainID)

	xresponse.Success(c, "Queue cleared", gin.H{"chain_id": chainID})
}

// GetStats returns queue counters
func (h *TransactionHandler) GetStats(c *gin.Context) {
	xresponse.Success(c, "Queue statistics retrieved", h.queue.Stats())
}

func parseFilter(c *gin.Context) (*domain.TransactionFilter, error) {
	filter := &domain.TransactionFilter{}

	if raw := c.Query("chain_id"); raw != "" {
		id, err := utils.ParseChainID(raw)
		if err != nil {
			return nil, err
		}
		filter.ChainID = &id
	}
	if raw := c.Query("status"); raw != "" {
		status := domain.TxStatus(strings.ToLower(raw))
		if !status.IsValid() {
			return nil, fmt.Errorf("unknown status %q", raw)
		}
		filter.Status = status
	}
	if raw := c.Query("type"); raw != "" {
		txType := domain.TxType(strings.ToLower(raw))
		if !txType.IsValid() {
			return nil, fmt.Errorf("unknown type %q", raw)
		}
		filter.Type = txType
	}

	return filter, nil
}

func respondQueueError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, domain.ErrTransactionNotFound):
		xresponse.NotFound(c, "Transaction not found")
	case errors.Is(err, domain.ErrInvalidStatusTransition):
		xresponse.InvalidStatusTransition(c, err.Error())
	case errors.Is(err, domain.ErrInvalidTransaction):
		xresponse.BadRequest(c, err.Error())
	case errors.Is(err, domain.ErrQueueDestroyed):
		xresponse.ServiceUnavailable(c, "Queue is shutting down")
	default:
		observability.LogWithError(c, err, message)
		xresponse.InternalServerError(c, message)
	}
}

func toTransactionResponse(tx *domain.QueuedTransaction) TransactionResponse {
	resp := TransactionResponse{
		ID:                tx.ID,
		Hash:              tx.Hash,
		ChainID:           tx.ChainID,
		Status:            string(tx.Status),
		Type:              string(tx.Type),
		Title:             tx.Title,
		Description:       tx.Description,
		Value:             utils.FormatBigInt(tx.Value),
		GasLimit:          utils.FormatBigInt(tx.GasLimit),
		GasPrice:          utils.FormatBigInt(tx.GasPrice),
		GasUsed:           utils.FormatBigInt(tx.GasUsed),
		EffectiveGasPrice: utils.FormatBigInt(tx.EffectiveGasPrice),
		BlockNumber:       utils.FormatBigInt(tx.BlockNumber),
		Error:             tx.Error,
		SubmittedAt:       utils.FormatTime(tx.SubmittedAt),
		RetryCount:        tx.RetryCount,
		Metadata:          renderMetadata(tx.Metadata),
	}

	if tx.ConfirmedAt != nil {
		confirmedAt := utils.FormatTime(*tx.ConfirmedAt)
		resp.ConfirmedAt = &confirmedAt
	}
	if d := tx.GetDuration(); d != nil {
		ms := d.Milliseconds()
		resp.DurationMs = &ms
	}
	if r := tx.Receipt; r != nil {
		resp.Receipt = &ReceiptResponse{
			TransactionHash:   r.TransactionHash,
			BlockHash:         r.BlockHash,
			BlockNumber:       utils.FormatBigInt(r.BlockNumber),
			GasUsed:           utils.FormatBigInt(r.GasUsed),
			EffectiveGasPrice: utils.FormatBigInt(r.EffectiveGasPrice),
			Success:           r.Success,
		}
	}

	return resp
}

// renderMetadata writes big integers inside metadata as decimal strings
func renderMetadata(metadata map[string]interface{}) map[string]interface{} {
	if len(metadata) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(metadata))
	for k, v := range metadata {
		if b, ok := v.(*big.Int); ok {
			out[k] = utils.FormatBigInt(b)
			continue
		}
		out[k] = v
	}
	return out
}
