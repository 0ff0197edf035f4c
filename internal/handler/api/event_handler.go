package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/alfanzaky/txqueue/internal/domain"
	"github.com/alfanzaky/txqueue/pkg/logger"
	"github.com/alfanzaky/txqueue/pkg/utils"
	"github.com/alfanzaky/txqueue/pkg/xresponse"
)

const (
	defaultEventBuffer    = 64
	defaultKeepAliveEvery = 15 * time.Second
)

// EventHandler streams queue events as server-sent events
type EventHandler struct {
	queue     domain.TransactionQueue
	buffer    int
	keepAlive time.Duration
}

// NewEventHandler creates a new event stream handler
func NewEventHandler(queue domain.TransactionQueue) *EventHandler {
	return &EventHandler{
		queue:     queue,
		buffer:    defaultEventBuffer,
		keepAlive: defaultKeepAliveEvery,
	}
}

// EventResponse is the payload of one streamed event
type EventResponse struct {
	Type          string               `json:"type"`
	Transaction   *TransactionResponse `json:"transaction,omitempty"`
	TransactionID string               `json:"transaction_id,omitempty"`
	ChainID       *uint64              `json:"chain_id,omitempty"`
	Reason        string               `json:"reason,omitempty"`
	Timestamp     string               `json:"timestamp"`
}

// StreamEvents subscribes to the queue for the lifetime of the request.
// Listeners run synchronously inside queue mutations, so delivery to a slow
// client drops events instead of blocking the queue.
func (h *EventHandler) StreamEvents(c *gin.Context) {
	var chainFilter *uint64
	if raw := c.Query("chain_id"); raw != "" {
		id, err := utils.ParseChainID(raw)
		if err != nil {
			xresponse.BadRequest(c, err.Error())
			return
		}
		chainFilter = &id
	}

	subscriberID := utils.GenerateUUID()
	events := make(chan domain.QueueEvent, h.buffer)

	listenerID := h.queue.AddEventListener(func(evt domain.QueueEvent) {
		if !eventMatchesChain(evt, chainFilter) {
			return
		}
		select {
		case events <- evt:
		default:
			logger.Warn("Event stream subscriber is slow, dropping event",
				logger.String("subscriber_id", subscriberID),
				logger.String("event_type", string(evt.Type)),
			)
		}
	})
	defer h.queue.RemoveEventListener(listenerID)

	logger.Info("Event stream opened", logger.String("subscriber_id", subscriberID))
	defer logger.Info("Event stream closed", logger.String("subscriber_id", subscriberID))

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-events:
			c.SSEvent(string(evt.Type), toEventResponse(evt))
			c.Writer.Flush()
		case <-ticker.C:
			c.SSEvent("ping", gin.H{"timestamp": utils.FormatTime(time.Now())})
			c.Writer.Flush()
		}
	}
}

// eventMatchesChain keeps removal events and unscoped clears for every subscriber
func eventMatchesChain(evt domain.QueueEvent, chainID *uint64) bool {
	if chainID == nil {
		return true
	}
	switch {
	case evt.Transaction != nil:
		return evt.Transaction.ChainID == *chainID
	case evt.ChainID != nil:
		return *evt.ChainID == *chainID
	default:
		return true
	}
}

func toEventResponse(evt domain.QueueEvent) EventResponse {
	resp := EventResponse{
		Type:          string(evt.Type),
		TransactionID: evt.TransactionID,
		ChainID:       evt.ChainID,
		Reason:        evt.Reason,
		Timestamp:     utils.FormatTime(evt.Timestamp),
	}
	if evt.Transaction != nil {
		tx := toTransactionResponse(evt.Transaction)
		resp.Transaction = &tx
		resp.TransactionID = evt.Transaction.ID
	}
	return resp
}
