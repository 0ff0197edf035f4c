package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/alfanzaky/txqueue/config"
	"github.com/alfanzaky/txqueue/internal/codec"
	"github.com/alfanzaky/txqueue/internal/domain"
	"github.com/alfanzaky/txqueue/internal/event"
	"github.com/alfanzaky/txqueue/internal/worker"
	"github.com/alfanzaky/txqueue/pkg/logger"
	"github.com/alfanzaky/txqueue/pkg/metrics"
)

const defaultStoreWriteTimeout = 2 * time.Second

// record is a table row; seq orders rows by insertion
type record struct {
	tx  *domain.QueuedTransaction
	seq uint64
}

// monitorEntry marks ownership of a record by one running monitor
type monitorEntry struct {
	task *worker.Task
}

type transactionQueue struct {
	mu        sync.Mutex
	records   map[string]*record
	monitors  map[string]*monitorEntry
	seq       uint64
	destroyed bool

	cfg          config.QueueConfig
	monitorCfg   worker.MonitorConfig
	reader       domain.LedgerReader
	store        domain.QueueStore
	storeTimeout time.Duration
	bus          *event.Bus

	ctx    context.Context
	cancel context.CancelFunc
	log    *zap.Logger
}

// QueueOption customizes a transaction queue
type QueueOption func(*transactionQueue)

// WithStoreWriteTimeout bounds every load and save against the durable store
func WithStoreWriteTimeout(d time.Duration) QueueOption {
	return func(q *transactionQueue) {
		if d > 0 {
			q.storeTimeout = d
		}
	}
}

// WithEventBus shares an existing bus instead of creating one
func WithEventBus(bus *event.Bus) QueueOption {
	return func(q *transactionQueue) {
		if bus != nil {
			q.bus = bus
		}
	}
}

// NewTransactionQueue creates a queue, restores persisted records when
// persistence is enabled and resumes monitoring for the pending ones.
// store may be nil when persistence is disabled.
func NewTransactionQueue(
	cfg config.QueueConfig,
	reader domain.LedgerReader,
	store domain.QueueStore,
	opts ...QueueOption,
) domain.TransactionQueue {
	ctx, cancel := context.WithCancel(context.Background())

	q := &transactionQueue{
		records:  make(map[string]*record),
		monitors: make(map[string]*monitorEntry),
		cfg:      cfg,
		monitorCfg: worker.MonitorConfig{
			PollInterval:        cfg.PollInterval,
			AttemptTimeout:      cfg.AttemptTimeout,
			ConfirmationTimeout: cfg.ConfirmationTimeout,
			Retry: worker.RetryConfig{
				MaxRetries:        cfg.MaxRetries,
				InitialDelay:      cfg.RetryDelay,
				MaxDelay:          cfg.MaxRetryDelay,
				BackoffMultiplier: cfg.RetryBackoff,
			},
			Debug: cfg.Debug,
		},
		reader:       reader,
		store:        store,
		storeTimeout: defaultStoreWriteTimeout,
		ctx:          ctx,
		cancel:       cancel,
		log:          logger.Named("transaction_queue"),
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.bus == nil {
		q.bus = event.NewBus()
	}
	if q.cfg.MaxQueueSize <= 0 {
		q.cfg.MaxQueueSize = config.DefaultQueueConfig().MaxQueueSize
	}

	q.restore()
	return q
}

// restore loads the persisted table. Unparseable entries are skipped.
func (q *transactionQueue) restore() {
	if !q.persistenceEnabled() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), q.storeTimeout)
	data, err := q.store.Load(ctx)
	cancel()
	if err != nil {
		metrics.RecordPersistence("load", "error")
		q.log.Error("Failed to load persisted transactions", logger.ErrorField(err))
		return
	}
	metrics.RecordPersistence("load", "success")

	loaded, errs := codec.Decode(data)
	for _, decodeErr := range errs {
		q.log.Warn("Skipping corrupt persisted transaction", logger.ErrorField(decodeErr))
	}
	metrics.RecordCorruptRecords(len(errs))

	q.mu.Lock()
	resumed := 0
	for _, tx := range loaded {
		q.seq++
		q.records[tx.ID] = &record{tx: tx, seq: q.seq}
	}
	trimmed := len(q.records) > q.cfg.MaxQueueSize
	for len(q.records) > q.cfg.MaxQueueSize {
		q.evictOldestLocked()
	}
	if trimmed {
		q.persistLocked()
	}
	for id, rec := range q.records {
		if rec.tx.Status == domain.StatusPending {
			q.startMonitorLocked(id)
			resumed++
		}
	}
	total := len(q.records)
	q.recordGaugesLocked()
	q.mu.Unlock()

	q.bus.Drain()

	q.log.Info("Transaction queue restored",
		logger.Int("records", total),
		logger.Int("resumed_monitors", resumed),
		logger.Int("corrupt_entries", len(errs)),
	)
}

// AddTransaction inserts a new pending transaction and starts its monitor.
// A duplicate (chainId, hash) returns the existing record with ErrDuplicateTransaction.
func (q *transactionQueue) AddTransaction(draft *domain.TransactionDraft) (*domain.QueuedTransaction, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	q.mu.Lock()
	if q.destroyed {
		q.mu.Unlock()
		return nil, domain.ErrQueueDestroyed
	}

	id := domain.TransactionID(draft.ChainID, draft.Hash)
	if existing, ok := q.records[id]; ok {
		out := existing.tx.Clone()
		q.mu.Unlock()
		return out, fmt.Errorf("%w: %s", domain.ErrDuplicateTransaction, id)
	}

	for len(q.records) >= q.cfg.MaxQueueSize {
		q.evictOldestLocked()
	}

	txType := draft.Type
	if txType == "" {
		txType = domain.TypeUnknown
	}
	tx := (&domain.QueuedTransaction{
		ID:          id,
		Hash:        domain.NormalizeHash(draft.Hash),
		ChainID:     draft.ChainID,
		Status:      domain.StatusPending,
		Type:        txType,
		Title:       draft.Title,
		Description: draft.Description,
		Value:       draft.Value,
		GasLimit:    draft.GasLimit,
		GasPrice:    draft.GasPrice,
		SubmittedAt: time.Now(),
		RetryCount:  0,
		Metadata:    draft.Metadata,
	}).Clone()

	q.seq++
	q.records[id] = &record{tx: tx, seq: q.seq}
	q.persistLocked()

	out := tx.Clone()
	evt := domain.NewQueueEvent(domain.EventTransactionAdded)
	evt.Transaction = tx.Clone()
	q.bus.Enqueue(evt)

	q.startMonitorLocked(id)
	metrics.RecordTransition(string(tx.Status), tx.ChainID)
	q.recordGaugesLocked()
	q.mu.Unlock()

	q.bus.Drain()

	q.log.Info("Transaction queued", logger.TxFields(id, tx.ChainID, tx.Hash)...)
	return out, nil
}

// UpdateTransaction merges a partial update into the record
func (q *transactionQueue) UpdateTransaction(id string, update *domain.TransactionUpdate) (*domain.QueuedTransaction, error) {
	q.mu.Lock()
	out, err := q.updateLocked(id, update)
	q.mu.Unlock()

	q.bus.Drain()
	return out, err
}

// CancelTransaction moves a pending transaction to cancelled
func (q *transactionQueue) CancelTransaction(id, reason string) (*domain.QueuedTransaction, error) {
	update := &domain.TransactionUpdate{Status: domain.StatusPtr(domain.StatusCancelled)}
	if reason != "" {
		update.Metadata = map[string]interface{}{"cancelReason": reason}
	}
	return q.transition(id, update)
}

// MarkReplaced moves a pending transaction to replaced, recording the hash
// of the transaction that superseded it
func (q *transactionQueue) MarkReplaced(id, replacementHash string) (*domain.QueuedTransaction, error) {
	replacement := domain.NormalizeHash(replacementHash)
	if replacement == "" {
		return nil, fmt.Errorf("%w: replacement hash is required", domain.ErrInvalidTransaction)
	}
	return q.transition(id, &domain.TransactionUpdate{
		Status:   domain.StatusPtr(domain.StatusReplaced),
		Metadata: map[string]interface{}{"replacedBy": replacement},
	})
}

// transition applies a caller-driven terminal status; the record must still be pending
func (q *transactionQueue) transition(id string, update *domain.TransactionUpdate) (*domain.QueuedTransaction, error) {
	q.mu.Lock()
	rec, ok := q.records[id]
	if !ok {
		q.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", domain.ErrTransactionNotFound, id)
	}
	if rec.tx.IsFinalStatus() {
		status := rec.tx.Status
		q.mu.Unlock()
		return nil, fmt.Errorf("%w: %s is already %s", domain.ErrInvalidStatusTransition, id, status)
	}
	out, err := q.updateLocked(id, update)
	q.mu.Unlock()

	q.bus.Drain()
	return out, err
}

func (q *transactionQueue) updateLocked(id string, update *domain.TransactionUpdate) (*domain.QueuedTransaction, error) {
	rec, ok := q.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrTransactionNotFound, id)
	}
	if update == nil {
		return rec.tx.Clone(), nil
	}

	tx := rec.tx
	prevStatus := tx.Status

	if update.Status != nil {
		if !update.Status.IsValid() {
			return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidTransaction, *update.Status)
		}
		if tx.IsFinalStatus() && *update.Status != tx.Status {
			return nil, fmt.Errorf("%w: %s is %s, cannot become %s",
				domain.ErrInvalidStatusTransition, id, tx.Status, *update.Status)
		}
	}
	if update.RetryCount != nil && (*update.RetryCount < 0 || *update.RetryCount > q.cfg.MaxRetries) {
		return nil, fmt.Errorf("%w: retry count %d outside [0, %d]",
			domain.ErrInvalidTransaction, *update.RetryCount, q.cfg.MaxRetries)
	}

	if update.Status != nil {
		tx.Status = *update.Status
	}
	if update.GasUsed != nil {
		tx.GasUsed = domain.CopyBig(update.GasUsed)
	}
	if update.EffectiveGasPrice != nil {
		tx.EffectiveGasPrice = domain.CopyBig(update.EffectiveGasPrice)
	}
	if update.BlockNumber != nil {
		tx.BlockNumber = domain.CopyBig(update.BlockNumber)
	}
	if update.Receipt != nil {
		tx.Receipt = update.Receipt.Clone()
	}
	if update.Error != nil {
		tx.Error = *update.Error
	}
	if update.ConfirmedAt != nil {
		confirmedAt := *update.ConfirmedAt
		tx.ConfirmedAt = &confirmedAt
	}
	if update.RetryCount != nil {
		tx.RetryCount = *update.RetryCount
	}
	if len(update.Metadata) > 0 {
		merged := domain.CloneMetadata(update.Metadata)
		if tx.Metadata == nil {
			tx.Metadata = make(map[string]interface{}, len(merged))
		}
		for k, v := range merged {
			tx.Metadata[k] = v
		}
	}

	statusChanged := tx.Status != prevStatus
	if statusChanged && tx.IsFinalStatus() {
		q.stopMonitorLocked(id)
		metrics.RecordTransition(string(tx.Status), tx.ChainID)
		if d := tx.GetDuration(); d != nil {
			metrics.RecordConfirmationDuration(string(tx.Status), d.Seconds())
		}
		q.log.Info("Transaction reached terminal status",
			append(logger.TxFields(id, tx.ChainID, tx.Hash),
				logger.String("status", string(tx.Status)),
				logger.Int("retry_count", tx.RetryCount),
			)...,
		)
	}

	q.persistLocked()

	evt := domain.NewQueueEvent(domain.EventTransactionUpdated)
	evt.Transaction = tx.Clone()
	q.bus.Enqueue(evt)
	if statusChanged {
		switch tx.Status {
		case domain.StatusConfirmed:
			confirmed := domain.NewQueueEvent(domain.EventTransactionConfirmed)
			confirmed.Transaction = tx.Clone()
			q.bus.Enqueue(confirmed)
		case domain.StatusFailed:
			failed := domain.NewQueueEvent(domain.EventTransactionFailed)
			failed.Transaction = tx.Clone()
			q.bus.Enqueue(failed)
		}
	}
	q.recordGaugesLocked()

	return tx.Clone(), nil
}

// RemoveTransaction stops monitoring and deletes the record
func (q *transactionQueue) RemoveTransaction(id string) bool {
	q.mu.Lock()
	if _, ok := q.records[id]; !ok {
		q.mu.Unlock()
		return false
	}
	q.removeLocked(id, domain.RemovalExplicit)
	q.persistLocked()
	q.recordGaugesLocked()
	q.mu.Unlock()

	q.bus.Drain()
	return true
}

// GetTransaction returns a copy of the record, or nil
func (q *transactionQueue) GetTransaction(id string) *domain.QueuedTransaction {
	q.mu.Lock()
	defer q.mu.Unlock()
	rec, ok := q.records[id]
	if !ok {
		return nil
	}
	return rec.tx.Clone()
}

// GetTransactions returns matching records, newest submitted first
func (q *transactionQueue) GetTransactions(filter *domain.TransactionFilter) []*domain.QueuedTransaction {
	q.mu.Lock()
	matched := make([]*record, 0, len(q.records))
	for _, rec := range q.records {
		if filter.Matches(rec.tx) {
			matched = append(matched, rec)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.tx.SubmittedAt.Equal(b.tx.SubmittedAt) {
			return a.tx.SubmittedAt.After(b.tx.SubmittedAt)
		}
		return a.seq > b.seq
	})
	out := make([]*domain.QueuedTransaction, len(matched))
	for i, rec := range matched {
		out[i] = rec.tx.Clone()
	}
	q.mu.Unlock()
	return out
}

// ClearQueue removes every record, or only those on chainID when set
func (q *transactionQueue) ClearQueue(chainID *uint64) {
	q.mu.Lock()
	cleared := 0
	for id, rec := range q.records {
		if chainID != nil && rec.tx.ChainID != *chainID {
			continue
		}
		q.stopMonitorLocked(id)
		delete(q.records, id)
		cleared++
	}
	q.persistLocked()

	evt := domain.NewQueueEvent(domain.EventQueueCleared)
	if chainID != nil {
		scoped := *chainID
		evt.ChainID = &scoped
	}
	q.bus.Enqueue(evt)
	q.recordGaugesLocked()
	q.mu.Unlock()

	q.bus.Drain()

	fields := []zap.Field{logger.Int("cleared", cleared)}
	if chainID != nil {
		fields = append(fields, logger.Uint64("chain_id", *chainID))
	}
	q.log.Info("Transaction queue cleared", fields...)
}

// AddEventListener registers a listener for queue events
func (q *transactionQueue) AddEventListener(listener domain.EventListener) domain.ListenerID {
	return q.bus.Subscribe(listener)
}

// RemoveEventListener unregisters a listener
func (q *transactionQueue) RemoveEventListener(id domain.ListenerID) bool {
	return q.bus.Unsubscribe(id)
}

// Stats returns a snapshot of queue counters
func (q *transactionQueue) Stats() *domain.QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()

	stats := &domain.QueueStats{
		Total:          len(q.records),
		ActiveMonitors: len(q.monitors),
		ByStatus:       make(map[domain.TxStatus]int),
		MaxQueueSize:   q.cfg.MaxQueueSize,
	}
	for _, rec := range q.records {
		stats.ByStatus[rec.tx.Status]++
	}
	return stats
}

// Destroy cancels every monitor and waits until all of them have exited.
// Records stay readable; new transactions are rejected.
func (q *transactionQueue) Destroy() {
	q.mu.Lock()
	if q.destroyed {
		q.mu.Unlock()
		return
	}
	q.destroyed = true

	tasks := make([]*worker.Task, 0, len(q.monitors))
	for id, entry := range q.monitors {
		entry.task.Cancel()
		tasks = append(tasks, entry.task)
		delete(q.monitors, id)
	}
	q.cancel()
	q.recordGaugesLocked()
	q.mu.Unlock()

	for _, task := range tasks {
		task.Wait()
	}
	q.log.Info("Transaction queue destroyed", logger.Int("stopped_monitors", len(tasks)))
}

// evictOldestLocked drops the record with the smallest submittedAt,
// breaking ties by insertion order
func (q *transactionQueue) evictOldestLocked() {
	var oldestID string
	var oldest *record
	for id, rec := range q.records {
		if oldest == nil ||
			rec.tx.SubmittedAt.Before(oldest.tx.SubmittedAt) ||
			(rec.tx.SubmittedAt.Equal(oldest.tx.SubmittedAt) && rec.seq < oldest.seq) {
			oldestID, oldest = id, rec
		}
	}
	if oldest == nil {
		return
	}

	q.removeLocked(oldestID, domain.RemovalEvicted)
	metrics.RecordEviction()
	q.log.Warn("Queue full, evicted oldest transaction",
		append(logger.TxFields(oldestID, oldest.tx.ChainID, oldest.tx.Hash),
			logger.String("status", string(oldest.tx.Status)),
		)...,
	)
}

func (q *transactionQueue) removeLocked(id, reason string) {
	q.stopMonitorLocked(id)
	delete(q.records, id)

	evt := domain.NewQueueEvent(domain.EventTransactionRemoved)
	evt.TransactionID = id
	evt.Reason = reason
	q.bus.Enqueue(evt)
}

// startMonitorLocked registers ownership before the monitor runs, so the
// monitor's first mutation request already finds itself the owner
func (q *transactionQueue) startMonitorLocked(id string) {
	if q.destroyed || q.reader == nil {
		return
	}
	rec, ok := q.records[id]
	if !ok || rec.tx.Status != domain.StatusPending {
		return
	}
	if _, running := q.monitors[id]; running {
		return
	}

	owner := &monitorEntry{}
	q.monitors[id] = owner
	m := worker.NewTransactionMonitor(q.reader, q.monitorCfg, rec.tx.Clone(), q.sinkFor(id, owner))
	owner.task = m.Start(q.ctx)

	if q.cfg.Debug {
		q.log.Debug("Monitor registered", logger.TxFields(id, rec.tx.ChainID, rec.tx.Hash)...)
	}
}

// stopMonitorLocked cancels without waiting; the monitor may be blocked on q.mu
func (q *transactionQueue) stopMonitorLocked(id string) {
	entry, ok := q.monitors[id]
	if !ok {
		return
	}
	delete(q.monitors, id)
	entry.task.Cancel()
}

// sinkFor applies monitor updates while the monitor still owns the record.
// Ownership is checked under q.mu, so nothing lands after removal or clear.
func (q *transactionQueue) sinkFor(id string, owner *monitorEntry) worker.Sink {
	return func(update *domain.TransactionUpdate) bool {
		q.mu.Lock()
		if q.monitors[id] != owner {
			q.mu.Unlock()
			return false
		}
		_, err := q.updateLocked(id, update)
		if err != nil {
			q.log.Error("Monitor update rejected", logger.String("id", id), logger.ErrorField(err))
		}
		owned := q.monitors[id] == owner
		q.mu.Unlock()

		q.bus.Drain()
		return err == nil && owned
	}
}

func (q *transactionQueue) persistenceEnabled() bool {
	return q.cfg.EnablePersistence && q.store != nil
}

// persistLocked writes the whole table in insertion order. Failures are logged
// and never undo the in-memory mutation.
func (q *transactionQueue) persistLocked() {
	if !q.persistenceEnabled() {
		return
	}

	rows := make([]*record, 0, len(q.records))
	for _, rec := range q.records {
		rows = append(rows, rec)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })
	txs := make([]*domain.QueuedTransaction, len(rows))
	for i, rec := range rows {
		txs[i] = rec.tx
	}

	data, err := codec.Encode(txs)
	if err != nil {
		metrics.RecordPersistence("save", "error")
		q.log.Error("Failed to encode transaction queue", logger.ErrorField(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), q.storeTimeout)
	defer cancel()
	if err := q.store.Save(ctx, data); err != nil {
		metrics.RecordPersistence("save", "error")
		q.log.Error("Failed to persist transaction queue", logger.ErrorField(err))
		return
	}
	metrics.RecordPersistence("save", "success")
}

func (q *transactionQueue) recordGaugesLocked() {
	metrics.SetQueueSize(len(q.records))
	metrics.SetActiveMonitors(len(q.monitors))
}
