// Package codec encodes the transaction table for durable storage.
//
// The document is a JSON array of [id, record] pairs in table order. JSON
// numbers cannot carry 256-bit integers, so every arbitrary-precision value is
// written as {"kind":"bigint","value":"<decimal>"} and parsed back with
// big.Int.SetString. Nothing is ever decoded through float64.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/alfanzaky/txqueue/internal/domain"
)

// BigIntKind is the tag written for arbitrary-precision integers
const BigIntKind = "bigint"

// ErrCorruptEntry wraps every per-entry decode failure
var ErrCorruptEntry = errors.New("corrupt persisted entry")

// TaggedBigInt is the persisted form of a *big.Int
type TaggedBigInt struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

// TagBigInt wraps v for encoding; nil stays nil
func TagBigInt(v *big.Int) *TaggedBigInt {
	if v == nil {
		return nil
	}
	return &TaggedBigInt{Kind: BigIntKind, Value: v.String()}
}

// BigInt parses the tagged value back into an exact integer
func (t *TaggedBigInt) BigInt() (*big.Int, error) {
	if t == nil {
		return nil, nil
	}
	if t.Kind != BigIntKind {
		return nil, fmt.Errorf("unexpected integer kind %q", t.Kind)
	}
	v, ok := new(big.Int).SetString(t.Value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid bigint value %q", t.Value)
	}
	return v, nil
}

type storedReceipt struct {
	TransactionHash   string        `json:"transactionHash"`
	BlockHash         string        `json:"blockHash"`
	BlockNumber       *TaggedBigInt `json:"blockNumber,omitempty"`
	GasUsed           *TaggedBigInt `json:"gasUsed,omitempty"`
	EffectiveGasPrice *TaggedBigInt `json:"effectiveGasPrice,omitempty"`
	Success           bool          `json:"success"`
}

type storedTransaction struct {
	ID          string `json:"id"`
	Hash        string `json:"hash"`
	ChainID     uint64 `json:"chainId"`
	Status      string `json:"status"`
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`

	Value             *TaggedBigInt `json:"value,omitempty"`
	GasLimit          *TaggedBigInt `json:"gasLimit,omitempty"`
	GasPrice          *TaggedBigInt `json:"gasPrice,omitempty"`
	GasUsed           *TaggedBigInt `json:"gasUsed,omitempty"`
	EffectiveGasPrice *TaggedBigInt `json:"effectiveGasPrice,omitempty"`
	BlockNumber       *TaggedBigInt `json:"blockNumber,omitempty"`

	Receipt *storedReceipt `json:"receipt,omitempty"`
	Error   string         `json:"error,omitempty"`

	SubmittedAt time.Time   `json:"submittedAt"`
	ConfirmedAt *time.Time  `json:"confirmedAt,omitempty"`
	RetryCount  int         `json:"retryCount"`
	Metadata    interface{} `json:"metadata,omitempty"`
}

// Encode serializes the records, in order, as [id, record] pairs
func Encode(records []*domain.QueuedTransaction) ([]byte, error) {
	pairs := make([][2]interface{}, 0, len(records))
	for _, tx := range records {
		if tx == nil {
			continue
		}
		pairs = append(pairs, [2]interface{}{tx.ID, toStored(tx)})
	}
	data, err := json.Marshal(pairs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode transactions: %w", err)
	}
	return data, nil
}

// Decode parses a document produced by Encode. Entries that fail to parse are
// skipped and reported individually; the remaining records are returned in
// document order. Empty input decodes to no records.
func Decode(data []byte) ([]*domain.QueuedTransaction, []error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, []error{fmt.Errorf("%w: document is not a list: %v", ErrCorruptEntry, err)}
	}

	records := make([]*domain.QueuedTransaction, 0, len(entries))
	var errs []error
	seen := make(map[string]struct{}, len(entries))

	for i, raw := range entries {
		tx, err := decodeEntry(raw)
		if err == nil {
			if _, dup := seen[tx.ID]; dup {
				err = fmt.Errorf("duplicate id %s", tx.ID)
			}
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%w at index %d: %v", ErrCorruptEntry, i, err))
			continue
		}
		seen[tx.ID] = struct{}{}
		records = append(records, tx)
	}

	return records, errs
}

func decodeEntry(raw json.RawMessage) (*domain.QueuedTransaction, error) {
	var pair []json.RawMessage
	if err := json.Unmarshal(raw, &pair); err != nil {
		return nil, fmt.Errorf("entry is not a pair: %w", err)
	}
	if len(pair) != 2 {
		return nil, fmt.Errorf("entry has %d elements, want 2", len(pair))
	}

	var id string
	if err := json.Unmarshal(pair[0], &id); err != nil {
		return nil, fmt.Errorf("invalid id: %w", err)
	}

	var stored storedTransaction
	dec := json.NewDecoder(bytes.NewReader(pair[1]))
	dec.UseNumber()
	if err := dec.Decode(&stored); err != nil {
		return nil, fmt.Errorf("invalid record: %w", err)
	}

	tx, err := fromStored(&stored)
	if err != nil {
		return nil, err
	}
	if tx.ID != id {
		return nil, fmt.Errorf("pair key %q does not match record id %q", id, tx.ID)
	}
	return tx, nil
}

func toStored(tx *domain.QueuedTransaction) *storedTransaction {
	stored := &storedTransaction{
		ID:                tx.ID,
		Hash:              tx.Hash,
		ChainID:           tx.ChainID,
		Status:            string(tx.Status),
		Type:              string(tx.Type),
		Title:             tx.Title,
		Description:       tx.Description,
		Value:             TagBigInt(tx.Value),
		GasLimit:          TagBigInt(tx.GasLimit),
		GasPrice:          TagBigInt(tx.GasPrice),
		GasUsed:           TagBigInt(tx.GasUsed),
		EffectiveGasPrice: TagBigInt(tx.EffectiveGasPrice),
		BlockNumber:       TagBigInt(tx.BlockNumber),
		Error:             tx.Error,
		SubmittedAt:       tx.SubmittedAt,
		ConfirmedAt:       tx.ConfirmedAt,
		RetryCount:        tx.RetryCount,
	}
	if len(tx.Metadata) > 0 {
		stored.Metadata = tagValue(tx.Metadata)
	}
	if r := tx.Receipt; r != nil {
		stored.Receipt = &storedReceipt{
			TransactionHash:   r.TransactionHash,
			BlockHash:         r.BlockHash,
			BlockNumber:       TagBigInt(r.BlockNumber),
			GasUsed:           TagBigInt(r.GasUsed),
			EffectiveGasPrice: TagBigInt(r.EffectiveGasPrice),
			Success:           r.Success,
		}
	}
	return stored
}

func fromStored(s *storedTransaction) (*domain.QueuedTransaction, error) {
	status := domain.TxStatus(s.Status)
	if !status.IsValid() {
		return nil, fmt.Errorf("unknown status %q", s.Status)
	}
	txType := domain.TxType(s.Type)
	if txType == "" {
		txType = domain.TypeUnknown
	}
	if !txType.IsValid() {
		return nil, fmt.Errorf("unknown type %q", s.Type)
	}
	if domain.NormalizeHash(s.Hash) == "" || s.ChainID == 0 {
		return nil, fmt.Errorf("missing hash or chain id")
	}
	if expected := domain.TransactionID(s.ChainID, s.Hash); s.ID != expected {
		return nil, fmt.Errorf("id %q does not match handle %q", s.ID, expected)
	}
	if s.RetryCount < 0 {
		return nil, fmt.Errorf("negative retry count")
	}
	if s.SubmittedAt.IsZero() {
		return nil, fmt.Errorf("missing submission time")
	}

	tx := &domain.QueuedTransaction{
		ID:          s.ID,
		Hash:        s.Hash,
		ChainID:     s.ChainID,
		Status:      status,
		Type:        txType,
		Title:       s.Title,
		Description: s.Description,
		Error:       s.Error,
		SubmittedAt: s.SubmittedAt,
		ConfirmedAt: s.ConfirmedAt,
		RetryCount:  s.RetryCount,
	}

	ints := []struct {
		name string
		src  *TaggedBigInt
		dst  **big.Int
	}{
		{"value", s.Value, &tx.Value},
		{"gasLimit", s.GasLimit, &tx.GasLimit},
		{"gasPrice", s.GasPrice, &tx.GasPrice},
		{"gasUsed", s.GasUsed, &tx.GasUsed},
		{"effectiveGasPrice", s.EffectiveGasPrice, &tx.EffectiveGasPrice},
		{"blockNumber", s.BlockNumber, &tx.BlockNumber},
	}
	for _, f := range ints {
		v, err := f.src.BigInt()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = v
	}

	if s.Receipt != nil {
		receipt, err := receiptFromStored(s.Receipt)
		if err != nil {
			return nil, err
		}
		tx.Receipt = receipt
	}

	if s.Metadata != nil {
		m, ok := untagValue(s.Metadata).(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("metadata is not an object")
		}
		tx.Metadata = m
	}

	return tx, nil
}

func receiptFromStored(s *storedReceipt) (*domain.Receipt, error) {
	r := &domain.Receipt{
		TransactionHash: s.TransactionHash,
		BlockHash:       s.BlockHash,
		Success:         s.Success,
	}
	var err error
	if r.BlockNumber, err = s.BlockNumber.BigInt(); err != nil {
		return nil, fmt.Errorf("receipt blockNumber: %w", err)
	}
	if r.GasUsed, err = s.GasUsed.BigInt(); err != nil {
		return nil, fmt.Errorf("receipt gasUsed: %w", err)
	}
	if r.EffectiveGasPrice, err = s.EffectiveGasPrice.BigInt(); err != nil {
		return nil, fmt.Errorf("receipt effectiveGasPrice: %w", err)
	}
	return r, nil
}

// tagValue replaces big integers nested in caller metadata with tagged values
func tagValue(v interface{}) interface{} {
	switch val := v.(type) {
	case *big.Int:
		return TagBigInt(val)
	case big.Int:
		return TagBigInt(&val)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = tagValue(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = tagValue(item)
		}
		return out
	default:
		return v
	}
}

// untagValue is the inverse of tagValue on a UseNumber-decoded tree.
// Plain JSON numbers stay json.Number so they keep their exact text.
func untagValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		if b, ok := asTaggedBigInt(val); ok {
			return b
		}
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = untagValue(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = untagValue(item)
		}
		return out
	default:
		return v
	}
}

func asTaggedBigInt(m map[string]interface{}) (*big.Int, bool) {
	if len(m) != 2 || m["kind"] != BigIntKind {
		return nil, false
	}
	s, ok := m["value"].(string)
	if !ok {
		return nil, false
	}
	return new(big.Int).SetString(s, 10)
}
