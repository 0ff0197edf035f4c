package codec

import (
	"encoding/json"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alfanzaky/txqueue/internal/domain"
)

const testHash = "0x5c504ed432cb51138bcf09aa5e8a410dd4a1e204ef84bfed1be16dfba1b22060"

func maxUint256() *big.Int {
	return new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
}

func sampleTransaction() *domain.QueuedTransaction {
	submitted := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	confirmed := submitted.Add(42 * time.Second)
	max := maxUint256()

	return &domain.QueuedTransaction{
		ID:                domain.TransactionID(1, testHash),
		Hash:              testHash,
		ChainID:           1,
		Status:            domain.StatusConfirmed,
		Type:              domain.TypeSwap,
		Title:             "Swap ETH for USDC",
		Description:       "Uniswap v3",
		Value:             new(big.Int).Set(max),
		GasLimit:          big.NewInt(21000),
		GasPrice:          new(big.Int).Set(max),
		GasUsed:           big.NewInt(20999),
		EffectiveGasPrice: new(big.Int).Set(max),
		BlockNumber:       new(big.Int).SetUint64(^uint64(0)),
		Receipt: &domain.Receipt{
			TransactionHash:   testHash,
			BlockHash:         "0xabc",
			BlockNumber:       new(big.Int).SetUint64(^uint64(0)),
			GasUsed:           big.NewInt(20999),
			EffectiveGasPrice: new(big.Int).Set(max),
			Success:           true,
		},
		SubmittedAt: submitted,
		ConfirmedAt: &confirmed,
		RetryCount:  2,
		Metadata: map[string]interface{}{
			"allowance": new(big.Int).Set(max),
			"note":      "from wallet",
		},
	}
}

func TestEncodeDecode_PreservesMaxUint256(t *testing.T) {
	original := sampleTransaction()

	data, err := Encode([]*domain.QueuedTransaction{original})
	require.NoError(t, err)

	decoded, errs := Decode(data)
	require.Empty(t, errs)
	require.Len(t, decoded, 1)

	got := decoded[0]
	max := maxUint256()
	assert.Equal(t, 0, got.Value.Cmp(max))
	assert.Equal(t, 0, got.GasPrice.Cmp(max))
	assert.Equal(t, 0, got.EffectiveGasPrice.Cmp(max))
	assert.Equal(t, 0, got.Receipt.EffectiveGasPrice.Cmp(max))
	assert.Equal(t, "18446744073709551615", got.BlockNumber.String())
	assert.Equal(t, original.ID, got.ID)
	assert.Equal(t, original.Status, got.Status)
	assert.Equal(t, original.RetryCount, got.RetryCount)
	assert.True(t, original.SubmittedAt.Equal(got.SubmittedAt))
	require.NotNil(t, got.ConfirmedAt)
	assert.True(t, original.ConfirmedAt.Equal(*got.ConfirmedAt))

	allowance, ok := got.Metadata["allowance"].(*big.Int)
	require.True(t, ok, "metadata big integer should decode back to *big.Int")
	assert.Equal(t, 0, allowance.Cmp(max))
	assert.Equal(t, "from wallet", got.Metadata["note"])
}

func TestEncode_WritesTaggedIntegers(t *testing.T) {
	data, err := Encode([]*domain.QueuedTransaction{sampleTransaction()})
	require.NoError(t, err)

	var pairs [][]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &pairs))
	require.Len(t, pairs, 1)
	require.Len(t, pairs[0], 2)

	var record map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(pairs[0][1], &record))

	var value TaggedBigInt
	require.NoError(t, json.Unmarshal(record["value"], &value))
	assert.Equal(t, BigIntKind, value.Kind)
	assert.Equal(t, maxUint256().String(), value.Value)
}

func TestEncode_KeepsTableOrder(t *testing.T) {
	first := sampleTransaction()
	second := sampleTransaction()
	second.ChainID = 137
	second.ID = domain.TransactionID(137, testHash)

	data, err := Encode([]*domain.QueuedTransaction{second, first})
	require.NoError(t, err)

	decoded, errs := Decode(data)
	require.Empty(t, errs)
	require.Len(t, decoded, 2)
	assert.Equal(t, second.ID, decoded[0].ID)
	assert.Equal(t, first.ID, decoded[1].ID)
}

func TestDecode_SkipsCorruptEntries(t *testing.T) {
	good, err := Encode([]*domain.QueuedTransaction{sampleTransaction()})
	require.NoError(t, err)

	goodEntry := strings.TrimSuffix(strings.TrimPrefix(string(good), "["), "]")
	doc := "[" + goodEntry +
		`,["1:0xdead",{"id":"1:0xdead","hash":"0xdead","chainId":1,"status":"pending","value":{"kind":"bigint","value":"12.5"},"submittedAt":"2024-03-01T12:00:00Z"}]` +
		`,"not a pair"` +
		`,["1:0xbeef",{"id":"1:0xbeef","hash":"0xbeef","chainId":1,"status":"exploded","submittedAt":"2024-03-01T12:00:00Z"}]` +
		"]"

	decoded, errs := Decode([]byte(doc))
	require.Len(t, decoded, 1)
	assert.Equal(t, domain.TransactionID(1, testHash), decoded[0].ID)
	require.Len(t, errs, 3)
	for _, e := range errs {
		assert.ErrorIs(t, e, ErrCorruptEntry)
	}
}

func TestDecode_RejectsMismatchedID(t *testing.T) {
	doc := `[["1:0xother",{"id":"1:0xother","hash":"0xabc","chainId":1,"status":"pending","submittedAt":"2024-03-01T12:00:00Z"}]]`

	decoded, errs := Decode([]byte(doc))
	assert.Empty(t, decoded)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrCorruptEntry)
}

func TestDecode_DuplicateIDKeepsFirst(t *testing.T) {
	tx := sampleTransaction()
	data, err := Encode([]*domain.QueuedTransaction{tx, tx})
	require.NoError(t, err)

	decoded, errs := Decode(data)
	assert.Len(t, decoded, 1)
	assert.Len(t, errs, 1)
}

func TestDecode_EmptyAndInvalidDocuments(t *testing.T) {
	decoded, errs := Decode(nil)
	assert.Nil(t, decoded)
	assert.Nil(t, errs)

	decoded, errs = Decode([]byte("   "))
	assert.Nil(t, decoded)
	assert.Nil(t, errs)

	decoded, errs = Decode([]byte(`{"not":"a list"}`))
	assert.Empty(t, decoded)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrCorruptEntry)
}

func TestDecode_PlainMetadataNumbersStayExact(t *testing.T) {
	doc := `[["1:` + testHash + `",{"id":"1:` + testHash + `","hash":"` + testHash + `","chainId":1,"status":"pending","type":"transfer","submittedAt":"2024-03-01T12:00:00Z","retryCount":0,"metadata":{"nonce":123456789012345678901234567890}}]]`

	decoded, errs := Decode([]byte(doc))
	require.Empty(t, errs)
	require.Len(t, decoded, 1)

	nonce, ok := decoded[0].Metadata["nonce"].(json.Number)
	require.True(t, ok)
	assert.Equal(t, "123456789012345678901234567890", nonce.String())
}

func TestTaggedBigInt(t *testing.T) {
	assert.Nil(t, TagBigInt(nil))

	v, err := (*TaggedBigInt)(nil).BigInt()
	assert.NoError(t, err)
	assert.Nil(t, v)

	_, err = (&TaggedBigInt{Kind: "float", Value: "1"}).BigInt()
	assert.Error(t, err)

	_, err = (&TaggedBigInt{Kind: BigIntKind, Value: "1e18"}).BigInt()
	assert.Error(t, err)

	v, err = TagBigInt(big.NewInt(-42)).BigInt()
	require.NoError(t, err)
	assert.Equal(t, int64(-42), v.Int64())
}
