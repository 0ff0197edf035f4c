package domain

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneMetadata(t *testing.T) {
	amount := big.NewInt(1000)
	nested := map[string]interface{}{"amount": amount, "label": "fee"}
	list := []interface{}{big.NewInt(7), map[string]interface{}{"hop": "rpc-a"}}
	original := map[string]interface{}{"nested": nested, "list": list, "count": 3}

	cloned := CloneMetadata(original)
	require.Equal(t, original, cloned)

	amount.SetInt64(1)
	nested["label"] = "changed"
	list[0].(*big.Int).SetInt64(0)
	list[1].(map[string]interface{})["hop"] = "changed"
	original["count"] = 4

	clonedNested := cloned["nested"].(map[string]interface{})
	assert.Equal(t, "1000", clonedNested["amount"].(*big.Int).String())
	assert.Equal(t, "fee", clonedNested["label"])
	clonedList := cloned["list"].([]interface{})
	assert.Equal(t, "7", clonedList[0].(*big.Int).String())
	assert.Equal(t, "rpc-a", clonedList[1].(map[string]interface{})["hop"])
	assert.Equal(t, 3, cloned["count"])

	assert.Nil(t, CloneMetadata(nil))
}

func TestQueuedTransaction_CloneCopiesNestedMetadata(t *testing.T) {
	tx := &QueuedTransaction{
		ID:       TransactionID(1, "0xabc"),
		Value:    big.NewInt(5),
		Metadata: map[string]interface{}{"ctx": map[string]interface{}{"step": "submitted"}},
	}

	out := tx.Clone()
	out.Value.SetInt64(6)
	out.Metadata["ctx"].(map[string]interface{})["step"] = "changed"

	assert.Equal(t, "5", tx.Value.String())
	assert.Equal(t, "submitted", tx.Metadata["ctx"].(map[string]interface{})["step"])
}
