package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTxHash(t *testing.T) {
	valid := "0x" + strings.Repeat("ab", 32)

	assert.True(t, IsTxHash(valid))
	assert.True(t, IsTxHash(strings.ToUpper(valid)))
	assert.True(t, IsTxHash(" "+valid+" "))
	assert.False(t, IsTxHash(valid[2:]))
	assert.False(t, IsTxHash(valid+"00"))
	assert.False(t, IsTxHash("0x"+strings.Repeat("zz", 32)))
}

func TestParseChainID(t *testing.T) {
	id, err := ParseChainID("137")
	require.NoError(t, err)
	assert.Equal(t, uint64(137), id)

	for _, in := range []string{"", "0", "-1", "abc", "1.5"} {
		_, err := ParseChainID(in)
		assert.Error(t, err, in)
	}
}

func TestParseBigInt(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "empty", input: "", want: ""},
		{name: "decimal", input: "1000000000000000000", want: "1000000000000000000"},
		{name: "hex", input: "0xff", want: "255"},
		{name: "max uint256", input: "0x" + strings.Repeat("f", 64), want: "115792089237316195423570985008687907853269984665640564039457584007913129639935"},
		{name: "too large", input: "0x1" + strings.Repeat("0", 64), wantErr: true},
		{name: "negative", input: "-5", wantErr: true},
		{name: "float", input: "1.5", wantErr: true},
		{name: "garbage", input: "ten", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBigInt(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, FormatBigInt(got))
		})
	}
}

func TestFormatTime(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 30, 45, 123456789, time.FixedZone("WIB", 7*3600))
	assert.Equal(t, "2024-03-01T05:30:45.123Z", FormatTime(ts))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "abc", TruncateString("abc", 5))
	assert.Equal(t, "ab...", TruncateString("abcdef", 2))
}

func TestGenerateUUID(t *testing.T) {
	a, b := GenerateUUID(), GenerateUUID()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}
