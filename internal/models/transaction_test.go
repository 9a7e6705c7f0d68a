package models

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionUnmarshalKeepsFreeFormFields(t *testing.T) {
	id := uuid.New()
	input := `{"_id":"` + id.String() + `","amount":"1,250.50","date":"14-03-2024","party":"Acme Traders","reference":"UTR123","category":"Travel"}`

	var tx Transaction
	require.NoError(t, json.Unmarshal([]byte(input), &tx))

	assert.Equal(t, id, tx.ID)
	assert.True(t, decimal.RequireFromString("1250.50").Equal(tx.Amount))
	require.NotNil(t, tx.TransactionDate)
	assert.Equal(t, "2024-03-14", tx.TransactionDate.Format(DateLayout))
	assert.Equal(t, "Travel", tx.Category)
	assert.Equal(t, "Acme Traders", tx.Field("party"))
	assert.Equal(t, "UTR123", tx.Field("reference"))
	assert.Nil(t, tx.Field("category"))
}

func TestTransactionUnmarshalNumericAmount(t *testing.T) {
	var tx Transaction
	require.NoError(t, json.Unmarshal([]byte(`{"amount":99.9}`), &tx))

	assert.Equal(t, uuid.Nil, tx.ID)
	assert.True(t, decimal.RequireFromString("99.9").Equal(tx.Amount))
	assert.Nil(t, tx.Fields)
}

func TestTransactionUnmarshalUnparsableDateStaysInFields(t *testing.T) {
	var tx Transaction
	require.NoError(t, json.Unmarshal([]byte(`{"date":"sometime last week"}`), &tx))

	assert.Nil(t, tx.TransactionDate)
	assert.Equal(t, "sometime last week", tx.Field("date"))
}

func TestTransactionUnmarshalRejectsBadID(t *testing.T) {
	var tx Transaction
	err := json.Unmarshal([]byte(`{"_id":"not-a-uuid"}`), &tx)
	assert.Error(t, err)
}

func TestTransactionMarshalFlattensFields(t *testing.T) {
	score := 0.92
	tx := Transaction{
		ID:         uuid.New(),
		Amount:     decimal.NewFromInt(500),
		Status:     StatusMatched,
		MatchScore: &score,
		Fields:     map[string]any{"party": "Globex"},
	}

	data, err := json.Marshal(tx)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, tx.ID.String(), out["_id"])
	assert.Equal(t, "Globex", out["party"])
	assert.Equal(t, "MATCHED", out["status"])
	assert.Equal(t, 0.92, out["match_score"])
	assert.NotContains(t, out, "category")
}

func TestSummarize(t *testing.T) {
	txs := []*Transaction{
		{Amount: decimal.NewFromInt(100), Status: StatusMatched},
		{Amount: decimal.NewFromInt(50), Status: StatusUnmatched, Flags: []string{"amount mismatch"}, Severity: SeverityHigh},
		{Amount: decimal.NewFromInt(25)},
	}

	s := Summarize(txs)

	assert.Equal(t, 3, s.TotalTransactions)
	assert.Equal(t, 1, s.MatchedCount)
	assert.Equal(t, 2, s.UnmatchedCount)
	assert.Equal(t, 1, s.FlaggedCount)
	assert.Equal(t, 1, s.HighSeverityCount)
	assert.Equal(t, s.TotalTransactions, s.MatchedCount+s.UnmatchedCount)
	assert.True(t, decimal.NewFromInt(175).Equal(s.TotalAmount))
	assert.True(t, decimal.NewFromInt(100).Equal(s.MatchedAmount))
}

func TestParseAmount(t *testing.T) {
	cases := map[string]string{
		"":          "0",
		"1,000":     "1000",
		"₹ 2,500.75": "2500.75",
		"-12.5":     "-12.5",
	}
	for in, want := range cases {
		got, err := ParseAmount(in)
		require.NoError(t, err, in)
		assert.True(t, decimal.RequireFromString(want).Equal(got), in)
	}

	_, err := ParseAmount("twelve")
	assert.Error(t, err)
}
