package compliance

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentic-reconciliation-backend/internal/ai/mock"
	"agentic-reconciliation-backend/internal/knowledge"
)

type fakeRetriever struct {
	answer  string
	err     error
	queries []string
}

func (f *fakeRetriever) Retrieve(ctx context.Context, query string) (string, error) {
	f.queries = append(f.queries, query)
	return f.answer, f.err
}

func newTestFlow(t *testing.T, retriever Retriever) *Flow {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "circular.txt", "New TDS rates")
	calendar := writeFile(t, dir, "calendar.csv", "Event,Start Date,End Date\nGSTR-1,2024-04-08,2024-04-08\n")

	monitor, err := NewMonitor(&memoryIndexer{}, &memoryLedger{}, dir)
	require.NoError(t, err)
	flow, err := NewFlow(monitor, NewDeadlineTracker(calendar, clockAt("2024-04-05T00:00:00Z")), retriever)
	require.NoError(t, err)
	return flow
}

func TestFlowSkipsRetrievalWithoutQuery(t *testing.T) {
	retriever := &fakeRetriever{answer: "unused"}
	flow := newTestFlow(t, retriever)

	st, err := flow.Run(context.Background(), "  ")
	require.NoError(t, err)

	assert.Equal(t, "Processed 1 new files", st.DocumentStatus)
	require.Len(t, st.Deadlines, 1)
	assert.Equal(t, "GSTR-1", st.Deadlines[0].Summary)
	assert.Empty(t, st.RegulationResult)
	assert.Empty(t, retriever.queries)
	assert.Equal(t, []string{StepMonitor, StepDeadlines, StepRegulations}, flow.Steps())
}

func TestFlowRetrievesWhenQueryPresent(t *testing.T) {
	retriever := &fakeRetriever{answer: "Section 194I: 10%"}
	flow := newTestFlow(t, retriever)

	st, err := flow.Run(context.Background(), "TDS on rent")
	require.NoError(t, err)
	assert.Equal(t, "Section 194I: 10%", st.RegulationResult)
	assert.Equal(t, []string{"TDS on rent"}, retriever.queries)
}

func TestFlowPropagatesRetrieverError(t *testing.T) {
	flow := newTestFlow(t, &fakeRetriever{err: errors.New("embedder down")})

	_, err := flow.Run(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), StepRegulations)
}

func TestNewFlowValidation(t *testing.T) {
	_, err := NewFlow(nil, nil, nil)
	assert.ErrorIs(t, err, ErrFlowIncomplete)
}

func TestCheckerFormatsPrompt(t *testing.T) {
	gen := mock.NewGenerator("No violations found.")
	checker := NewChecker(gen)

	got, err := checker.Check(context.Background(), []map[string]any{{"amount": 50000, "gst_rate": 0}})
	require.NoError(t, err)
	assert.Equal(t, "No violations found.", got)
	assert.Equal(t,
		`Given this transaction data: [{"amount":50000,"gst_rate":0}], check for any Indian tax violations and summarize findings.`,
		gen.Prompts()[0])
}

func TestCheckerWithoutGenerator(t *testing.T) {
	got, err := NewChecker(nil).Check(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, knowledge.NotConfiguredMessage, got)
}
