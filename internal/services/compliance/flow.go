package compliance

import (
	"context"
	"errors"
	"strings"

	"agentic-reconciliation-backend/internal/pipeline"
)

// Step names, in execution order.
const (
	StepMonitor     = "document_monitor"
	StepDeadlines   = "deadline_tracker"
	StepRegulations = "regulation_retriever"
)

// ErrFlowIncomplete is returned when a Flow collaborator is missing.
var ErrFlowIncomplete = errors.New("compliance: monitor, deadline tracker and retriever are required")

// Retriever answers regulation questions.
type Retriever interface {
	Retrieve(ctx context.Context, query string) (string, error)
}

// State is carried through one compliance run.
type State struct {
	RegulationQuery  string     `json:"regulation_query,omitempty"`
	Days             int        `json:"days"`
	DocumentStatus   string     `json:"document_status"`
	Deadlines        []Deadline `json:"deadlines"`
	RegulationResult string     `json:"regulation_result,omitempty"`
}

// Flow runs document monitor → deadline tracker → regulation retriever. The
// last step only runs when a query is present.
type Flow struct {
	runner *pipeline.Runner[State]
}

func NewFlow(monitor *Monitor, deadlines *DeadlineTracker, regulations Retriever) (*Flow, error) {
	if monitor == nil || deadlines == nil || regulations == nil {
		return nil, ErrFlowIncomplete
	}

	runner, err := pipeline.New("compliance",
		pipeline.Step[State]{Name: StepMonitor, Run: func(ctx context.Context, st *State) error {
			n, err := monitor.Scan(ctx)
			if err != nil {
				return err
			}
			st.DocumentStatus = StatusMessage(n)
			return nil
		}},
		pipeline.Step[State]{Name: StepDeadlines, Run: func(ctx context.Context, st *State) error {
			events, err := deadlines.Upcoming(st.Days)
			if err != nil {
				return err
			}
			st.Deadlines = events
			return nil
		}},
		pipeline.Step[State]{
			Name: StepRegulations,
			When: func(st *State) bool { return strings.TrimSpace(st.RegulationQuery) != "" },
			Run: func(ctx context.Context, st *State) error {
				answer, err := regulations.Retrieve(ctx, st.RegulationQuery)
				if err != nil {
					return err
				}
				st.RegulationResult = answer
				return nil
			},
		},
	)
	if err != nil {
		return nil, err
	}
	return &Flow{runner: runner}, nil
}

// Run executes one compliance pass. An empty query skips regulation retrieval.
func (f *Flow) Run(ctx context.Context, query string) (*State, error) {
	st := &State{RegulationQuery: query, Days: DefaultDeadlineDays}
	if err := f.runner.Run(ctx, st); err != nil {
		return st, err
	}
	return st, nil
}

// Steps returns the step names in execution order.
func (f *Flow) Steps() []string {
	return f.runner.Steps()
}
