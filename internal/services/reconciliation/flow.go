package reconciliation

import (
	"context"

	"github.com/google/uuid"

	"agentic-reconciliation-backend/internal/models"
	"agentic-reconciliation-backend/internal/pipeline"
)

// Step names, in execution order.
const (
	StepExtract  = "extractor"
	StepMatch    = "matcher"
	StepCategory = "categorizer"
	StepDetect   = "detector"
	StepApprove  = "approver"
)

// State is carried through one full reconciliation run.
type State struct {
	FileName string `json:"file_name"`
	Content  []byte `json:"-"`

	BatchID            *uuid.UUID            `json:"batch_id,omitempty"`
	InsertedIDs        []uuid.UUID           `json:"inserted_ids"`
	Transactions       []*models.Transaction `json:"transactions"`
	MatchedResults     []MatchResult         `json:"matched_results"`
	CategorizedResults []CategoryResult      `json:"categorized_results"`
	DiscrepancyResults []DiscrepancyResult   `json:"discrepancy_results"`
	Report             *Report               `json:"report,omitempty"`
}

// Pipeline builds the extractor → matcher → categorizer → detector →
// approver runner.
func (s *Service) Pipeline() (*pipeline.Runner[State], error) {
	return pipeline.New("reconciliation",
		pipeline.Step[State]{Name: StepExtract, Run: func(ctx context.Context, st *State) error {
			res, err := s.Extract(ctx, st.FileName, st.Content)
			if err != nil {
				return err
			}
			st.BatchID = res.BatchID
			st.InsertedIDs = res.InsertedIDs
			st.Transactions = res.Transactions
			return nil
		}},
		pipeline.Step[State]{Name: StepMatch, Run: func(ctx context.Context, st *State) error {
			res, err := s.MatchInvoices(ctx, st.Transactions)
			st.MatchedResults = res
			return err
		}},
		pipeline.Step[State]{Name: StepCategory, Run: func(ctx context.Context, st *State) error {
			res, err := s.Categorize(ctx, st.Transactions)
			st.CategorizedResults = res
			return err
		}},
		pipeline.Step[State]{Name: StepDetect, Run: func(ctx context.Context, st *State) error {
			res, err := s.DetectDiscrepancies(ctx, st.Transactions)
			st.DiscrepancyResults = res
			return err
		}},
		pipeline.Step[State]{Name: StepApprove, Run: func(ctx context.Context, st *State) error {
			report, err := s.Approve(ctx, st.Transactions)
			st.Report = report
			return err
		}},
	)
}

// Reconcile runs the whole pipeline over one uploaded file.
func (s *Service) Reconcile(ctx context.Context, filename string, content []byte) (*State, error) {
	runner, err := s.Pipeline()
	if err != nil {
		return nil, err
	}
	st := &State{FileName: filename, Content: content}
	if err := runner.Run(ctx, st); err != nil {
		return st, err
	}
	return st, nil
}
