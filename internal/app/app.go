// Package app assembles the services behind the HTTP server and the CLI
// from one configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"agentic-reconciliation-backend/internal/ai"
	"agentic-reconciliation-backend/internal/config"
	"agentic-reconciliation-backend/internal/knowledge"
	"agentic-reconciliation-backend/internal/repository"
	"agentic-reconciliation-backend/internal/services/compliance"
	"agentic-reconciliation-backend/internal/services/invoices"
	"agentic-reconciliation-backend/internal/services/reconciliation"
)

// Knowledge namespaces inside the shared Badger store.
const (
	InvoiceNamespace    = "invoices"
	RegulationNamespace = "regulations"
	DocumentNamespace   = "documents"
)

// ErrPipelineDisabled is returned by callers that need the reconciliation
// pipeline when no generation model is configured.
var ErrPipelineDisabled = errors.New("reconciliation pipeline requires a generation model")

// App owns every long-lived component. Close releases them in reverse
// order of construction. Reconciliation is nil when the provider has no
// generation model.
type App struct {
	Config *config.Config
	Store  repository.Store

	Reconciliation *reconciliation.Service
	Invoices       *invoices.Service
	Compliance     *compliance.Flow
	Checker        *compliance.Checker
	Regulations    *knowledge.Retriever
	Deadlines      *compliance.DeadlineTracker

	closers []func() error
	logger  *slog.Logger
}

// New wires the application. The caller keeps ownership of store and
// provider.
func New(ctx context.Context, cfg *config.Config, store repository.Store, provider ai.Provider) (_ *App, err error) {
	a := &App{
		Config: cfg,
		Store:  store,
		logger: slog.Default().With("component", "app"),
	}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	backend, err := knowledge.OpenBackend(cfg.Knowledge.Path, cfg.Knowledge.Path == "")
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, backend.Close)

	invoiceIndex, err := knowledge.NewIndex(backend, InvoiceNamespace)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, invoiceIndex.Close)

	regulationIndex, err := knowledge.NewIndex(backend, RegulationNamespace)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, regulationIndex.Close)

	ledger, err := knowledge.NewLedger(backend, DocumentNamespace)
	if err != nil {
		return nil, err
	}

	generator := provider.Generator()
	embedder := provider.Embedder()
	retrieval := []knowledge.Option{
		knowledge.WithThreshold(cfg.Knowledge.Threshold),
		knowledge.WithTopK(cfg.Knowledge.TopK),
	}

	invoiceRetriever, err := knowledge.NewRetriever(embedder, invoiceIndex, generator, retrieval...)
	if err != nil {
		return nil, fmt.Errorf("invoice retriever: %w", err)
	}
	a.Regulations, err = compliance.NewRegulationRetriever(embedder, regulationIndex, generator, retrieval...)
	if err != nil {
		return nil, fmt.Errorf("regulation retriever: %w", err)
	}

	if generator != nil {
		a.Reconciliation, err = reconciliation.NewService(reconciliation.Deps{
			Transactions: store,
			Invoices:     store,
			Logs:         store,
			Retriever:    invoiceRetriever,
			Generator:    generator,
		},
			reconciliation.WithConcurrency(cfg.Pipeline.Concurrency),
			reconciliation.WithMaxCandidates(cfg.Pipeline.MaxCandidates),
		)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error {
			a.Reconciliation.Release()
			return nil
		})
	} else {
		a.logger.Warn("no generation model configured, reconciliation pipeline disabled")
	}

	a.Invoices = invoices.NewService(store, invoiceRetriever)

	monitor, err := compliance.NewMonitor(a.Regulations, ledger, cfg.Compliance.WatchDirs...)
	if err != nil {
		return nil, err
	}
	a.Deadlines = compliance.NewDeadlineTracker(cfg.Compliance.CalendarPath, nil)
	a.Compliance, err = compliance.NewFlow(monitor, a.Deadlines, a.Regulations)
	if err != nil {
		return nil, err
	}
	a.Checker = compliance.NewChecker(generator)

	a.logger.Info("application ready",
		"knowledge_path", cfg.Knowledge.Path,
		"concurrency", cfg.Pipeline.Concurrency,
		"watch_dirs", cfg.Compliance.WatchDirs,
	)
	return a, nil
}

// Close releases the worker pool, indexes and knowledge store.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
