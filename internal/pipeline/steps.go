package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/bankrotscan/internal/database"
	"github.com/nao1215/bankrotscan/internal/model"
	"github.com/nao1215/bankrotscan/internal/node"
	"github.com/nao1215/bankrotscan/internal/workbook"
)

// Defaults for CollectStep.
const (
	DefaultTarget          = 50
	DefaultPageSize        = 15
	DefaultPace            = 1500 * time.Millisecond
	DefaultKindConcurrency = 1
)

// errStopped reports a cooperative stop between items.
var errStopped = errors.New("collection stopped")

// Source lists and enriches registry items. registry.Client implements
// it.
type Source interface {
	Page(ctx context.Context, kind model.Kind, offset, limit int) ([]node.Node, error)
	EnrichLegal(ctx context.Context, item node.Node) (*model.LegalEntityRecord, []model.StepResult)
	EnrichIndividual(ctx context.Context, item node.Node) (*model.IndividualRecord, []model.StepResult)
}

// CollectStep pages through the registry list of each kind and enriches
// items until the per-kind target is reached, the list ends, or the run
// is stopped.
type CollectStep struct {
	source      Source
	kinds       []model.Kind
	target      int
	pageSize    int
	pace        time.Duration
	concurrency int

	// stop ends collection between items when closed; what was collected
	// so far is kept.
	stop <-chan struct{}

	logger *slog.Logger
}

// CollectOption configures a CollectStep.
type CollectOption func(*CollectStep)

// WithKinds sets the record kinds to collect, in order.
func WithKinds(kinds ...model.Kind) CollectOption {
	return func(s *CollectStep) {
		if len(kinds) > 0 {
			s.kinds = kinds
		}
	}
}

// WithTarget sets the number of records to collect per kind.
func WithTarget(n int) CollectOption {
	return func(s *CollectStep) {
		if n > 0 {
			s.target = n
		}
	}
}

// WithPageSize sets the list page size.
func WithPageSize(n int) CollectOption {
	return func(s *CollectStep) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithPace sets the delay after each enriched item. Zero disables it.
func WithPace(d time.Duration) CollectOption {
	return func(s *CollectStep) {
		if d >= 0 {
			s.pace = d
		}
	}
}

// WithKindConcurrency sets how many kinds are collected at once.
func WithKindConcurrency(n int) CollectOption {
	return func(s *CollectStep) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithStop sets a channel whose closing stops collection between items.
func WithStop(stop <-chan struct{}) CollectOption {
	return func(s *CollectStep) {
		s.stop = stop
	}
}

// WithCollectLogger sets a custom logger for the collect step.
func WithCollectLogger(logger *slog.Logger) CollectOption {
	return func(s *CollectStep) {
		s.logger = logger
	}
}

// NewCollectStep creates a collect step reading from source.
func NewCollectStep(source Source, opts ...CollectOption) *CollectStep {
	s := &CollectStep{
		source:      source,
		kinds:       model.AllKinds,
		target:      DefaultTarget,
		pageSize:    DefaultPageSize,
		pace:        DefaultPace,
		concurrency: DefaultKindConcurrency,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *CollectStep) Name() string {
	return "collect"
}

// Do collects every configured kind and stores the records in run.
func (s *CollectStep) Do(ctx context.Context, run *model.Run) error {
	stats := make(map[model.Kind]*model.KindStats, len(s.kinds))
	for _, kind := range s.kinds {
		stats[kind] = run.StatsFor(kind)
	}

	results, err := s.collectAll(ctx, stats)
	for _, res := range results {
		switch res.kind {
		case model.KindLegal:
			run.Legal = append(run.Legal, res.legal...)
		case model.KindIndividual:
			run.Individuals = append(run.Individuals, res.individuals...)
		}
		if res.interrupted {
			run.Interrupted = true
		}
	}
	if err != nil {
		run.Interrupted = true
		return fmt.Errorf("collect: %w", err)
	}
	return nil
}

// collectKind runs the paginator and enricher for one kind. Items are
// processed sequentially; a page that fails to load ends the kind like
// an empty page does.
func (s *CollectStep) collectKind(ctx context.Context, kind model.Kind, stats *model.KindStats) (kindResult, error) {
	var res kindResult
	collected := 0

	halt := func(err error) (kindResult, error) {
		res.interrupted = true
		if errors.Is(err, errStopped) {
			s.logger.Info("collection stopped", "kind", kind, "collected", collected)
			return res, nil
		}
		return res, err
	}

	for offset := 0; collected < s.target; offset += s.pageSize {
		if err := s.check(ctx); err != nil {
			return halt(err)
		}

		items, err := s.source.Page(ctx, kind, offset, s.pageSize)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return halt(ctxErr)
			}
			s.logger.Warn("list page failed", "kind", kind, "offset", offset, "error", err)
			return res, nil
		}
		stats.Pages++
		if len(items) == 0 {
			s.logger.Debug("end of list", "kind", kind, "offset", offset)
			return res, nil
		}
		stats.Listed += len(items)

		for _, item := range items {
			if collected >= s.target {
				break
			}
			if err := s.check(ctx); err != nil {
				return halt(err)
			}
			if item.String("guid") == "" {
				stats.WithoutGUID++
				s.logger.Debug("list item without guid skipped", "kind", kind, "offset", offset)
				continue
			}

			title, steps := s.enrich(ctx, kind, item, &res)
			collected++
			stats.Enriched++
			failed := model.CountFailed(steps)
			stats.FailedSteps += failed

			s.logger.Info(fmt.Sprintf("[%d/%d] %s: %s", collected, s.target, kind.Label(), title),
				"kind", kind,
				"failed_steps", failed,
			)

			if collected < s.target {
				if err := s.wait(ctx); err != nil {
					return halt(err)
				}
			}
		}
	}
	return res, nil
}

// enrich builds the record for item and appends it to res.
func (s *CollectStep) enrich(ctx context.Context, kind model.Kind, item node.Node, res *kindResult) (string, []model.StepResult) {
	if kind == model.KindIndividual {
		rec, steps := s.source.EnrichIndividual(ctx, item)
		res.individuals = append(res.individuals, rec)
		return rec.Title(), steps
	}
	rec, steps := s.source.EnrichLegal(ctx, item)
	res.legal = append(res.legal, rec)
	return rec.Title(), steps
}

// check returns errStopped or the context error when collection must end.
func (s *CollectStep) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-s.stop:
		return errStopped
	default:
		return nil
	}
}

// wait sleeps for the pacing delay unless stopped or cancelled first.
func (s *CollectStep) wait(ctx context.Context) error {
	if s.pace <= 0 {
		return s.check(ctx)
	}
	timer := time.NewTimer(s.pace)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stop:
		return errStopped
	case <-timer.C:
		return nil
	}
}

// PersistStep appends the collected records to the workbook at the run's
// output path. A failure here fails the run.
type PersistStep struct {
	logger *slog.Logger
}

// NewPersistStep creates a persist step.
func NewPersistStep(logger *slog.Logger) *PersistStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &PersistStep{logger: logger}
}

// Name returns the step name.
func (s *PersistStep) Name() string {
	return "persist"
}

// Do writes run's records and stores added and skipped counts.
func (s *PersistStep) Do(_ context.Context, run *model.Run) error {
	res, err := workbook.Persist(run.Output, run.Legal, run.Individuals, workbook.WithLogger(s.logger))
	if err != nil {
		return fmt.Errorf("persist workbook: %w", err)
	}
	for _, kind := range model.AllKinds {
		st := run.StatsFor(kind)
		st.Added = res.Added(kind)
		st.Skipped = res.Skipped(kind)
	}
	return nil
}

// RunRecorder stores a finished run. database.Ledger implements it.
type RunRecorder interface {
	SaveRun(ctx context.Context, run *model.Run) (map[model.Kind]database.Delta, error)
}

// LedgerStep records the run in the ledger. Ledger errors are logged and
// never fail the run.
type LedgerStep struct {
	ledger RunRecorder
	logger *slog.Logger
}

// NewLedgerStep creates a ledger step.
func NewLedgerStep(ledger RunRecorder, logger *slog.Logger) *LedgerStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &LedgerStep{ledger: ledger, logger: logger}
}

// Name returns the step name.
func (s *LedgerStep) Name() string {
	return "ledger"
}

// Do stamps the finish time and saves run.
func (s *LedgerStep) Do(ctx context.Context, run *model.Run) error {
	if run.FinishedAt.IsZero() {
		run.Finish()
	}
	deltas, err := s.ledger.SaveRun(ctx, run)
	if err != nil {
		s.logger.Warn("failed to record run in ledger", "run", run.ID, "error", err)
		return nil
	}
	for _, kind := range model.AllKinds {
		d := deltas[kind]
		s.logger.Debug("ledger updated",
			"kind", kind,
			"new", d.New,
			"changed", d.Changed,
			"unchanged", d.Unchanged,
		)
	}
	return nil
}
