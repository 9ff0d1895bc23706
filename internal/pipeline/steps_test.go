package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/bankrotscan/internal/database"
	"github.com/nao1215/bankrotscan/internal/log"
	"github.com/nao1215/bankrotscan/internal/model"
	"github.com/nao1215/bankrotscan/internal/node"
)

// fakeSource serves fixed pages per kind and builds records straight from
// list items.
type fakeSource struct {
	pages   map[model.Kind][][]node.Node
	pageErr error

	// onEnrich runs after every enrichment.
	onEnrich func()

	mu      sync.Mutex
	offsets map[model.Kind][]int
}

func (f *fakeSource) Page(_ context.Context, kind model.Kind, offset, limit int) ([]node.Node, error) {
	f.mu.Lock()
	if f.offsets == nil {
		f.offsets = map[model.Kind][]int{}
	}
	f.offsets[kind] = append(f.offsets[kind], offset)
	f.mu.Unlock()

	if f.pageErr != nil {
		return nil, f.pageErr
	}
	idx := offset / limit
	if idx >= len(f.pages[kind]) {
		return nil, nil
	}
	return f.pages[kind][idx], nil
}

func (f *fakeSource) EnrichLegal(_ context.Context, item node.Node) (*model.LegalEntityRecord, []model.StepResult) {
	defer f.enriched()
	guid := item.String("guid")
	rec := &model.LegalEntityRecord{
		GUID:      guid,
		FullName:  item.String("name"),
		SourceURL: "https://fedresurs.ru/company/" + guid,
	}
	return rec, []model.StepResult{
		model.Filled("detail"),
		model.Failed("biddings", errors.New("timeout")),
	}
}

func (f *fakeSource) EnrichIndividual(_ context.Context, item node.Node) (*model.IndividualRecord, []model.StepResult) {
	defer f.enriched()
	guid := item.String("guid")
	return &model.IndividualRecord{
		GUID:      guid,
		FullName:  item.String("name"),
		SourceURL: "https://fedresurs.ru/person/" + guid,
	}, []model.StepResult{model.Filled("detail")}
}

func (f *fakeSource) enriched() {
	if f.onEnrich != nil {
		f.onEnrich()
	}
}

func (f *fakeSource) offsetsOf(kind model.Kind) []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.offsets[kind]...)
}

// page builds list items; an empty guid produces an item without one.
func page(guids ...string) []node.Node {
	items := make([]node.Node, 0, len(guids))
	for _, g := range guids {
		m := map[string]any{"name": "Name " + g}
		if g != "" {
			m["guid"] = g
		}
		items = append(items, node.Of(m))
	}
	return items
}

func newTestCollect(src Source, opts ...CollectOption) *CollectStep {
	base := []CollectOption{WithPace(0), WithCollectLogger(log.Discard())}
	return NewCollectStep(src, append(base, opts...)...)
}

func TestCollectStep_StopsAtTarget(t *testing.T) {
	t.Parallel()

	src := &fakeSource{pages: map[model.Kind][][]node.Node{
		model.KindLegal: {page("a", "b", "c"), page("d", "e", "f")},
	}}
	step := newTestCollect(src, WithKinds(model.KindLegal), WithTarget(4), WithPageSize(3))

	run := model.NewRun("out.xlsx")
	if err := step.Do(context.Background(), run); err != nil {
		t.Fatalf("Do() error = %v", err)
	}

	if len(run.Legal) != 4 || run.Legal[3].GUID != "d" {
		t.Fatalf("Legal = %d records", len(run.Legal))
	}
	if got := src.offsetsOf(model.KindLegal); len(got) != 2 || got[0] != 0 || got[1] != 3 {
		t.Errorf("offsets = %v, want [0 3]", got)
	}
	st := run.StatsFor(model.KindLegal)
	if st.Pages != 2 || st.Listed != 6 || st.Enriched != 4 || st.FailedSteps != 4 {
		t.Errorf("stats = %+v", st)
	}
	if run.Interrupted {
		t.Error("run should not be interrupted")
	}
	if len(src.offsetsOf(model.KindIndividual)) != 0 {
		t.Error("individual list should not be requested")
	}
}

func TestCollectStep_EmptyPageEndsKind(t *testing.T) {
	t.Parallel()

	src := &fakeSource{pages: map[model.Kind][][]node.Node{
		model.KindIndividual: {page("p1", "p2")},
	}}
	step := newTestCollect(src, WithKinds(model.KindIndividual), WithTarget(10), WithPageSize(2))

	run := model.NewRun("out.xlsx")
	if err := step.Do(context.Background(), run); err != nil {
		t.Fatal(err)
	}
	if len(run.Individuals) != 2 {
		t.Errorf("Individuals = %d, want 2", len(run.Individuals))
	}
	if got := src.offsetsOf(model.KindIndividual); len(got) != 2 || got[1] != 2 {
		t.Errorf("offsets = %v, want [0 2]", got)
	}
	if st := run.StatsFor(model.KindIndividual); st.Pages != 2 {
		t.Errorf("Pages = %d, want 2", st.Pages)
	}
}

func TestCollectStep_SkipsItemsWithoutGUID(t *testing.T) {
	t.Parallel()

	src := &fakeSource{pages: map[model.Kind][][]node.Node{
		model.KindLegal: {page("a", "", "b")},
	}}
	step := newTestCollect(src, WithKinds(model.KindLegal), WithTarget(5), WithPageSize(3))

	run := model.NewRun("out.xlsx")
	if err := step.Do(context.Background(), run); err != nil {
		t.Fatal(err)
	}
	if len(run.Legal) != 2 {
		t.Errorf("Legal = %d, want 2", len(run.Legal))
	}
	if st := run.StatsFor(model.KindLegal); st.WithoutGUID != 1 {
		t.Errorf("WithoutGUID = %d, want 1", st.WithoutGUID)
	}
}

func TestCollectStep_PageFailureEndsKind(t *testing.T) {
	t.Parallel()

	src := &fakeSource{pageErr: errors.New("attempts exhausted")}
	step := newTestCollect(src)

	run := model.NewRun("out.xlsx")
	if err := step.Do(context.Background(), run); err != nil {
		t.Fatalf("Do() error = %v, want nil", err)
	}
	if len(run.Legal) != 0 || len(run.Individuals) != 0 {
		t.Error("expected no records")
	}
	for _, kind := range model.AllKinds {
		if got := src.offsetsOf(kind); len(got) != 1 {
			t.Errorf("%s offsets = %v, want a single request", kind, got)
		}
	}
}

func TestCollectStep_BothKinds(t *testing.T) {
	t.Parallel()

	src := &fakeSource{pages: map[model.Kind][][]node.Node{
		model.KindLegal:      {page("a", "b")},
		model.KindIndividual: {page("p1")},
	}}
	step := newTestCollect(src, WithTarget(2), WithPageSize(2), WithKindConcurrency(2))

	run := model.NewRun("out.xlsx")
	if err := step.Do(context.Background(), run); err != nil {
		t.Fatal(err)
	}
	if len(run.Legal) != 2 || len(run.Individuals) != 1 {
		t.Errorf("records = %d legal, %d individual", len(run.Legal), len(run.Individuals))
	}
	if run.StatsFor(model.KindIndividual).FailedSteps != 0 {
		t.Error("individual steps should not fail")
	}
}

func TestCollectStep_Stop(t *testing.T) {
	t.Parallel()

	t.Run("closed before start collects nothing", func(t *testing.T) {
		t.Parallel()

		stop := make(chan struct{})
		close(stop)
		src := &fakeSource{pages: map[model.Kind][][]node.Node{model.KindLegal: {page("a")}}}
		step := newTestCollect(src, WithKinds(model.KindLegal), WithStop(stop))

		run := model.NewRun("out.xlsx")
		if err := step.Do(context.Background(), run); err != nil {
			t.Fatalf("Do() error = %v, want nil", err)
		}
		if !run.Interrupted || len(run.Legal) != 0 {
			t.Errorf("interrupted = %v, records = %d", run.Interrupted, len(run.Legal))
		}
	})

	t.Run("stop during pacing keeps collected records", func(t *testing.T) {
		t.Parallel()

		stop := make(chan struct{})
		var once sync.Once
		src := &fakeSource{
			pages:    map[model.Kind][][]node.Node{model.KindLegal: {page("a", "b", "c")}},
			onEnrich: func() { once.Do(func() { close(stop) }) },
		}
		step := newTestCollect(src,
			WithKinds(model.KindLegal),
			WithTarget(3),
			WithPageSize(3),
			WithPace(time.Hour),
			WithStop(stop),
		)

		run := model.NewRun("out.xlsx")
		if err := step.Do(context.Background(), run); err != nil {
			t.Fatalf("Do() error = %v", err)
		}
		if len(run.Legal) != 1 || !run.Interrupted {
			t.Errorf("records = %d, interrupted = %v", len(run.Legal), run.Interrupted)
		}
	})
}

func TestCollectStep_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	src := &fakeSource{
		pages:    map[model.Kind][][]node.Node{model.KindLegal: {page("a", "b")}},
		onEnrich: cancel,
	}
	step := newTestCollect(src, WithKinds(model.KindLegal), WithPace(time.Hour), WithPageSize(2))

	run := model.NewRun("out.xlsx")
	err := step.Do(ctx, run)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do() error = %v, want context.Canceled", err)
	}
	if !run.Interrupted || len(run.Legal) != 1 {
		t.Errorf("interrupted = %v, records = %d", run.Interrupted, len(run.Legal))
	}
}

func TestPersistStep(t *testing.T) {
	t.Parallel()

	t.Run("writes workbook and counts", func(t *testing.T) {
		t.Parallel()

		run := model.NewRun(filepath.Join(t.TempDir(), "out.xlsx"))
		run.Legal = []*model.LegalEntityRecord{
			{GUID: "a", FullName: "A", SourceURL: "https://fedresurs.ru/company/a"},
			{GUID: "a", FullName: "A", SourceURL: "https://fedresurs.ru/company/a"},
		}
		run.Individuals = []*model.IndividualRecord{
			{GUID: "p", FullName: "P", SourceURL: "https://fedresurs.ru/person/p"},
		}

		step := NewPersistStep(log.Discard())
		if step.Name() != "persist" {
			t.Errorf("Name() = %s", step.Name())
		}
		if err := step.Do(context.Background(), run); err != nil {
			t.Fatalf("Do() error = %v", err)
		}
		if _, err := os.Stat(run.Output); err != nil {
			t.Errorf("workbook not written: %v", err)
		}
		legal := run.StatsFor(model.KindLegal)
		if legal.Added != 1 || legal.Skipped != 1 {
			t.Errorf("legal stats = %+v", legal)
		}
		if run.StatsFor(model.KindIndividual).Added != 1 {
			t.Error("expected one individual added")
		}
		if added, skipped := run.Totals(); added != 2 || skipped != 1 {
			t.Errorf("Totals() = %d, %d", added, skipped)
		}
	})

	t.Run("fails when output is not writable", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		run := model.NewRun(dir)
		if err := NewPersistStep(log.Discard()).Do(context.Background(), run); err == nil {
			t.Error("expected error when output is a directory")
		}
	})
}

type failingRecorder struct{ calls int }

func (f *failingRecorder) SaveRun(context.Context, *model.Run) (map[model.Kind]database.Delta, error) {
	f.calls++
	return nil, errors.New("database is locked")
}

func TestLedgerStep(t *testing.T) {
	t.Parallel()

	t.Run("ledger errors do not fail the run", func(t *testing.T) {
		t.Parallel()

		rec := &failingRecorder{}
		step := NewLedgerStep(rec, log.Discard())
		run := model.NewRun("out.xlsx")
		if err := step.Do(context.Background(), run); err != nil {
			t.Errorf("Do() error = %v, want nil", err)
		}
		if rec.calls != 1 {
			t.Errorf("SaveRun calls = %d", rec.calls)
		}
		if run.FinishedAt.IsZero() {
			t.Error("expected finish time to be stamped")
		}
	})

	t.Run("records run in sqlite ledger", func(t *testing.T) {
		t.Parallel()

		ledger, err := database.Open(t.TempDir(), database.DefaultOptions())
		if err != nil {
			t.Fatal(err)
		}
		defer ledger.Close()

		run := model.NewRun("out.xlsx")
		run.Legal = []*model.LegalEntityRecord{{GUID: "a", FullName: "A", SourceURL: "https://fedresurs.ru/company/a"}}
		if err := NewLedgerStep(ledger, log.Discard()).Do(context.Background(), run); err != nil {
			t.Fatal(err)
		}
		if run.StatsFor(model.KindLegal).LedgerNew != 1 {
			t.Errorf("LedgerNew = %d, want 1", run.StatsFor(model.KindLegal).LedgerNew)
		}
		runs, err := ledger.ListRuns(context.Background(), 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(runs) != 1 || runs[0].ID != run.ID {
			t.Errorf("ListRuns() = %+v", runs)
		}
	})
}

func TestCollectPersistLedgerPipeline(t *testing.T) {
	t.Parallel()

	ledger, err := database.Open(t.TempDir(), database.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	defer ledger.Close()

	src := &fakeSource{pages: map[model.Kind][][]node.Node{
		model.KindLegal:      {page("a", "b")},
		model.KindIndividual: {page("p1", "p2")},
	}}
	output := filepath.Join(t.TempDir(), "out.xlsx")

	for i := range 2 {
		p := New(WithLogger(log.Discard()), WithContinueOnError(true))
		p.AddSteps(
			newTestCollect(src, WithPageSize(2), WithTarget(2)),
			NewPersistStep(log.Discard()),
			NewLedgerStep(ledger, log.Discard()),
		)
		run := model.NewRun(output)
		if err := p.Execute(context.Background(), run); err != nil {
			t.Fatal(err)
		}
		added, skipped := run.Totals()
		if i == 0 && (added != 4 || skipped != 0) {
			t.Errorf("first run added=%d skipped=%d", added, skipped)
		}
		if i == 1 && (added != 0 || skipped != 4) {
			t.Errorf("second run added=%d skipped=%d", added, skipped)
		}
		if len(run.PerformedSteps) != 3 {
			t.Errorf("PerformedSteps = %v", run.PerformedSteps)
		}
	}
}
