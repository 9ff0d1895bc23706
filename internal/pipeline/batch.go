package pipeline

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/bankrotscan/internal/model"
)

// kindResult holds what one kind collector produced. Only the slice
// matching the kind is used.
type kindResult struct {
	kind        model.Kind
	legal       []*model.LegalEntityRecord
	individuals []*model.IndividualRecord
	interrupted bool
}

// collectAll runs one collector per kind, at most s.concurrency at a
// time. Each collector owns its stats entry and result slot, so nothing
// is shared between goroutines. Results are returned in kind order even
// when the group stops early.
func (s *CollectStep) collectAll(ctx context.Context, stats map[model.Kind]*model.KindStats) ([]kindResult, error) {
	s.logger.Info("starting collection",
		"kinds", s.kinds,
		"target", s.target,
		"page_size", s.pageSize,
		"concurrency", s.concurrency,
	)
	startTime := time.Now()

	results := make([]kindResult, len(s.kinds))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, kind := range s.kinds {
		st := stats[kind]
		g.Go(func() error {
			select {
			case <-gctx.Done():
				results[i] = kindResult{kind: kind, interrupted: true}
				return gctx.Err()
			default:
			}
			res, err := s.collectKind(gctx, kind, st)
			res.kind = kind
			results[i] = res
			return err
		})
	}

	err := g.Wait()

	s.logger.Info("collection finished",
		"kinds", s.kinds,
		"elapsed", time.Since(startTime),
	)
	return results, err
}
