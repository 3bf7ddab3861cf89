// Package seed copies the compiled-in default content into empty tables
// so operators start editing from the content the site already shows.
package seed

import (
	"context"
	"fmt"

	"github.com/primal-host/primal-site/internal/content"
	"github.com/primal-host/primal-site/internal/store"
	"go.uber.org/zap"
)

// Result counts rows inserted per content type. Types that already had
// rows are reported with 0.
type Result map[string]int

// Total returns the number of inserted rows.
func (r Result) Total() int {
	n := 0
	for _, c := range r {
		n += c
	}
	return n
}

// Run inserts defaults into every public type whose table is empty.
// Running it again inserts nothing.
func Run(ctx context.Context, s store.Store, reg *content.Registry, defaults content.Defaults, log *zap.Logger) (Result, error) {
	log = log.Named("seed")
	res := Result{}
	for _, t := range reg.Public() {
		existing, err := s.Select(ctx, t, store.Query{Limit: 1})
		if err != nil {
			return res, fmt.Errorf("seed: check %s: %w", t.Key, err)
		}
		if len(existing) > 0 {
			res[t.Key] = 0
			log.Debug("table not empty, skipping", zap.String("type", t.Key))
			continue
		}
		for _, it := range defaults.For(t.Key) {
			row := content.Item{Fields: it.Fields.Clone(), Position: it.Position, IsActive: true}
			if _, err := s.Insert(ctx, t, row); err != nil {
				return res, fmt.Errorf("seed: insert %s: %w", t.Key, err)
			}
			res[t.Key]++
		}
		log.Info("seeded defaults", zap.String("type", t.Key), zap.Int("rows", res[t.Key]))
	}
	return res, nil
}
