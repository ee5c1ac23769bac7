package sage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"einvoice-bridge/internal/logger"
)

// ErrNoColumn signals that no candidate column exists for a logical role.
// Callers treat it as a per-role data gap, not a fatal error.
var ErrNoColumn = errors.New("no usable column")

// Prober discovers the actual column names behind logical roles at runtime.
// Sage installations disagree about schema details, so nothing here is
// hard-wired beyond ordered candidate lists. Discoveries are cached for the
// life of the process and never persisted.
type Prober struct {
	src Querier

	mu      sync.Mutex
	columns map[string][]string
	fks     map[string]string
}

func NewProber(src Querier) *Prober {
	return &Prober{
		src:     src,
		columns: make(map[string][]string),
		fks:     make(map[string]string),
	}
}

// Columns returns the cached live column list of a table.
func (p *Prober) Columns(ctx context.Context, table string) ([]string, error) {
	p.mu.Lock()
	cached, ok := p.columns[table]
	p.mu.Unlock()
	if ok {
		return cached, nil
	}

	cols, err := p.src.Columns(ctx, table)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.columns[table] = cols
	p.mu.Unlock()
	return cols, nil
}

// ResolveColumn returns the first candidate present in the table, comparing
// case-insensitively. ErrNoColumn when none match.
func (p *Prober) ResolveColumn(ctx context.Context, table string, candidates ...string) (string, error) {
	cols, err := p.Columns(ctx, table)
	if err != nil {
		return "", err
	}
	for _, cand := range candidates {
		for _, col := range cols {
			if strings.EqualFold(col, cand) {
				return col, nil
			}
		}
	}
	return "", fmt.Errorf("%w for %s among %v", ErrNoColumn, table, candidates)
}

// ResolveForeignKey finds the column of childTable that joins to the parent
// transaction key. A cached or candidate-named column is trusted only after
// a row-count sanity check against the concrete key; if it matches nothing,
// every column of the table is probed and the first with a nonzero count
// wins. The join column is not contractually guaranteed by the ODBC layer,
// so it has to be discovered empirically.
func (p *Prober) ResolveForeignKey(ctx context.Context, childTable string, parentKey int64, candidates ...string) (string, error) {
	log := logger.WithComponent("prober")

	p.mu.Lock()
	cached := p.fks[childTable]
	p.mu.Unlock()

	try := func(col string) bool {
		count, err := p.src.CountRows(ctx, childTable, col, parentKey)
		return err == nil && count > 0
	}

	if cached != "" && try(cached) {
		return cached, nil
	}

	if col, err := p.ResolveColumn(ctx, childTable, candidates...); err == nil {
		if try(col) {
			p.remember(childTable, col)
			return col, nil
		}
		log.Debug().Str("table", childTable).Str("column", col).Int64("key", parentKey).
			Msg("default fk column matched no rows, probing all columns")
	}

	cols, err := p.Columns(ctx, childTable)
	if err != nil {
		return "", err
	}
	for _, col := range cols {
		if try(col) {
			log.Debug().Str("table", childTable).Str("column", col).Int64("key", parentKey).Msg("fk column found by probe")
			p.remember(childTable, col)
			return col, nil
		}
	}
	return "", fmt.Errorf("%w: no fk column of %s matches key %d", ErrNoColumn, childTable, parentKey)
}

func (p *Prober) remember(table, col string) {
	p.mu.Lock()
	p.fks[table] = col
	p.mu.Unlock()
}
