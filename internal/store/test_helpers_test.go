package store

import (
	"path/filepath"
	"testing"

	"github.com/ataft/lightdash/internal/ir"
	"github.com/ataft/lightdash/internal/testutil"
)

// createTestStore creates a file-backed store with deterministic ids and seqs.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path,
		WithClock(testutil.NewSeqClock(0)),
		WithIDGenerator(testutil.NewFixedIDGenerator()),
	)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// testExplore returns the shared fixture explore renamed to name.
func testExplore(name string) *ir.Explore {
	e := testutil.OrdersExplore()
	e.Name = name
	return e
}

func testQuery() ir.MetricQuery {
	return ir.MetricQuery{
		Dimensions: []ir.FieldID{"orders_status"},
		Metrics:    []ir.FieldID{"orders_amount"},
		Sorts:      []ir.SortField{{FieldID: "orders_amount", Descending: true}},
		Limit:      500,
		TableCalculations: []ir.TableCalculation{
			{Name: "total_plus_tax", DisplayName: "Total plus tax", SQL: "${orders.amount} * 1.1"},
		},
	}
}
