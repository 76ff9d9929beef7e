package compiler

import (
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ataft/lightdash/internal/ir"
	"github.com/ataft/lightdash/internal/testutil"
)

func compileExploreString(t *testing.T, src, name string) (*ir.Explore, error) {
	t.Helper()
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename("explore.cue"))
	require.NoError(t, v.Err())
	return CompileExplore(v.LookupPath(cue.ParsePath("explore." + name)))
}

func TestCompileExploreBasic(t *testing.T) {
	explore, err := compileExploreString(t, testutil.ExploreCUE, "orders")
	require.NoError(t, err)

	assert.Equal(t, "orders", explore.Name)
	assert.Equal(t, "Orders", explore.Label)
	assert.Equal(t, "orders", explore.BaseTable)
	assert.Equal(t, ir.WarehousePostgres, explore.TargetDatabase)
	assert.Equal(t, []string{"customers", "orders"}, explore.TableNames())

	orders := explore.Tables["orders"]
	assert.Equal(t, `"public"."orders"`, orders.SQLTable)

	status := orders.Dimensions["status"]
	assert.Equal(t, ir.DimensionString, status.Type)
	assert.Equal(t, "${TABLE}.status", status.SQL)
	assert.Equal(t, "Status", status.Label)
	assert.Equal(t, "orders", status.Table)
	assert.Equal(t, "Orders", status.TableLabel)

	createdAt := orders.Dimensions["created_at"]
	assert.Equal(t, ir.DimensionTimestamp, createdAt.Type)
	assert.Equal(t, "Created At", createdAt.Label)

	amount := orders.Metrics["amount"]
	assert.Equal(t, ir.MetricSum, amount.Type)
	assert.Equal(t, "${TABLE}.amount", amount.SQL)
	assert.Equal(t, "Sum of Amount", amount.Description)

	count := orders.Metrics["order_count"]
	assert.Equal(t, ir.MetricCount, count.Type)
	assert.Equal(t, "", count.SQL)

	assert.Equal(t, []ir.FieldID{
		"customers_id", "customers_name", "customers_lifetime_value",
		"orders_created_at", "orders_id", "orders_status", "orders_amount", "orders_order_count",
	}, explore.FieldIDs().Ordered())
}

func TestCompileExploreDefaultsAndOptionalFields(t *testing.T) {
	explore, err := compileExploreString(t, `
		explore: web_events: {
			base_table: "events"
			tags: ["web", "core"]
			tables: events: {
				description: "Raw events"
				dimensions: kind: {sql: "lower(${TABLE}.kind)", hidden: true}
				metrics: revenue: {type: "sum", column: "revenue", round: 2, format: "usd", label: "Revenue $"}
			}
		}
	`, "web_events")
	require.NoError(t, err)

	assert.Equal(t, "Web Events", explore.Label)
	assert.Equal(t, ir.WarehouseType(""), explore.TargetDatabase)
	assert.Equal(t, []string{"web", "core"}, explore.Tags)

	events := explore.Tables["events"]
	assert.Equal(t, "Events", events.Label)
	assert.Equal(t, "Raw events", events.Description)

	kind := events.Dimensions["kind"]
	assert.Equal(t, ir.DimensionString, kind.Type)
	assert.Equal(t, "lower(${TABLE}.kind)", kind.SQL)
	assert.True(t, kind.Hidden)

	revenue := events.Metrics["revenue"]
	require.NotNil(t, revenue.Round)
	assert.Equal(t, 2, *revenue.Round)
	assert.Equal(t, "usd", revenue.Format)
	assert.Equal(t, "Revenue $", revenue.Label)
}

func TestCompileExploreMetricReferencesOtherTable(t *testing.T) {
	explore, err := compileExploreString(t, `
		explore: orders: {
			base_table: "orders"
			tables: {
				orders: metrics: weighted: {type: "number", sql: "${orders.amount} * ${customers.weight}"}
				orders: metrics: amount: {type: "sum", column: "amount"}
				customers: dimensions: weight: type: "number"
			}
		}
	`, "orders")
	require.NoError(t, err)
	assert.Contains(t, explore.Tables["orders"].Metrics, "weighted")
}

func TestCompileExploreErrors(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		kind     ErrorKind
		contains string
	}{
		{
			name:     "missing base table",
			src:      `explore: e: tables: t: dimensions: d: type: "string"`,
			kind:     KindCUE,
			contains: "base_table is required",
		},
		{
			name:     "no tables",
			src:      `explore: e: base_table: "t"`,
			kind:     KindCUE,
			contains: "at least one table is required",
		},
		{
			name:     "invalid dimension type",
			src:      `explore: e: {base_table: "t", tables: t: dimensions: d: type: "float"}`,
			kind:     KindCUE,
			contains: `invalid dimension type "float"`,
		},
		{
			name:     "invalid metric type",
			src:      `explore: e: {base_table: "t", tables: t: metrics: m: type: "median"}`,
			kind:     KindInvalidMetric,
			contains: `"median"`,
		},
		{
			name:     "metric references unknown field",
			src:      `explore: e: {base_table: "t", tables: t: metrics: m: {type: "sum", sql: "${t.nope}"}}`,
			kind:     KindUnresolvedReference,
			contains: "t.nope",
		},
		{
			name:     "unsupported warehouse",
			src:      `explore: e: {base_table: "t", target_database: "oracle", tables: t: dimensions: d: type: "string"}`,
			kind:     KindUnsupportedWarehouse,
			contains: "oracle",
		},
		{
			name:     "non-string label",
			src:      `explore: e: {base_table: "t", label: 3, tables: t: dimensions: d: type: "string"}`,
			kind:     KindCUE,
			contains: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compileExploreString(t, tt.src, "e")
			require.Error(t, err)
			assert.Equal(t, tt.kind, KindOf(err))
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestCompileExploreErrorCarriesPosition(t *testing.T) {
	_, err := compileExploreString(t, `explore: e: {
	base_table: "t"
	tables: t: metrics: m: {type: "sum", sql: "${t.nope}"}
}`, "e")
	require.Error(t, err)

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	require.True(t, ce.Pos.IsValid())
	assert.Equal(t, "explore.cue", ce.Pos.Filename())
	assert.Equal(t, 3, ce.Pos.Line())
}
