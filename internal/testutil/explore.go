package testutil

import "github.com/ataft/lightdash/internal/ir"

// OrdersExplore returns a fresh two-table explore used across package tests.
//
//	orders:    dimensions id, status, created_at; metrics amount (sum), order_count (count)
//	customers: dimensions id, name;               metrics lifetime_value (sum)
//
// Callers may mutate the result.
func OrdersExplore() *ir.Explore {
	return &ir.Explore{
		Name:           "orders",
		Label:          "Orders",
		BaseTable:      "orders",
		TargetDatabase: ir.WarehousePostgres,
		Tables: map[string]*ir.Table{
			"orders": {
				Name:     "orders",
				Label:    "Orders",
				SQLTable: `"public"."orders"`,
				Dimensions: map[string]ir.Dimension{
					"id":         dimension("orders", "Orders", "id", ir.DimensionNumber),
					"status":     dimension("orders", "Orders", "status", ir.DimensionString),
					"created_at": dimension("orders", "Orders", "created_at", ir.DimensionTimestamp),
				},
				Metrics: map[string]ir.Metric{
					"amount":      metric("orders", "Orders", "amount", ir.MetricSum, "${TABLE}.amount"),
					"order_count": metric("orders", "Orders", "order_count", ir.MetricCount, ""),
				},
			},
			"customers": {
				Name:     "customers",
				Label:    "Customers",
				SQLTable: `"public"."customers"`,
				Dimensions: map[string]ir.Dimension{
					"id":   dimension("customers", "Customers", "id", ir.DimensionNumber),
					"name": dimension("customers", "Customers", "name", ir.DimensionString),
				},
				Metrics: map[string]ir.Metric{
					"lifetime_value": metric("customers", "Customers", "lifetime_value", ir.MetricSum, "${TABLE}.lifetime_value"),
				},
			},
		},
	}
}

// ExploreCUE is OrdersExplore written as a CUE explore file.
const ExploreCUE = `
explore: orders: {
	label:           "Orders"
	target_database: "postgres"
	base_table:      "orders"
	tables: {
		orders: {
			label:     "Orders"
			sql_table: "\"public\".\"orders\""
			dimensions: {
				id: type:         "number"
				status: type:     "string"
				created_at: type: "timestamp"
			}
			metrics: {
				amount: {type: "sum", column: "amount"}
				order_count: type: "count"
			}
		}
		customers: {
			label:     "Customers"
			sql_table: "\"public\".\"customers\""
			dimensions: {
				id: type:   "number"
				name: type: "string"
			}
			metrics: {
				lifetime_value: {type: "sum", sql: "${TABLE}.lifetime_value"}
			}
		}
	}
}
`

func dimension(table, tableLabel, name string, typ ir.DimensionType) ir.Dimension {
	return ir.Dimension{
		Type:       typ,
		Name:       name,
		Label:      name,
		Table:      table,
		TableLabel: tableLabel,
		SQL:        "${TABLE}." + name,
	}
}

func metric(table, tableLabel, name string, typ ir.MetricType, sql string) ir.Metric {
	return ir.Metric{
		Type:       typ,
		Name:       name,
		Label:      name,
		Table:      table,
		TableLabel: tableLabel,
		SQL:        sql,
	}
}
