// Package harness runs metric query compile scenarios end to end.
//
// A scenario loads a directory of CUE explores into an in-memory store,
// compiles a sequence of metric queries through the project service and
// checks each outcome. The resulting trace is compared against golden
// snapshots.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	explores: ../explores       # CUE directory, relative to the scenario file
//	explore: orders
//	flow:
//	  - name: revenue_per_order
//	    query:
//	      dimensions: [orders_status]
//	      metrics: [orders_amount]
//	      table_calculations:
//	        - name: per_order
//	          display_name: Per order
//	          sql: ${orders.amount} / 2
//	    expect:
//	      table_calculations:
//	        per_order: '"orders_amount" / 2'
//	  - name: bad_reference
//	    query: { ... }
//	    expect:
//	      error: unresolved_reference
//	      contains: "isn't included in the query"
//	assertions:
//	  - type: outcome_count
//	    outcome: error
//	    count: 1
//
// A step with save_chart stores the query as a saved chart first and then
// compiles the chart by uuid, exercising the chart path of the service.
//
// # Assertion Types
//
//   - step_outcome: a named step finished with the given outcome (ok or error)
//   - outcome_count: exactly N steps finished with the given outcome
//   - same_fingerprint: the listed steps compiled to identical output
//
// # Deterministic Testing
//
// Every scenario runs against a fresh in-memory SQLite store with a
// sequential clock and fixed chart uuids, so traces are byte-identical
// across runs. Fingerprints are checked by assertions but kept out of the
// golden snapshot.
package harness
