// Package dialect maps warehouse types to their SQL identifier quoting.
//
// The compiler core is dialect-agnostic: it only needs the single character
// used to wrap resolved field ids. This package is the lookup it consults.
package dialect

import (
	"fmt"
	"strings"

	"github.com/ataft/lightdash/internal/ir"
)

// Dialect describes identifier quoting for one warehouse.
type Dialect struct {
	Type           ir.WarehouseType
	IdentQuoteChar string
}

// quoteChars holds the identifier quote character per warehouse.
var quoteChars = map[ir.WarehouseType]string{
	ir.WarehousePostgres:   `"`,
	ir.WarehouseRedshift:   `"`,
	ir.WarehouseSnowflake:  `"`,
	ir.WarehouseTrino:      `"`,
	ir.WarehouseDuckDB:     `"`,
	ir.WarehouseSQLite:     `"`,
	ir.WarehouseClickHouse: `"`,
	ir.WarehouseBigQuery:   "`",
	ir.WarehouseDatabricks: "`",
	ir.WarehouseMySQL:      "`",
}

// UnsupportedError is returned for a warehouse type with no known dialect.
type UnsupportedError struct {
	Warehouse ir.WarehouseType
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("unsupported warehouse type %q", string(e.Warehouse))
}

// Lookup returns the dialect for a warehouse type.
// Matching is case-insensitive; an empty type falls back to postgres.
func Lookup(warehouse ir.WarehouseType) (*Dialect, error) {
	if warehouse == "" {
		warehouse = ir.WarehousePostgres
	}
	normalized := ir.WarehouseType(strings.ToLower(string(warehouse)))
	q, ok := quoteChars[normalized]
	if !ok {
		return nil, &UnsupportedError{Warehouse: warehouse}
	}
	return &Dialect{Type: normalized, IdentQuoteChar: q}, nil
}

// QuoteChar returns the identifier quote character for a warehouse type.
func QuoteChar(warehouse ir.WarehouseType) (string, error) {
	d, err := Lookup(warehouse)
	if err != nil {
		return "", err
	}
	return d.IdentQuoteChar, nil
}

// QuoteIdent wraps an identifier in the dialect's quote character,
// doubling any embedded quote characters.
func (d *Dialect) QuoteIdent(ident string) string {
	q := d.IdentQuoteChar
	return q + strings.ReplaceAll(ident, q, q+q) + q
}
