package transform

import (
	"strings"

	"github.com/JonMunkholm/salesetl/internal/etl"
)

// DateColumnAliases lists the accepted order-date column names in priority order.
// "Order Date" normalizes to order_date while "OrderDate" normalizes to
// orderdate, so both spellings are checked.
var DateColumnAliases = []string{"order_date", "orderdate"}

var nameReplacer = strings.NewReplacer(" ", "_", "-", "_", ".", "_")

// NormalizeColumnName trims, lowercases and replaces spaces, hyphens and
// periods with underscores. It is idempotent.
func NormalizeColumnName(name string) string {
	return nameReplacer.Replace(strings.ToLower(strings.TrimSpace(name)))
}

// NormalizeColumnNames normalizes every name, preserving order.
func NormalizeColumnNames(names []string) []string {
	out := make([]string, len(names))
	for i, name := range names {
		out[i] = NormalizeColumnName(name)
	}
	return out
}

// ResolveDateColumn returns the first alias in DateColumnAliases present in names.
func ResolveDateColumn(names []string) (string, error) {
	present := make(map[string]bool, len(names))
	for _, name := range names {
		present[name] = true
	}
	for _, alias := range DateColumnAliases {
		if present[alias] {
			return alias, nil
		}
	}
	return "", etl.Errorf(etl.StageTransform, etl.ErrSchema,
		"no recognizable order-date column (looked for %s)", strings.Join(DateColumnAliases, ", "))
}
