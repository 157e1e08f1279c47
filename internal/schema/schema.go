// Package schema declares, per synchronized table, everything the sync
// engine needs to know: foreign keys and their parent tables, which of
// those may legitimately be NULL, which columns are stored as integer
// cents, the natural business key used for upsert-on-conflict, and the
// fixed parent-before-child processing order shared by push and pull.
package schema

import "fmt"

// Column names reserved by the engine on every synchronized local table.
const (
	ColumnLocalID    = "id"
	ColumnRemoteID   = "id_web"
	ColumnSyncStatus = "sync_status"
	ColumnModifiedAt = "last_modified_at"
)

// LocalControlColumns never leave the till; the outbound builder strips
// them from every payload.
var LocalControlColumns = []string{
	ColumnLocalID,
	ColumnRemoteID,
	ColumnSyncStatus,
	ColumnModifiedAt,
}

// RemoteControlColumns belong to the backend; the inbound builder strips
// them from every remote row. store_id is the tenant scoping column the
// REST client injects on the way out.
var RemoteControlColumns = []string{
	"id",
	"created_at",
	"updated_at",
	"store_id",
}

// Table describes how one synchronized table participates in the engine.
type Table struct {
	Name string

	// ConflictColumn is the natural unique business key used for
	// upsert-on-conflict pushes. Empty means the table has no natural key
	// and new rows go out as plain inserts.
	ConflictColumn string

	// ForeignKeys maps a local column to the parent table it references.
	// The builders translate these local id <-> remote id.
	ForeignKeys map[string]string

	// NullableColumns flags the columns that may legitimately carry NULL.
	// A NULL in any column absent from this set is treated as "not ready"
	// (foreign keys) or dropped (plain columns) rather than transmitted.
	NullableColumns map[string]bool

	// MoneyColumns are stored locally as integer cents and exchanged with
	// the backend as its native numeric type.
	MoneyColumns map[string]bool

	// LocalJoinColumns exist only on rows hydrated through UI joins
	// (denormalized display names); they have no remote counterpart.
	LocalJoinColumns []string
}

// Order is the fixed parent-before-child processing order used by every
// phase. It is declared, not derived: the topology test keeps it honest
// against the ForeignKeys declarations.
var Order = []string{
	"product_groups",
	"estoque_grupos",
	"payment_methods",
	"users",
	"customers",
	"cash_sessions",
	"products",
	"estoque_itens",
	"sales",
	"sale_items",
	"credit_sales",
	"credit_payments",
}

// Tables is the registry of everything the engine synchronizes. A table
// absent from this map is invisible to the sync engine.
var Tables = map[string]Table{
	"product_groups": {
		Name:           "product_groups",
		ConflictColumn: "name",
	},
	"estoque_grupos": {
		Name:           "estoque_grupos",
		ConflictColumn: "name",
	},
	"payment_methods": {
		Name:           "payment_methods",
		ConflictColumn: "name",
	},
	"users": {
		Name:           "users",
		ConflictColumn: "username",
	},
	"customers": {
		Name:           "customers",
		ConflictColumn: "cpf",
	},
	"cash_sessions": {
		Name: "cash_sessions",
		ForeignKeys: map[string]string{
			"user_id": "users",
		},
		MoneyColumns: map[string]bool{
			"opening_amount": true,
			"closing_amount": true,
		},
		NullableColumns: map[string]bool{
			"closed_at":      true,
			"closing_amount": true,
		},
	},
	"products": {
		Name:           "products",
		ConflictColumn: "barcode",
		ForeignKeys: map[string]string{
			"group_id": "product_groups",
		},
		MoneyColumns: map[string]bool{
			"price":      true,
			"cost_price": true,
		},
		LocalJoinColumns: []string{"group_name"},
	},
	"estoque_itens": {
		Name:           "estoque_itens",
		ConflictColumn: "name",
		ForeignKeys: map[string]string{
			"group_id": "estoque_grupos",
		},
		LocalJoinColumns: []string{"group_name"},
	},
	"sales": {
		Name: "sales",
		ForeignKeys: map[string]string{
			"user_id":         "users",
			"cash_session_id": "cash_sessions",
			"customer_id":     "customers",
		},
		// Anonymous counter sales carry no customer.
		NullableColumns: map[string]bool{
			"customer_id": true,
		},
		MoneyColumns: map[string]bool{
			"total":    true,
			"discount": true,
		},
		LocalJoinColumns: []string{"customer_name", "user_name"},
	},
	"sale_items": {
		Name: "sale_items",
		ForeignKeys: map[string]string{
			"sale_id":    "sales",
			"product_id": "products",
		},
		MoneyColumns: map[string]bool{
			"unit_price": true,
			"subtotal":   true,
		},
		LocalJoinColumns: []string{"product_name"},
	},
	"credit_sales": {
		Name: "credit_sales",
		ForeignKeys: map[string]string{
			"customer_id": "customers",
			"sale_id":     "sales",
			"user_id":     "users",
		},
		// Fiado opened by hand, without a till sale behind it.
		NullableColumns: map[string]bool{
			"sale_id": true,
		},
		MoneyColumns: map[string]bool{
			"total": true,
		},
		LocalJoinColumns: []string{"customer_name"},
	},
	"credit_payments": {
		Name: "credit_payments",
		ForeignKeys: map[string]string{
			"credit_sale_id":  "credit_sales",
			"user_id":         "users",
			"cash_session_id": "cash_sessions",
		},
		// Payments taken outside an open cash session.
		NullableColumns: map[string]bool{
			"cash_session_id": true,
		},
		MoneyColumns: map[string]bool{
			"amount": true,
		},
		LocalJoinColumns: []string{"user_name"},
	},
}

// Nullable reports whether a column is flagged nullable-by-design.
func (t Table) Nullable(column string) bool {
	return t.NullableColumns[column]
}

// Lookup returns the descriptor for a synchronized table, or an error for
// anything outside the registry. Every table name reaching SQL text goes
// through this whitelist first.
func Lookup(table string) (Table, error) {
	desc, ok := Tables[table]
	if !ok {
		return Table{}, fmt.Errorf("table %s is not registered for sync", table)
	}
	return desc, nil
}
