package mdb

import "sync"

// Table owns a named, schema-bound collection of rows keyed by primary
// key. It is the only strong owner of a Row; Row.tbl is a weak back-
// reference set at most once, per original_source/memdb/row.h's
// set_table note (reference-counted ownership would create a cycle).
// Grounded structurally on latches.Latches's guarded-map shape, since no
// teacher file implements an in-memory, schema-keyed table directly
// (tinykv's storage is a byte-oriented CF store, out of scope).
type Table struct {
	name   string
	schema *Schema

	mu   sync.RWMutex
	rows map[string]*Row
}

// NewTable constructs an empty table named name against schema.
func NewTable(name string, schema *Schema) *Table {
	return &Table{
		name:   name,
		schema: schema,
		rows:   make(map[string]*Row),
	}
}

func (t *Table) Name() string { return t.name }

func (t *Table) Schema() *Schema { return t.schema }

// Insert adds row under its own primary key, claiming row's weak table
// back-reference. Fails fatally if row already belongs to a table or a
// row with the same key already exists.
func (t *Table) Insert(row *Row) {
	Verify(row.Table() == nil, "Table.Insert: row already belongs to a table")
	key := mvKey(row.GetKey())

	t.mu.Lock()
	defer t.mu.Unlock()
	_, exists := t.rows[key]
	Verify(!exists, "Table.Insert: duplicate primary key %s", row.GetKey())
	row.SetTable(t)
	t.rows[key] = row
}

// Get returns the row stored under key, or nil if absent.
func (t *Table) Get(key MultiValue) *Row {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rows[mvKey(key)]
}

// Delete removes the row stored under key, if present.
func (t *Table) Delete(key MultiValue) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.rows, mvKey(key))
}

// Len returns the number of rows currently in the table.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

// mvKey renders a MultiValue into a map key using String(), which quotes
// STR elements but renders I32, I64 and DOUBLE elements by number alone
// (I32(5) and I64(5) both render as "5"). Within one table the schema
// fixes each key column's kind, so rows of that table get distinct keys
// without a second hashing scheme.
func mvKey(mv MultiValue) string {
	return mv.String()
}
