package mdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableInsertGetDelete(t *testing.T) {
	schema := testSchema()
	tbl := NewTable("accounts", schema)
	row := testRow(schema)

	tbl.Insert(row)
	assert.Equal(t, 1, tbl.Len())
	assert.Equal(t, tbl, row.Table())

	got := tbl.Get(row.GetKey())
	require.NotNil(t, got)
	assert.Equal(t, 0, row.Compare(got))

	tbl.Delete(row.GetKey())
	assert.Equal(t, 0, tbl.Len())
	assert.Nil(t, tbl.Get(row.GetKey()))
}

func TestTableGetMissingKeyReturnsNil(t *testing.T) {
	schema := testSchema()
	tbl := NewTable("accounts", schema)
	assert.Nil(t, tbl.Get(NewMultiValue(I64(404))))
}

func TestTableNameAndSchema(t *testing.T) {
	schema := testSchema()
	tbl := NewTable("accounts", schema)
	assert.Equal(t, "accounts", tbl.Name())
	assert.Equal(t, schema, tbl.Schema())
}
