package rococo

import "github.com/rococo-db/txnengine/mdb"

func testAccountSchema() *mdb.Schema {
	return mdb.NewSchema([]mdb.Column{
		{Name: "id", Kind: mdb.KindI64, PrimaryKey: true},
		{Name: "name", Kind: mdb.KindStr},
		{Name: "balance", Kind: mdb.KindI64},
	})
}

func newAccountsTable(schema *mdb.Schema) *mdb.Table {
	tbl := mdb.NewTable("accounts", schema)
	tbl.Insert(mdb.NewRow(schema, []mdb.Value{mdb.I64(1), mdb.Str("alice"), mdb.I64(1000)}))
	tbl.Insert(mdb.NewRow(schema, []mdb.Value{mdb.I64(2), mdb.Str("bob"), mdb.I64(500)}))
	return tbl
}

func balanceHandler(tbl *mdb.Table, delta int64) TxnHandler {
	return func(header RequestHeader, input []mdb.Value, output *[]mdb.Value, rowMap RowMap, pv *PieVertex, tv *TxnVertex, roConflict *[]*TxnInfo) Result {
		row := tbl.Get(mdb.NewMultiValue(input[0]))
		if row == nil {
			return ResultInternal
		}
		if delta != 0 {
			row.Update(2, mdb.I64(row.GetColumn(2).I64()+delta))
		}
		*output = append(*output, row.GetColumn(2))
		return ResultOK
	}
}
