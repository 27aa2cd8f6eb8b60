// Command rococo-demo wires together a schema, a table, a transaction
// registry, and a DTxnMgr running under a configured protocol, then
// drives one two-piece transfer transaction end to end to exercise the
// engine.
// Grounded on kv/tinykv-server/main.go's flag-parse-then-wire-up shape,
// using cobra/pflag in place of a bare flag package.
package main

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/ngaut/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/rococo-db/txnengine/config"
	"github.com/rococo-db/txnengine/mdb"
	"github.com/rococo-db/txnengine/rococo"
)

const (
	tTypeTransfer int32 = 1
	pTypeDebit    int32 = 1
	pTypeCredit   int32 = 2
)

func loadConfig(path string) (*config.Config, error) {
	cfg := config.NewDefaultConfig()
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func toRococoMode(m config.Mode) rococo.Mode {
	switch m {
	case config.ModeROT:
		return rococo.ModeROT
	default:
		return rococo.ModeRCC
	}
}

func toALockPolicy(p config.TwoPLPolicy) mdb.LockPolicy {
	switch p {
	case config.PolicyWoundDie:
		return mdb.PolicyWoundDie
	case config.PolicyTimeout:
		return mdb.PolicyTimeout
	default:
		return mdb.PolicyWaitDie
	}
}

func buildAccountsTable(cfg *config.Config) *mdb.Table {
	schema := mdb.NewSchema([]mdb.Column{
		{Name: "id", Kind: mdb.KindI64, PrimaryKey: true},
		{Name: "bal", Kind: mdb.KindI64},
		{Name: "owner", Kind: mdb.KindStr},
	})
	tbl := mdb.NewTable("accounts", schema)

	for id, bal := range map[int64]int64{1: 1000, 2: 500} {
		row := mdb.NewRow(schema, []mdb.Value{
			mdb.I64(id),
			mdb.I64(bal),
			mdb.Str(fmt.Sprintf("owner-%d", id)),
		})
		locked := mdb.NewCoarseLockedRow(row, toALockPolicy(cfg.TwoPLPolicy), cfg.LockTimeoutMs)
		tbl.Insert(locked.Row)
	}
	return tbl
}

// registerTransferHandlers wires two immediate (DFNo) pieces implementing
// a debit and a credit against the accounts table, illustrating
// rococo.TxnRegistry's dispatch contract end to end.
func registerTransferHandlers(reg *rococo.TxnRegistry, tbl *mdb.Table) {
	reg.Reg(tTypeTransfer, pTypeDebit, rococo.DFNo, func(
		header rococo.RequestHeader,
		input []mdb.Value,
		output *[]mdb.Value,
		rowMap rococo.RowMap,
		pv *rococo.PieVertex,
		tv *rococo.TxnVertex,
		roConflict *[]*rococo.TxnInfo,
	) rococo.Result {
		id := input[0]
		amount := input[1].I64()
		row := tbl.Get(mdb.NewMultiValue(id))
		if row == nil {
			return rococo.ResultInternal
		}
		bal := row.GetColumn(1).I64()
		if bal < amount {
			return rococo.ResultReject
		}
		row.Update(1, mdb.I64(bal-amount))
		return rococo.ResultOK
	})

	reg.Reg(tTypeTransfer, pTypeCredit, rococo.DFNo, func(
		header rococo.RequestHeader,
		input []mdb.Value,
		output *[]mdb.Value,
		rowMap rococo.RowMap,
		pv *rococo.PieVertex,
		tv *rococo.TxnVertex,
		roConflict *[]*rococo.TxnInfo,
	) rococo.Result {
		id := input[0]
		amount := input[1].I64()
		row := tbl.Get(mdb.NewMultiValue(id))
		if row == nil {
			return rococo.ResultInternal
		}
		bal := row.GetColumn(1).I64()
		row.Update(1, mdb.I64(bal+amount))
		return rococo.ResultOK
	})
}

func runDemo(cfg *config.Config) error {
	tbl := buildAccountsTable(cfg)
	reg := rococo.NewTxnRegistry()
	registerTransferHandlers(reg, tbl)

	dep := rococo.NewDepGraph()
	mgr := rococo.NewDTxnMgr(toRococoMode(cfg.Mode), reg, dep)
	mgr.RegTable(tbl.Name(), tbl)

	tid := int64(1)
	dt, err := mgr.GetOrCreate(tid)
	if err != nil {
		return err
	}
	rcc, ok := dt.(*rococo.RCCDTxn)
	if !ok {
		return fmt.Errorf("rococo-demo: expected *rococo.RCCDTxn, got %T", dt)
	}

	debitHeader := rococo.RequestHeader{TType: tTypeTransfer, PType: pTypeDebit, Tid: tid, Sid: 1}
	_, out, res := rcc.Start(debitHeader, []mdb.Value{mdb.I64(1), mdb.I64(100)})
	log.Infof("debit result=%v output=%v", res, out)

	creditHeader := rococo.RequestHeader{TType: tTypeTransfer, PType: pTypeCredit, Tid: tid, Sid: 2}
	_, out, res = rcc.Start(creditHeader, []mdb.Value{mdb.I64(2), mdb.I64(100)})
	log.Infof("credit result=%v output=%v", res, out)

	dep.MarkDecided(tid)
	mgr.Destroy(tid)

	row1 := tbl.Get(mdb.NewMultiValue(mdb.I64(1)))
	row2 := tbl.Get(mdb.NewMultiValue(mdb.I64(2)))
	log.Infof("final balances: account 1 = %d, account 2 = %d", row1.GetColumn(1).I64(), row2.GetColumn(1).I64())
	return nil
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "rococo-demo",
		Short: "Run a small end-to-end transaction against the engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			log.Infof("running with config: %+v", cfg)
			return runDemo(cfg)
		},
	}

	flags := root.Flags()
	flags.AddFlagSet(pflag.NewFlagSet("rococo-demo", pflag.ExitOnError))
	flags.StringVar(&configPath, "config", "", "path to a toml config file")

	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
