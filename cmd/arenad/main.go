package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"arenaledger/config"
	"arenaledger/crypto"
	"arenaledger/native/escrow"
	"arenaledger/state"
	"arenaledger/storage"
)

func main() {
	configPath := flag.String("config", "./config.toml", "path to the node configuration file")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: arenad [-config path] <init|status|balance <addr>|due <addr>>")
		os.Exit(2)
	}
	if err := run(*configPath, flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, "arenad:", err)
		os.Exit(1)
	}
}

func run(configPath string, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "ledger"))
	if err != nil {
		return err
	}
	defer db.Close()

	engine := escrow.NewEngine()
	engine.SetState(state.NewManager(db))

	switch args[0] {
	case "init":
		owner, err := cfg.OwnerAddress()
		if err != nil {
			return err
		}
		dues, err := cfg.GenesisDues()
		if err != nil {
			return err
		}
		res, err := engine.Instantiate(owner, dues)
		if err != nil {
			return err
		}
		return printJSON(res.Events)
	case "status":
		led, err := engine.View()
		if err != nil {
			return err
		}
		locked, err := led.IsLocked()
		if err != nil {
			return err
		}
		fully, err := led.IsFullyFunded()
		if err != nil {
			return err
		}
		total, err := led.TotalBalance()
		if err != nil {
			return err
		}
		dues, err := led.Dues(nil, cfg.QueryPageLimit)
		if err != nil {
			return err
		}
		return printJSON(map[string]interface{}{
			"isLocked":      locked,
			"isFullyFunded": fully,
			"totalBalance":  total.String(),
			"openDues":      len(dues),
		})
	case "balance", "due":
		if len(args) < 2 {
			return fmt.Errorf("%s requires an address", args[0])
		}
		addr, err := crypto.DecodeAddress(args[1])
		if err != nil {
			return err
		}
		led, err := engine.View()
		if err != nil {
			return err
		}
		var bundle fmt.Stringer
		var ok bool
		if args[0] == "balance" {
			bundle, ok, err = led.Balance(addr.Raw())
		} else {
			bundle, ok, err = led.Due(addr.Raw())
		}
		if err != nil {
			return err
		}
		return printJSON(map[string]interface{}{
			"present": ok,
			"value":   bundle.String(),
		})
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printJSON(v interface{}) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}
