// Copyright (C) 2015-2020 The Lightning Network Developers

package main

import (
	"fmt"
	"os"

	"github.com/blockforge/lnchand"
)

// main is intentionally minimal — loading and validating configuration,
// then handing off to lnchand.Main, is the whole job. This mirrors the
// teacher's own cmd/lnd/main.go, which does nothing but load config and
// call into the library package.
func main() {
	cfg, err := lnchand.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// implCfg is left unset here: the signer and chain-backend interfaces
	// lnchand.Main requires are supplied by whatever wallet/chain-backend
	// integration embeds this binary (§6's external collaborators), not
	// by this daemon itself. A real deployment replaces this main
	// package with one that constructs a concrete ImplementationCfg
	// before calling lnchand.Main.
	if err := lnchand.Main(cfg, nil); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
