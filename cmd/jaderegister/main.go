// Command jaderegister prints the request a Jade hardware signer needs to
// register a confidential multisig descriptor.
//
// Usage:
//
//	jaderegister --descriptor='ct(slip77(...),elwsh(multi(...)))' \
//		--name=vault --network=testnet-liquid
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/davecgh/go-spew/spew"
	"github.com/jessevdk/go-flags"
	"github.com/ok300/lwk/descriptor"
	"github.com/ok300/lwk/jade"
	"github.com/ok300/lwk/network"
)

func main() {
	err := run(os.Args[1:], os.Stdout)
	closeLogRotator()

	if err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			os.Exit(0)
		}

		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run registers nothing itself: it converts the descriptor and writes the
// JSON request to out.
func run(args []string, out io.Writer) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}

	if cfg.LogDir != "" {
		if err := initLogRotator(cfg.LogDir); err != nil {
			return err
		}
	}

	params, err := network.ByName(cfg.Network)
	if err != nil {
		return err
	}

	desc, err := descriptor.Parse(cfg.Descriptor)
	if err != nil {
		return fmt.Errorf("parse descriptor: %w", err)
	}

	req, err := jade.NewRegisterMultisigParams(params, cfg.Name, desc)
	if err != nil {
		return err
	}

	if cfg.Dump {
		log.Debugf("Registration request: %v", spew.Sdump(req))
	}
	log.Infof("Registering %d of %d multisig %q on %s",
		req.Descriptor.Threshold, len(req.Descriptor.Signers),
		req.MultisigName, req.Network)

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")

	return enc.Encode(req)
}
