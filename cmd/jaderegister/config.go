package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btclog"
	"github.com/jessevdk/go-flags"
	"github.com/ok300/lwk/network"
)

const (
	defaultLogFilename = "jaderegister.log"
	defaultDebugLevel  = "info"
)

// config holds the command line options.
type config struct {
	Descriptor string `long:"descriptor" description:"Multisig descriptor to register" required:"true"`
	Name       string `long:"name" description:"Name the device stores the multisig under" required:"true"`
	Network    string `long:"network" description:"Network the descriptor belongs to" choice:"liquid" choice:"testnet-liquid" choice:"localtest-liquid" default:"liquid"`
	LogDir     string `long:"logdir" description:"Directory to log output; empty disables the log file"`
	DebugLevel string `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`
	Dump       bool   `long:"dump" description:"Dump the registration request at debug level"`
}

// loadConfig parses the arguments and validates the options.
func loadConfig(args []string) (*config, error) {
	cfg := config{
		DebugLevel: defaultDebugLevel,
	}

	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}

	if cfg.DebugLevel == "show" {
		fmt.Println("Supported subsystems", supportedSubsystems())
		os.Exit(0)
	}

	if err := parseAndSetDebugLevels(cfg.DebugLevel); err != nil {
		return nil, err
	}

	if _, err := network.ByName(cfg.Network); err != nil {
		return nil, err
	}

	if cfg.LogDir != "" {
		cfg.LogDir = cleanAndExpandPath(cfg.LogDir)
	}

	return &cfg, nil
}

// parseAndSetDebugLevels sets either a global level or per subsystem
// levels given as subsystem=level pairs.
func parseAndSetDebugLevels(debugLevel string) error {
	if !strings.Contains(debugLevel, ",") &&
		!strings.Contains(debugLevel, "=") {

		if _, ok := btclog.LevelFromString(debugLevel); !ok {
			return fmt.Errorf("invalid debug level %q", debugLevel)
		}
		setLogLevels(debugLevel)

		return nil
	}

	for _, pair := range strings.Split(debugLevel, ",") {
		fields := strings.Split(pair, "=")
		if len(fields) != 2 {
			return fmt.Errorf("invalid debug level pair %q", pair)
		}

		subsysID, level := fields[0], fields[1]
		if _, ok := subsystemLoggers[subsysID]; !ok {
			return fmt.Errorf("unknown subsystem %q, supported "+
				"subsystems %v", subsysID, supportedSubsystems())
		}
		if _, ok := btclog.LevelFromString(level); !ok {
			return fmt.Errorf("invalid debug level %q", level)
		}

		setLogLevel(subsysID, level)
	}

	return nil
}

// cleanAndExpandPath expands environment variables and a leading ~ in the
// passed path and cleans the result.
func cleanAndExpandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		homeDir := filepath.Dir(btcutil.AppDataDir("lwk", false))
		path = strings.Replace(path, "~", homeDir, 1)
	}

	return filepath.Clean(os.ExpandEnv(path))
}
