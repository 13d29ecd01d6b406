package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/btcsuite/btclog"
	"github.com/jrick/logrotate/rotator"
	"github.com/ok300/lwk/jade"
	"github.com/ok300/lwk/signer"
	"github.com/ok300/lwk/wallet"
	"github.com/ok300/lwk/wtxmgr"
)

// logWriter writes to stderr and to the log rotator when it is running.
// Stdout carries the command output only.
type logWriter struct{}

func (logWriter) Write(p []byte) (n int, err error) {
	os.Stderr.Write(p)
	if logPipe != nil {
		logPipe.Write(p)
	}

	return len(p), nil
}

var (
	backendLog = btclog.NewBackend(logWriter{})

	// logRotator is the log file of the command. It is nil until
	// initLogRotator runs.
	logRotator *rotator.Rotator
	logPipe    *io.PipeWriter

	log     = backendLog.Logger("JREG")
	jadeLog = backendLog.Logger("JADE")
	signLog = backendLog.Logger("SIGN")
	lwkwLog = backendLog.Logger("LWKW")
	txmgLog = backendLog.Logger("TXMG")
)

func init() {
	jade.UseLogger(jadeLog)
	signer.UseLogger(signLog)
	wallet.UseLogger(lwkwLog)
	wtxmgr.UseLogger(txmgLog)
}

// subsystemLoggers maps each subsystem identifier to its logger.
var subsystemLoggers = map[string]btclog.Logger{
	"JREG": log,
	"JADE": jadeLog,
	"SIGN": signLog,
	"LWKW": lwkwLog,
	"TXMG": txmgLog,
}

// initLogRotator starts a rotating log file in logDir. It must be called
// before the package loggers are used.
func initLogRotator(logDir string) error {
	if err := os.MkdirAll(logDir, 0700); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	logFile := filepath.Join(logDir, defaultLogFilename)
	r, err := rotator.New(logFile, 10*1024, false, 3)
	if err != nil {
		return fmt.Errorf("create file rotator: %w", err)
	}

	pr, pw := io.Pipe()
	go func() {
		_ = r.Run(pr)
	}()

	logRotator = r
	logPipe = pw

	return nil
}

// closeLogRotator flushes and closes the log file if one is open.
func closeLogRotator() {
	if logPipe != nil {
		_ = logPipe.Close()
	}
	if logRotator != nil {
		_ = logRotator.Close()
	}
}

// setLogLevel sets the level of one subsystem. Unknown subsystems are
// ignored.
func setLogLevel(subsystemID string, logLevel string) {
	logger, ok := subsystemLoggers[subsystemID]
	if !ok {
		return
	}

	level, _ := btclog.LevelFromString(logLevel)
	logger.SetLevel(level)
}

// setLogLevels sets the level of every subsystem.
func setLogLevels(logLevel string) {
	for subsystemID := range subsystemLoggers {
		setLogLevel(subsystemID, logLevel)
	}
}

// supportedSubsystems returns the sorted subsystem identifiers.
func supportedSubsystems() []string {
	subsystems := make([]string, 0, len(subsystemLoggers))
	for subsysID := range subsystemLoggers {
		subsystems = append(subsystems, subsysID)
	}
	sort.Strings(subsystems)

	return subsystems
}
