package lnchand

import (
	"github.com/btcsuite/btclog"
	"github.com/blockforge/lnchand/build"
	"github.com/blockforge/lnchand/channeldb"
	"github.com/blockforge/lnchand/lnwallet"
	"github.com/blockforge/lnchand/signal"
)

// Loggers per subsystem. A single backend logger is created and every
// subsystem logger is hooked up to it. Loggers can't be used before the log
// rotator is initialized with a log file — initLogRotator does that early in
// Main.
var (
	logWriter = &build.LogWriter{}

	backendLog = btclog.NewBackend(logWriter)

	lnchLog = build.NewSubLogger("LNCH", backendLog.Logger)
	lnwlLog = build.NewSubLogger("LNWL", backendLog.Logger)
	chdbLog = build.NewSubLogger("CHDB", backendLog.Logger)
	cfsmLog = build.NewSubLogger("CFSM", backendLog.Logger)
	cnctLog = build.NewSubLogger("CNCT", backendLog.Logger)
	zp32Log = build.NewSubLogger("ZP32", backendLog.Logger)
	hlckLog = build.NewSubLogger("HLCK", backendLog.Logger)
)

func init() {
	lnwallet.UseLogger(lnwlLog)
	channeldb.UseLogger(chdbLog)
	signal.UseLogger(lnchLog)
}

// subsystemLoggers maps each subsystem identifier to its associated logger.
var subsystemLoggers = map[string]btclog.Logger{
	"LNCH": lnchLog,
	"LNWL": lnwlLog,
	"CHDB": chdbLog,
	"CFSM": cfsmLog,
	"CNCT": cnctLog,
	"ZP32": zp32Log,
	"HLCK": hlckLog,
}

// initLogRotator initializes the logging rotator to write to logFile,
// rolling over once it exceeds maxFileSize MB, keeping at most maxFiles
// rolled-over copies.
func initLogRotator(cfg *Config, logFile string) error {
	return cfg.LogWriter.InitLogRotator(&build.FileLoggerConfig{
		Compressor:     build.Gzip,
		MaxLogFiles:    cfg.MaxLogFiles,
		MaxLogFileSize: cfg.MaxLogFileSize,
	}, logFile)
}

// setLogLevels sets every subsystem logger to level, dynamically creating
// loggers as needed. level may either be a single global level, or a
// comma-separated list of subsystem=level pairs in the teacher's own
// <global-level>,<subsystem>=<level>,... form.
func setLogLevels(level string) {
	for subsystemID, logger := range subsystemLoggers {
		setLogLevel(subsystemID, level, logger)
	}
}

func setLogLevel(subsystemID, logLevel string, logger btclog.Logger) {
	level, _ := btclog.LevelFromString(logLevel)
	logger.SetLevel(level)
}

// zpay32Logger, chanfsmLogger, contractcourtLogger, and leaselockLogger hand
// each subsystem its logger without that package needing a global UseLogger
// hook of its own — zpay32 has no logger at all, and chanfsm/contractcourt/
// leaselock each take a btclog.Logger directly in their constructors.
func zpay32Logger() btclog.Logger        { return zp32Log }
func chanfsmLogger() btclog.Logger       { return cfsmLog }
func contractcourtLogger() btclog.Logger { return cnctLog }
func leaselockLogger() btclog.Logger     { return hlckLog }
