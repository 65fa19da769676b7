package signal

import (
	"github.com/btcsuite/btclog"
)

// log is the logger used by the signal package. It defaults to a disabled
// logger so that the package is silent until the caller wires one in with
// UseLogger.
var log = btclog.Disabled

// UseLogger uses a specified Logger to output package logging info.
func UseLogger(logger btclog.Logger) {
	log = logger
}
