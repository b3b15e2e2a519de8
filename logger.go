package segments

import "log"

// Logf is the diagnostic logger shared by the store and pipeline packages. The
// segmentation engine itself never logs. It defaults to log.Printf and may be
// replaced by SetLogger.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil mutes it.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
