package carbon

import "github.com/rs/zerolog"

// logger is used for reference data parse diagnostics. It discards output
// until SetLogger is called.
var logger = zerolog.Nop()

// SetLogger replaces the package logger used while parsing embedded data.
func SetLogger(l zerolog.Logger) {
	logger = l
}
