package logging

import (
	"go.uber.org/zap"
)

// Init builds the process-wide logger and installs it as zap's global.
// Callers use zap.L() everywhere else.
func Init(debug bool) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}
