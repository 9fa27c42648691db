package logging

import "go.uber.org/zap"

// New builds the process logger. Development environments get the console
// encoder, everything else structured JSON.
func New(environment string) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if environment == "development" {
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

// Component returns a child logger tagged with the component name, so every
// line carries which subsystem wrote it. Nil-safe.
func Component(logger *zap.Logger, name string) *zap.Logger {
	if logger == nil {
		logger = zap.L()
	}
	return logger.Named(name)
}
