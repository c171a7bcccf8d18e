// pkg/logger/logger.go
package logger

import (
	"go.uber.org/zap"
)

type Sugared = *zap.SugaredLogger

// New builds the process logger; prod gets JSON output at info level.
func New(env string) Sugared {
	var z *zap.Logger
	if env == "prod" {
		z, _ = zap.NewProduction()
	} else {
		z, _ = zap.NewDevelopment()
	}
	return z.Sugar()
}

// Named scopes l to a component, falling back to a no-op logger when l is nil.
func Named(l Sugared, component string) Sugared {
	if l == nil {
		return zap.NewNop().Sugar()
	}
	return l.Named(component)
}
