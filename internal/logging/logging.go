// Package logging builds the structured logger shared by every
// binary. The pack carries no third-party logging library (the
// bidding app leans on println, the tender server on the standard
// logger), so this is the one ambient concern built directly on
// log/slog rather than adapted from an example.
package logging

import (
	"log/slog"
	"os"

	"github.com/bloomingFlower/auction-service/internal/config"
)

// New builds a JSON slog.Logger writing to stdout, level controlled by
// the LOG_LEVEL environment variable (debug/info/warn/error).
func New() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(config.GetEnv("LOG_LEVEL", "info"))); err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
