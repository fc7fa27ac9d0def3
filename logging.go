package main

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// setupLogging points gin's access log and the application logger at stdout
// and, when configured, the log file. The returned func releases the file.
func setupLogging(cfg Config) (zerolog.Logger, func(), error) {
	var out io.Writer = os.Stdout
	closeFn := func() {}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0o755); err != nil {
			return zerolog.Nop(), nil, err
		}
		f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Nop(), nil, err
		}
		out = io.MultiWriter(os.Stdout, f)
		closeFn = func() { f.Close() }
	}
	gin.DefaultWriter = out
	gin.DefaultErrorWriter = out

	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339
	log := zerolog.New(out).Level(level).With().Timestamp().Logger()
	return log, closeFn, nil
}
