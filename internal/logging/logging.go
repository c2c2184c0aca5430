package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	globallog "github.com/rs/zerolog/log"
)

// ConfigureGlobalLogger sets up the zerolog global logger. Call it once from main
// and again when a pipeline run knows its log directory.
//
// With an empty logFilePath, human readable output goes to stderr at Info, or
// Debug when verbose. With a path, every level is written there as JSON lines
// and warnings still reach the terminal.
func ConfigureGlobalLogger(isVerbose bool, logFilePath string) error {
	consoleLevel := zerolog.InfoLevel
	if isVerbose {
		consoleLevel = zerolog.DebugLevel
	}
	console := consoleWriter(os.Stderr)

	if logFilePath == "" {
		globallog.Logger = zerolog.New(console).With().Timestamp().Logger()
		zerolog.SetGlobalLevel(consoleLevel)
		zerolog.TimeFieldFormat = time.RFC3339
		globallog.Debug().Msgf("Console log level set to: %s", consoleLevel)
		return nil
	}

	dir := filepath.Dir(logFilePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory %q: %w", dir, err)
	}
	fileHandle, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file %q: %w", logFilePath, err)
	}

	// pipeline.log keeps everything; the terminal only what the user asked for.
	out := zerolog.MultiLevelWriter(fileHandle, &zerolog.FilteredLevelWriter{
		Writer: zerolog.LevelWriterAdapter{Writer: console},
		Level:  consoleLevel,
	})
	globallog.Logger = zerolog.New(out).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	zerolog.TimeFieldFormat = time.RFC3339

	globallog.Debug().Msgf("Configured file logging (JSON format) to: %s", logFilePath)
	return nil
}

func consoleWriter(out io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
		FormatLevel: func(i any) string {
			if level, ok := i.(string); ok {
				return strings.ToUpper(fmt.Sprintf("[%s]", level))
			}
			return fmt.Sprintf("[%v]", i)
		},
		FormatMessage: func(i any) string {
			if msg, ok := i.(string); ok {
				return msg
			}
			return fmt.Sprintf("%v", i)
		},
	}
}
