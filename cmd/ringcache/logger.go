package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/lni/dragonboat/v4/logger"
)

// cliLogger implements logger.ILogger with a fixed column format.
type cliLogger struct {
	name   string
	level  logger.LogLevel
	logger *log.Logger
}

func (l *cliLogger) SetLevel(level logger.LogLevel) {
	l.level = level
}

func (l *cliLogger) Debugf(format string, args ...interface{}) {
	if l.level >= logger.DEBUG {
		l.log("DEBUG", format, args...)
	}
}

func (l *cliLogger) Infof(format string, args ...interface{}) {
	if l.level >= logger.INFO {
		l.log("INFO", format, args...)
	}
}

func (l *cliLogger) Warningf(format string, args ...interface{}) {
	if l.level >= logger.WARNING {
		l.log("WARN", format, args...)
	}
}

func (l *cliLogger) Errorf(format string, args ...interface{}) {
	if l.level >= logger.ERROR {
		l.log("ERROR", format, args...)
	}
}

func (l *cliLogger) Panicf(format string, args ...interface{}) {
	if l.level >= logger.CRITICAL {
		panic(fmt.Sprintf(format, args...))
	}
}

func (l *cliLogger) log(levelStr string, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	l.logger.Printf("%-5s | %-15s | %s", levelStr, l.name, message)
}

// loggerFactory returns a logger.Factory writing to w.
func loggerFactory(w io.Writer) logger.Factory {
	return func(pkgName string) logger.ILogger {
		return &cliLogger{
			name:   pkgName,
			level:  logger.INFO,
			logger: log.New(w, "", log.Ldate|log.Ltime),
		}
	}
}

// parseLogLevel converts a string level to logger.LogLevel
func parseLogLevel(level string) (logger.LogLevel, error) {
	switch strings.ToLower(level) {
	case "debug":
		return logger.DEBUG, nil
	case "info":
		return logger.INFO, nil
	case "warning", "warn":
		return logger.WARNING, nil
	case "error":
		return logger.ERROR, nil
	default:
		return 0, fmt.Errorf("invalid log level: %s. must be one of debug, info, warn, error", level)
	}
}

// initLoggers installs the CLI logger for every package logger the binary uses.
func initLoggers(level string) error {
	lvl, err := parseLogLevel(level)
	if err != nil {
		return err
	}
	logger.SetLoggerFactory(loggerFactory(os.Stderr))
	logger.GetLogger("ringcache").SetLevel(lvl)
	logger.GetLogger("bench").SetLevel(lvl)
	return nil
}
