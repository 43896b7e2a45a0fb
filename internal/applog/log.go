// Package applog builds the process-wide structured logger.
package applog

import (
	"io"
	"os"
	"path/filepath"

	"github.com/containai/cai/internal/config"
	"github.com/sirupsen/logrus"
)

// NewLogger returns a logrus.Entry configured per spec §10: development
// mode (CONTAINAI_VERBOSE=1 or --verbose) raises the level to Debug and
// tees to cai.log under the state directory (appended to, not rotated);
// production mode discards below Warn. All subsystem constructors take the returned entry.
func NewLogger(cfg *config.AppConfig) *logrus.Entry {
	var log *logrus.Logger
	if cfg.Verbose {
		log = newDevelopmentLogger(cfg)
	} else {
		log = newProductionLogger()
	}
	log.Formatter = &logrus.JSONFormatter{}

	return log.WithFields(logrus.Fields{
		"version": cfg.Version,
		"commit":  cfg.Commit,
	})
}

func newDevelopmentLogger(cfg *config.AppConfig) *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.DebugLevel)

	path := filepath.Join(cfg.StateDir, "cai.log")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		log.SetOutput(os.Stderr)
		return log
	}
	log.SetOutput(io.MultiWriter(os.Stderr, file))
	return log
}

func newProductionLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(logrus.WarnLevel)
	return log
}
