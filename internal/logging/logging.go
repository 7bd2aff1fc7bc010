package logging

import (
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/arnold/kanban-collab-api/internal/config"
)

// Init configures the global logrus logger.
// Production uses JSON output for log aggregation, everything else the text formatter.
func Init(cfg *config.Config) {
	log.SetOutput(os.Stdout)
	if cfg.IsProduction() {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	level := log.InfoLevel
	if cfg.Debug {
		level = log.DebugLevel
	}
	log.SetLevel(level)
}

// ForConn returns a logger scoped to one realtime connection.
func ForConn(connID string) *log.Entry {
	return log.WithField("conn", connID)
}
