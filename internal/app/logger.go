package app

import (
	"strings"

	"github.com/charlesng35/waitlist/pkg/logger"
)

// ConfigureLogging initialises the global logger from the server settings, defaulting to
// info level JSON output.
func ConfigureLogging(cfg ServerConfig) error {
	level := strings.TrimSpace(cfg.LogLevel)
	if level == "" {
		level = "info"
	}

	fields := map[string]string{"service": "waitlist"}
	if env := strings.TrimSpace(cfg.Environment); env != "" {
		fields["env"] = env
	}

	return logger.Init(logger.Options{
		Level:  level,
		Format: cfg.LogFormat,
		Fields: fields,
	})
}
