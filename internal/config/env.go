package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. MAILNOTIFY_LOG_LEVEL.
const EnvPrefix = "MAILNOTIFY"

// applyEnv overrides process-wide settings from the environment. Mailbox
// credentials stay in the file.
func applyEnv(cfg *Config) error {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range []string{"log_level", "log_format", "interval", "status_listen"} {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}

	if v.IsSet("log_level") {
		cfg.LogLevel = v.GetString("log_level")
	}
	if v.IsSet("log_format") {
		cfg.LogFormat = v.GetString("log_format")
	}
	if v.IsSet("interval") {
		n := v.GetInt("interval")
		if n <= 0 {
			return fmt.Errorf("%s_INTERVAL must be a positive integer", EnvPrefix)
		}
		cfg.IntervalMinutes = n
	}
	if v.IsSet("status_listen") {
		cfg.StatusListen = v.GetString("status_listen")
	}
	return nil
}
