// Package config loads process configuration from environment variables
// via viper, with pflag-bound overrides and fsnotify-driven
// hot-reload for the subset of settings safe to change at runtime
// (timeouts, heartbeat interval). No example repo in the
// retrieval pack ships a config package; spf13/viper + spf13/pflag +
// fsnotify is the combination this module allocates to the concern,
// picked because viper is the dominant ecosystem choice a urfave/cli-based
// CLI would otherwise reach for.
package config

import (
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/webitel/im-thread-gateway/internal/auth"
	"github.com/webitel/im-thread-gateway/internal/domain/timeoutsvc"
)

type Config struct {
	UseAgentOS      bool
	AgentOSURL      string
	Port            string
	BuildEnv        string
	CodayClientPath string

	HeartbeatInterval time.Duration
	Durations         timeoutsvc.Durations

	DisableAuth  bool
	AuditAMQPURL string
	LogLevel     string
	Dashboard    bool
}

func defaults(v *viper.Viper) {
	v.SetDefault("USE_AGENTOS", false)
	v.SetDefault("PORT", "8080")
	v.SetDefault("BUILD_ENV", "production")
	v.SetDefault("CODAY_CLIENT_PATH", "./client/dist")
	v.SetDefault("HEARTBEAT_INTERVAL", "30s")
	v.SetDefault("DISCONNECT_TIMEOUT", "5m")
	v.SetDefault("INACTIVITY_TIMEOUT", "8h")
	v.SetDefault("ONESHOT_TIMEOUT", "30m")
	v.SetDefault("DISABLE_AUTH", false)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DASHBOARD", false)
}

// Source wraps the viper instance backing a loaded Config so callers can
// register a hot-reload callback for the settings safe to retune after
// startup.
type Source struct {
	v *viper.Viper
}

// Load reads configuration from the environment (and, if present, a
// config file named by --config_file), with live-reload wired for the
// fields that are safe to change after startup.
func Load(flags *pflag.FlagSet) (*Config, *Source, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	defaults(v)

	src := &Source{v: v}

	if flags != nil {
		_ = v.BindPFlags(flags)
		if path, err := flags.GetString("config_file"); err == nil && path != "" {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, nil, err
			}
			v.WatchConfig()
		}
	}

	cfg := build(v)
	auth.Disabled = cfg.DisableAuth
	return cfg, src, nil
}

// OnChange registers fn to run with the freshly rebuilt Config every time
// the backing config file changes on disk. A no-op when WatchConfig was
// never armed (no --config_file was given to Load).
func (s *Source) OnChange(fn func(*Config)) {
	s.v.OnConfigChange(func(_ fsnotify.Event) {
		fn(build(s.v))
	})
}

func build(v *viper.Viper) *Config {
	return &Config{
		UseAgentOS:      v.GetBool("USE_AGENTOS"),
		AgentOSURL:      v.GetString("AGENTOS_URL"),
		Port:            v.GetString("PORT"),
		BuildEnv:        v.GetString("BUILD_ENV"),
		CodayClientPath: v.GetString("CODAY_CLIENT_PATH"),

		HeartbeatInterval: v.GetDuration("HEARTBEAT_INTERVAL"),
		Durations: timeoutsvc.Durations{
			Disconnect:  v.GetDuration("DISCONNECT_TIMEOUT"),
			Interactive: v.GetDuration("INACTIVITY_TIMEOUT"),
			Oneshot:     v.GetDuration("ONESHOT_TIMEOUT"),
		},

		DisableAuth:  v.GetBool("DISABLE_AUTH"),
		AuditAMQPURL: v.GetString("AUDIT_AMQP_URL"),
		LogLevel:     v.GetString("LOG_LEVEL"),
		Dashboard:    v.GetBool("DASHBOARD"),
	}
}
