package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
)

type Config struct {
	RunAddress  string
	DatabaseURI string
	SecretKey   string

	TickInterval            time.Duration
	WatchdogInterval        time.Duration
	WakeupInterval          time.Duration
	CommissionSweepInterval time.Duration
	SettingsTTL             time.Duration

	TraceLogPath string
	CORSOrigins  []string

	Logger *zap.SugaredLogger
}

func NewConfig() *Config {
	logCfg := zap.NewProductionConfig()
	logCfg.OutputPaths = []string{"stdout", "dispatcher.log"}

	logger := zap.Must(logCfg.Build())

	cfg := &Config{}
	flagErr := parseFlags(cfg, flag.CommandLine, os.Args[1:])

	cfg.Logger = logger.Sugar()
	if flagErr != nil {
		cfg.Logger.Warnf("flags: %v", flagErr)
	}

	if err := ReadServerEnvironment(cfg); err != nil {
		cfg.Logger.Warnf("environment: %v", err)
	}

	return cfg
}

type durationFlag struct {
	name  string
	dst   *time.Duration
	value time.Duration
	usage string
}

// parseFlags falls back to the default for a zero or negative interval and
// reports it.
func parseFlags(cfg *Config, fs *flag.FlagSet, args []string) error {
	var origins string

	fs.StringVar(&cfg.RunAddress, "a", "localhost:8080", "HTTP server address")
	fs.StringVar(&cfg.DatabaseURI, "d", "", "DB connection string")
	fs.StringVar(&cfg.SecretKey, "k", "", "token signing key")
	fs.StringVar(&cfg.TraceLogPath, "trace", "", "human readable trace log path")
	fs.StringVar(&origins, "cors", "", "comma separated allowed origins")

	durations := []durationFlag{
		{"tick", &cfg.TickInterval, 5 * time.Second, "distribution tick interval"},
		{"watchdog", &cfg.WatchdogInterval, time.Minute, "overdue watchdog interval"},
		{"wakeup", &cfg.WakeupInterval, time.Minute, "deferred wakeup interval"},
		{"commission-sweep", &cfg.CommissionSweepInterval, 5 * time.Minute, "missing commission sweep interval"},
		{"settings-ttl", &cfg.SettingsTTL, 2 * time.Minute, "settings cache TTL"},
	}
	for _, d := range durations {
		fs.DurationVar(d.dst, d.name, d.value, d.usage)
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg.CORSOrigins = splitList(origins)

	var invalid []string
	for _, d := range durations {
		if *d.dst <= 0 {
			invalid = append(invalid, fmt.Sprintf("-%s %s", d.name, *d.dst))
			*d.dst = d.value
		}
	}
	if len(invalid) > 0 {
		return fmt.Errorf("non-positive intervals replaced by defaults: %s", strings.Join(invalid, ", "))
	}
	return nil
}

func ReadServerEnvironment(cfg *Config) error {
	if runAddress := os.Getenv("RUN_ADDRESS"); runAddress != "" {
		cfg.RunAddress = runAddress
	}

	if databaseURI := os.Getenv("DATABASE_URI"); databaseURI != "" {
		cfg.DatabaseURI = databaseURI
	}

	if secretKey := os.Getenv("SECRET_KEY"); secretKey != "" {
		cfg.SecretKey = secretKey
	}

	if tracePath := os.Getenv("TRACE_LOG_PATH"); tracePath != "" {
		cfg.TraceLogPath = tracePath
	}

	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		cfg.CORSOrigins = splitList(origins)
	}

	durations := []struct {
		env string
		dst *time.Duration
	}{
		{"TICK_INTERVAL", &cfg.TickInterval},
		{"WATCHDOG_INTERVAL", &cfg.WatchdogInterval},
		{"WAKEUP_INTERVAL", &cfg.WakeupInterval},
		{"COMMISSION_SWEEP_INTERVAL", &cfg.CommissionSweepInterval},
		{"SETTINGS_TTL", &cfg.SettingsTTL},
	}
	for _, d := range durations {
		raw := os.Getenv(d.env)
		if raw == "" {
			continue
		}
		v, err := time.ParseDuration(raw)
		if err != nil || v <= 0 {
			return fmt.Errorf("%s: invalid duration %q", d.env, raw)
		}
		*d.dst = v
	}

	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
