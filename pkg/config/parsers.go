package config

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
)

// Flags holds parsed command-line flag values and which were set.
type Flags struct {
	Addr   string
	DB     string
	Config string
	Set    map[string]bool
}

// EffectiveConfigResult holds the result of LoadEffectiveConfig.
type EffectiveConfigResult struct {
	Config *Config
	Addr   string
	DBPath string
	Source string // "flags", "config", or "env"
}

// ParseConfigFlags parses command-line flags and returns them as a Flags struct.
func ParseConfigFlags() Flags {
	addrPtr := flag.String("addr", ":8080", "HTTP listen address")
	dbPtr := flag.String("db", "./.vouchdb", "snapshot store path")
	cfgPtr := flag.String("config", "./config.yaml", "Path to config file")
	flag.Parse()
	setFlags := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })
	return Flags{Addr: *addrPtr, DB: *dbPtr, Config: *cfgPtr, Set: setFlags}
}

// ParseConfigFile resolves the config path and loads the YAML file. It
// returns the parsed config, a boolean indicating whether the file was
// present, and an error for fatal parsing problems.
func ParseConfigFile(flags Flags) (*Config, bool, error) {
	cfgPath := ResolveConfigPath(flags.Config, flags.Set["config"])
	cfg, err := Load(cfgPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, false, nil
		}
		return nil, false, err
	}
	return cfg, true, nil
}

// ParseConfigEnvs reads environment variables into a fresh Config and
// reports whether any were present. This function does not mutate any
// caller-provided config.
func ParseConfigEnvs() (*Config, bool) {
	envCfg := &Config{}
	envUsed := false
	parseList := func(v string) []string {
		if v == "" {
			return nil
		}
		parts := []string{}
		for _, p := range strings.Split(v, ",") {
			if s := strings.TrimSpace(p); s != "" {
				parts = append(parts, s)
			}
		}
		return parts
	}

	// Server address/port
	if v := os.Getenv("VOUCHD_ADDR"); v != "" {
		envUsed = true
		if h, p, err := net.SplitHostPort(v); err == nil {
			envCfg.Server.Address = h
			if pi, err := strconv.Atoi(p); err == nil {
				envCfg.Server.Port = pi
			}
		} else {
			envCfg.Server.Address = v
		}
	} else {
		if host := os.Getenv("VOUCHD_SERVER_ADDRESS"); host != "" {
			envUsed = true
			envCfg.Server.Address = host
		}
		if port := os.Getenv("VOUCHD_SERVER_PORT"); port != "" {
			envUsed = true
			if pi, err := strconv.Atoi(port); err == nil {
				envCfg.Server.Port = pi
			}
		}
	}

	if v := os.Getenv("VOUCHD_DB_PATH"); v != "" {
		envUsed = true
		envCfg.Storage.Path = v
	}
	if v := os.Getenv("VOUCHD_STORAGE_BACKEND"); v != "" {
		envUsed = true
		envCfg.Storage.Backend = strings.ToLower(strings.TrimSpace(v))
	}

	// Platform boundary
	if v := os.Getenv("VOUCHD_PLATFORM_BASE_URL"); v != "" {
		envUsed = true
		envCfg.Platform.BaseURL = v
	}
	if v := os.Getenv("VOUCHD_PLATFORM_TOKEN"); v != "" {
		envUsed = true
		envCfg.Platform.Token = v
	}
	if v := os.Getenv("VOUCHD_GUILD_ID"); v != "" {
		envUsed = true
		envCfg.Platform.GuildID = v
	}
	if v := os.Getenv("VOUCHD_VOUCH_CHANNEL_ID"); v != "" {
		envUsed = true
		envCfg.Platform.VouchChannelID = v
	}
	if v := os.Getenv("VOUCHD_TRUSTED_ROLE_ID"); v != "" {
		envUsed = true
		envCfg.Platform.TrustedRoleID = v
	}
	if v := os.Getenv("VOUCHD_STAFF_ROLE_IDS"); v != "" {
		envUsed = true
		envCfg.Platform.StaffRoleIDs = parseList(v)
	}

	// Ledger bounds and role-sync threshold
	if v := os.Getenv("VOUCHD_MAX_PER_SUBJECT"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			envUsed = true
			envCfg.Ledger.MaxPerSubject = n
		}
	}
	if v := os.Getenv("VOUCHD_MAX_TOTAL"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			envUsed = true
			envCfg.Ledger.MaxTotal = n
		}
	}
	if v := os.Getenv("VOUCHD_TRUST_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			envUsed = true
			envCfg.RoleSync.Threshold = n
		}
	}

	// Operator API protection
	if v := os.Getenv("VOUCHD_CORS_ORIGINS"); v != "" {
		envUsed = true
		envCfg.Security.CORS.AllowedOrigins = parseList(v)
	}
	if v := os.Getenv("VOUCHD_RATE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			envUsed = true
			envCfg.Security.RateLimit.RPS = f
		}
	}
	if v := os.Getenv("VOUCHD_RATE_BURST"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			envUsed = true
			envCfg.Security.RateLimit.Burst = n
		}
	}
	if v := os.Getenv("VOUCHD_API_BACKEND_KEYS"); v != "" {
		envUsed = true
		envCfg.Security.APIKeys.Backend = parseList(v)
	}
	if v := os.Getenv("VOUCHD_API_ADMIN_KEYS"); v != "" {
		envUsed = true
		envCfg.Security.APIKeys.Admin = parseList(v)
	}

	// Sweep
	if v := os.Getenv("VOUCHD_SWEEP_CRON"); v != "" {
		envUsed = true
		envCfg.Sweep.Enabled = true
		envCfg.Sweep.Cron = v
	}

	// TLS cert/key
	if c := os.Getenv("VOUCHD_TLS_CERT"); c != "" {
		envUsed = true
		envCfg.Server.TLS.CertFile = c
	}
	if k := os.Getenv("VOUCHD_TLS_KEY"); k != "" {
		envUsed = true
		envCfg.Server.TLS.KeyFile = k
	}

	return envCfg, envUsed
}

// LoadEffectiveConfig decides which single source to use (flags, config
// file, or env) and returns the effective config plus resolved addr and
// dbPath. An explicit --config requires the file to exist and uses it;
// otherwise explicit addr/db flags win; else a present config file; else
// the environment.
func LoadEffectiveConfig(flags Flags, fileCfg *Config, fileExists bool, envCfg *Config, envUsed bool) (EffectiveConfigResult, error) {
	var res EffectiveConfigResult

	if flags.Set["config"] {
		if !fileExists {
			return res, fmt.Errorf("config file %s not found", flags.Config)
		}
		fileCfg.Normalize()
		res.Config = fileCfg
		res.Addr = fileCfg.Addr()
		res.DBPath = fileCfg.Storage.Path
		res.Source = "config"
		return res, nil
	}

	if flags.Set["addr"] || flags.Set["db"] {
		addr := flags.Addr
		if !flags.Set["addr"] {
			addr = envCfg.Addr()
			if addr == "" {
				addr = fileCfg.Addr()
			}
		}
		dbPath := flags.DB
		if !flags.Set["db"] {
			if p := strings.TrimSpace(envCfg.Storage.Path); p != "" {
				dbPath = p
			} else if p := strings.TrimSpace(fileCfg.Storage.Path); p != "" {
				dbPath = p
			}
		}
		// carry platform/ledger settings from env or file alongside the flags
		out := envCfg
		if !envUsed && fileExists {
			out = fileCfg
		}
		out.Server.Address = addr
		out.Server.Port = parsePortFromAddr(addr)
		out.Storage.Path = dbPath
		out.Normalize()
		res.Config = out
		res.Addr = addr
		res.DBPath = dbPath
		res.Source = "flags"
		return res, nil
	}

	if fileExists {
		fileCfg.Normalize()
		res.Config = fileCfg
		res.Addr = fileCfg.Addr()
		res.DBPath = fileCfg.Storage.Path
		res.Source = "config"
		return res, nil
	}
	// fallback to env
	envCfg.Normalize()
	res.Config = envCfg
	res.Addr = envCfg.Addr()
	res.DBPath = envCfg.Storage.Path
	res.Source = "env"
	return res, nil
}

// parsePortFromAddr extracts port integer from host:port string.
func parsePortFromAddr(a string) int {
	if a == "" {
		return 0
	}
	if _, p, err := net.SplitHostPort(a); err == nil {
		if pi, err := strconv.Atoi(p); err == nil {
			return pi
		}
	}
	return 0
}
