package app

import (
	"fmt"
	"os"

	"vouchd/pkg/config"
	"vouchd/pkg/logger"
)

// validateConfig performs quick, fail-fast validation of the effective
// configuration before starting long-running services. Keep checks light
// and focused so callers can surface user-friendly errors.
func validateConfig(eff config.EffectiveConfigResult) error {
	if p := eff.DBPath; p == "" {
		return fmt.Errorf("storage path is empty: set --db flag, VOUCHD_DB_PATH env, or storage.path in config")
	}

	cfg := eff.Config
	if cfg.Platform.GuildID == "" {
		return fmt.Errorf("platform.guild_id is required (or VOUCHD_GUILD_ID)")
	}
	if cfg.Platform.VouchChannelID == "" {
		return fmt.Errorf("platform.vouch_channel_id is required (or VOUCHD_VOUCH_CHANNEL_ID)")
	}
	if cfg.Platform.TrustedRoleID == "" {
		return fmt.Errorf("platform.trusted_role_id is required (or VOUCHD_TRUSTED_ROLE_ID)")
	}
	if len(cfg.Platform.StaffRoleIDs) == 0 {
		logger.Warn("no_staff_roles_configured", "msg", "every vouch attempt will fail eligibility")
	}

	cert := cfg.Server.TLS.CertFile
	key := cfg.Server.TLS.KeyFile
	if (cert != "" && key == "") || (cert == "" && key != "") {
		return fmt.Errorf("incomplete TLS configuration: both server.tls.cert_file and server.tls.key_file must be set")
	}
	if cert != "" {
		if _, err := os.Stat(cert); err != nil {
			return fmt.Errorf("tls cert file not accessible: %w", err)
		}
		if _, err := os.Stat(key); err != nil {
			return fmt.Errorf("tls key file not accessible: %w", err)
		}
	}

	return nil
}
