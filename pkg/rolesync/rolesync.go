// Package rolesync keeps the external trusted-role flag in agreement
// with a subject's vouch count. Reconciliation is idempotent and
// convergent: redundant calls are safe, and a later call with an
// accurate count always wins in observable end state.
package rolesync

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"vouchd/pkg/logger"
	"vouchd/pkg/platform"
	"vouchd/pkg/telemetry"
)

// Counts is the read-only ledger view the syncer needs.
type Counts interface {
	CountFor(subjectID string) int
}

// Syncer reconciles one subject at a time against the threshold rule.
type Syncer struct {
	counts    Counts
	roles     platform.RoleClient
	guildID   string
	roleID    string
	threshold int
	timeout   time.Duration
	limiter   *rate.Limiter
}

// New builds a Syncer. Platform role mutations are rate-limited upstream,
// so grant/revoke calls pass through a local limiter; rps <= 0 disables
// local limiting.
func New(counts Counts, roles platform.RoleClient, guildID, roleID string, threshold int, timeout time.Duration, rps float64, burst int) *Syncer {
	if threshold <= 0 {
		threshold = 5
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	var lim *rate.Limiter
	if rps > 0 {
		if burst <= 0 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return &Syncer{
		counts:    counts,
		roles:     roles,
		guildID:   guildID,
		roleID:    roleID,
		threshold: threshold,
		timeout:   timeout,
		limiter:   lim,
	}
}

// Threshold returns the configured qualification threshold.
func (s *Syncer) Threshold() int { return s.threshold }

// Reconcile brings the subject's trusted-role flag into agreement with
// the threshold rule. No platform call is made when the state already
// matches. Failures are logged and swallowed; role sync is best-effort
// and never fails the ledger mutation that triggered it.
func (s *Syncer) Reconcile(ctx context.Context, subjectID string) {
	qualified := s.counts.CountFor(subjectID) >= s.threshold

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	has, err := s.roles.HasRole(cctx, s.guildID, subjectID, s.roleID)
	if err != nil {
		logger.Warn("role_state_lookup_failed", "subject", subjectID, "error", err)
		telemetry.RoleSyncFailures.Inc()
		return
	}
	if has == qualified {
		return
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(cctx); err != nil {
			logger.Warn("role_sync_rate_wait_failed", "subject", subjectID, "error", err)
			telemetry.RoleSyncFailures.Inc()
			return
		}
	}

	if qualified {
		if err := s.roles.GrantRole(cctx, s.guildID, subjectID, s.roleID); err != nil {
			logger.Warn("role_grant_failed", "subject", subjectID, "error", err)
			telemetry.RoleSyncFailures.Inc()
			return
		}
		telemetry.RoleGrants.Inc()
		logger.Info("role_granted", "subject", subjectID)
		return
	}
	if err := s.roles.RevokeRole(cctx, s.guildID, subjectID, s.roleID); err != nil {
		logger.Warn("role_revoke_failed", "subject", subjectID, "error", err)
		telemetry.RoleSyncFailures.Inc()
		return
	}
	telemetry.RoleRevokes.Inc()
	logger.Info("role_revoked", "subject", subjectID)
}
