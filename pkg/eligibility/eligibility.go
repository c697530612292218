// Package eligibility decides whether a vouch subject qualifies to
// receive vouches. Only staff-designated members may be vouched for.
package eligibility

import (
	"context"

	"vouchd/pkg/logger"
	"vouchd/pkg/platform"
)

// Gate checks subject eligibility against the guild member directory and
// the configured staff role set. It is side-effect free and safe to call
// repeatedly for the same subject.
type Gate struct {
	dir        platform.Directory
	guildID    string
	staffRoles map[string]struct{}
}

// New builds a Gate for the given directory and staff role ids.
func New(dir platform.Directory, guildID string, staffRoleIDs []string) *Gate {
	set := make(map[string]struct{}, len(staffRoleIDs))
	for _, id := range staffRoleIDs {
		set[id] = struct{}{}
	}
	return &Gate{dir: dir, guildID: guildID, staffRoles: set}
}

// Allow reports whether subjectID may receive vouches: the subject must
// resolve to a current guild member holding at least one staff role.
// Lookup failures deny; the caller treats denial as a silent ignore.
func (g *Gate) Allow(ctx context.Context, subjectID string) bool {
	m, err := g.dir.Member(ctx, g.guildID, subjectID)
	if err != nil {
		if err != platform.ErrMemberNotFound {
			logger.Warn("eligibility_lookup_failed", "subject", subjectID, "error", err)
		}
		return false
	}
	for _, r := range m.Roles {
		if _, ok := g.staffRoles[r]; ok {
			return true
		}
	}
	return false
}
