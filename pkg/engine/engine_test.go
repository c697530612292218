package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"vouchd/pkg/eligibility"
	"vouchd/pkg/ledger"
	"vouchd/pkg/models"
	"vouchd/pkg/platform"
	"vouchd/pkg/rolesync"
)

// member ids used across the fixtures: 1001/1002 are staff, 2001 is a
// plain member
const (
	staffA  = "1001"
	staffB  = "1002"
	memberA = "2001"
)

type fakePlatform struct {
	members map[string]*platform.Member
	holders map[string]bool
	grants  int
	revokes int
	notices []string
}

func (f *fakePlatform) Member(_ context.Context, _, userID string) (*platform.Member, error) {
	m, ok := f.members[userID]
	if !ok {
		return nil, platform.ErrMemberNotFound
	}
	return m, nil
}

func (f *fakePlatform) HasRole(_ context.Context, _, userID, _ string) (bool, error) {
	return f.holders[userID], nil
}

func (f *fakePlatform) GrantRole(_ context.Context, _, userID, _ string) error {
	f.grants++
	f.holders[userID] = true
	return nil
}

func (f *fakePlatform) RevokeRole(_ context.Context, _, userID, _ string) error {
	f.revokes++
	f.holders[userID] = false
	return nil
}

func (f *fakePlatform) Notify(_ context.Context, _, _, text string) error {
	f.notices = append(f.notices, text)
	return nil
}

type memStore struct {
	saves int
	last  models.Snapshot
}

func (m *memStore) Load() (models.Snapshot, error) { return m.last, nil }
func (m *memStore) Save(s models.Snapshot) error {
	m.saves++
	m.last = s
	return nil
}
func (m *memStore) Close() error { return nil }

func newTestEngine(maxPerSubject, maxTotal int) (*Engine, *fakePlatform, *memStore) {
	fp := &fakePlatform{
		members: map[string]*platform.Member{
			staffA:  {ID: staffA, Roles: []string{"staffrole"}},
			staffB:  {ID: staffB, Roles: []string{"staffrole", "other"}},
			memberA: {ID: memberA, Roles: []string{"other"}},
		},
		holders: map[string]bool{},
	}
	led := ledger.New(maxPerSubject, maxTotal)
	gate := eligibility.New(fp, "g1", []string{"staffrole"})
	syncer := rolesync.New(led, fp, "g1", "trusted", 5, time.Second, 0, 0)
	st := &memStore{}
	return New(led, gate, st, syncer, fp, "vouch-chan"), fp, st
}

func msg(author, msgID, text string) models.MessageEvent {
	return models.MessageEvent{
		AuthorID:  author,
		ChannelID: "vouch-chan",
		MessageID: msgID,
		Text:      text,
	}
}

func TestFiveVouchesGrantTrustedRole(t *testing.T) {
	eng, fp, st := newTestEngine(10, 100)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		eng.OnMessage(ctx, msg(fmt.Sprintf("u%d", i), fmt.Sprintf("m%d", i), "+vouch <@"+staffA+"> always delivers"))
	}
	if got := eng.Ledger().CountFor(staffA); got != 5 {
		t.Fatalf("CountFor = %d, want 5", got)
	}
	if fp.grants != 1 {
		t.Fatalf("grants = %d, want 1", fp.grants)
	}
	if !fp.holders[staffA] {
		t.Fatal("trusted role not held")
	}
	if st.saves != 5 {
		t.Fatalf("snapshot saves = %d, want 5", st.saves)
	}
}

func TestChannelFilter(t *testing.T) {
	eng, _, st := newTestEngine(10, 100)
	ev := models.MessageEvent{
		AuthorID:  "u1",
		ChannelID: "other-chan",
		MessageID: "m1",
		Text:      "+vouch <@" + staffA + "> great person",
	}
	eng.OnMessage(context.Background(), ev)
	if got := eng.Ledger().CountFor(staffA); got != 0 {
		t.Fatalf("vouch recorded outside the vouch channel: %d", got)
	}
	if st.saves != 0 {
		t.Fatalf("snapshot saved with no mutation: %d", st.saves)
	}
}

func TestIneligibleSubjectIgnored(t *testing.T) {
	eng, fp, _ := newTestEngine(10, 100)
	ctx := context.Background()
	// plain member, then an unknown id
	eng.OnMessage(ctx, msg("u1", "m1", "+vouch <@"+memberA+"> nice person"))
	eng.OnMessage(ctx, msg("u1", "m2", "+vouch 999999 nice person"))
	if s, e := eng.Ledger().Stats(); s != 0 || e != 0 {
		t.Fatalf("ineligible vouches recorded: %d subjects, %d entries", s, e)
	}
	if len(fp.notices) != 0 {
		t.Fatalf("silent denial produced a notice: %v", fp.notices)
	}
}

func TestDuplicateMessageIgnored(t *testing.T) {
	eng, _, st := newTestEngine(10, 100)
	ctx := context.Background()
	eng.OnMessage(ctx, msg("u1", "m1", "+vouch <@"+staffA+"> great work"))
	eng.OnMessage(ctx, msg("u1", "m1", "+vouch <@"+staffA+"> great work"))
	if got := eng.Ledger().CountFor(staffA); got != 1 {
		t.Fatalf("CountFor = %d, want 1", got)
	}
	if st.saves != 1 {
		t.Fatalf("duplicate triggered a save: %d", st.saves)
	}
}

func TestDeletionRetractsAndRevokes(t *testing.T) {
	eng, fp, _ := newTestEngine(10, 100)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		eng.OnMessage(ctx, msg(fmt.Sprintf("u%d", i), fmt.Sprintf("m%d", i), "+vouch "+staffA+" always on time"))
	}
	if fp.grants != 1 {
		t.Fatalf("grants = %d, want 1", fp.grants)
	}

	eng.OnMessageDeleted(ctx, models.MessageDeletedEvent{ChannelID: "vouch-chan", MessageID: "m2"})
	if got := eng.Ledger().CountFor(staffA); got != 4 {
		t.Fatalf("CountFor = %d, want 4", got)
	}
	if fp.revokes != 1 {
		t.Fatalf("revokes = %d, want 1", fp.revokes)
	}

	// unknown message id is a no-op
	eng.OnMessageDeleted(ctx, models.MessageDeletedEvent{ChannelID: "vouch-chan", MessageID: "never-seen"})
	if got := eng.Ledger().CountFor(staffA); got != 4 {
		t.Fatalf("CountFor changed on unknown deletion: %d", got)
	}
}

func TestDeletionOutsideVouchChannelIgnored(t *testing.T) {
	eng, fp, st := newTestEngine(10, 100)
	ctx := context.Background()
	eng.OnMessage(ctx, msg("u1", "m1", "+vouch <@"+staffA+"> honest trader"))
	if got := eng.Ledger().CountFor(staffA); got != 1 {
		t.Fatalf("CountFor = %d, want 1", got)
	}
	saves := st.saves

	// a deletion carrying the same message id but another channel must
	// not touch the ledger
	eng.OnMessageDeleted(ctx, models.MessageDeletedEvent{ChannelID: "other-chan", MessageID: "m1"})
	if got := eng.Ledger().CountFor(staffA); got != 1 {
		t.Fatalf("foreign-channel deletion retracted the entry: count = %d", got)
	}
	if st.saves != saves {
		t.Fatalf("foreign-channel deletion flushed a snapshot: %d saves", st.saves)
	}
	if fp.revokes != 0 {
		t.Fatalf("foreign-channel deletion reconciled roles: %d revokes", fp.revokes)
	}

	eng.OnMessageDeleted(ctx, models.MessageDeletedEvent{ChannelID: "vouch-chan", MessageID: "m1"})
	if got := eng.Ledger().CountFor(staffA); got != 0 {
		t.Fatalf("in-channel deletion did not retract: count = %d", got)
	}
}

func TestCapacityRejectionNotifies(t *testing.T) {
	eng, fp, _ := newTestEngine(2, 100)
	ctx := context.Background()
	eng.OnMessage(ctx, msg("u1", "m1", "+vouch <@"+staffA+"> first vouch"))
	eng.OnMessage(ctx, msg("u2", "m2", "+vouch <@"+staffA+"> second vouch"))
	eng.OnMessage(ctx, msg("u3", "m3", "+vouch <@"+staffA+"> third vouch"))
	if got := eng.Ledger().CountFor(staffA); got != 2 {
		t.Fatalf("CountFor = %d, want 2", got)
	}
	if len(fp.notices) != 1 {
		t.Fatalf("notices = %d, want 1", len(fp.notices))
	}
}

func TestSnapshotPersistedAfterMutation(t *testing.T) {
	eng, _, st := newTestEngine(10, 100)
	ctx := context.Background()
	eng.OnMessage(ctx, msg("u1", "m1", "+vouch <@"+staffB+"> dependable and fair"))
	if st.last == nil {
		t.Fatal("no snapshot persisted")
	}
	rec, ok := st.last[staffB]
	if !ok || rec.Count != 1 || len(rec.Entries) != 1 {
		t.Fatalf("persisted record = %+v", rec)
	}
	if rec.Entries[0].MessageID != "m1" || rec.Entries[0].By != "u1" {
		t.Fatalf("persisted entry = %+v", rec.Entries[0])
	}
}
