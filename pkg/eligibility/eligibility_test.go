package eligibility

import (
	"context"
	"errors"
	"testing"

	"vouchd/pkg/platform"
)

type fakeDirectory struct {
	members map[string]*platform.Member
	err     error
}

func (f *fakeDirectory) Member(_ context.Context, _, userID string) (*platform.Member, error) {
	if f.err != nil {
		return nil, f.err
	}
	m, ok := f.members[userID]
	if !ok {
		return nil, platform.ErrMemberNotFound
	}
	return m, nil
}

func TestAllowStaffMember(t *testing.T) {
	dir := &fakeDirectory{members: map[string]*platform.Member{
		"1001": {ID: "1001", Roles: []string{"other", "staff-a"}},
		"1002": {ID: "1002", Roles: []string{"other"}},
	}}
	g := New(dir, "g1", []string{"staff-a", "staff-b"})

	if !g.Allow(context.Background(), "1001") {
		t.Fatal("staff member denied")
	}
	if g.Allow(context.Background(), "1002") {
		t.Fatal("non-staff member allowed")
	}
	if g.Allow(context.Background(), "9999") {
		t.Fatal("unknown member allowed")
	}
}

func TestAllowDeniesOnLookupError(t *testing.T) {
	dir := &fakeDirectory{err: errors.New("upstream down")}
	g := New(dir, "g1", []string{"staff-a"})
	if g.Allow(context.Background(), "1001") {
		t.Fatal("lookup failure allowed a vouch")
	}
}

func TestAllowEmptyStaffSet(t *testing.T) {
	dir := &fakeDirectory{members: map[string]*platform.Member{
		"1001": {ID: "1001", Roles: []string{"staff-a"}},
	}}
	g := New(dir, "g1", nil)
	if g.Allow(context.Background(), "1001") {
		t.Fatal("empty staff set allowed a vouch")
	}
}
