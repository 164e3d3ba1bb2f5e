package access

import (
	"context"
	"testing"

	"tripline/internal/db"
	"tripline/internal/domain"
	"tripline/internal/migrate"
	"tripline/internal/repo"
)

type accessEnv struct {
	repo     repo.Repo
	owner    domain.User
	member   domain.User
	stranger domain.User
}

func newAccessEnv(t *testing.T) accessEnv {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	r := repo.Repo{DB: conn}
	ctx := context.Background()
	owner, _ := r.InsertUser(ctx, "owner@example.com", "")
	member, _ := r.InsertUser(ctx, "member@example.com", "")
	stranger, _ := r.InsertUser(ctx, "stranger@example.com", "")
	return accessEnv{repo: r, owner: owner, member: member, stranger: stranger}
}

func (e accessEnv) plan(t *testing.T, v domain.Visibility) domain.Plan {
	t.Helper()
	p, err := e.repo.InsertPlan(context.Background(), domain.Plan{
		OwnerID: e.owner.ID, Title: "Trip", StartDate: "2026-01-01", EndDate: "2026-01-05", Visibility: v,
	})
	if err != nil {
		t.Fatalf("insert plan: %v", err)
	}
	return p
}

func TestEvaluateLevels(t *testing.T) {
	env := newAccessEnv(t)
	ctx := context.Background()
	ev := Evaluator{Repo: env.repo}

	private := env.plan(t, domain.VisibilityPrivate)
	shared := env.plan(t, domain.VisibilityShared)
	public := env.plan(t, domain.VisibilityPublic)
	if err := env.repo.AddMember(ctx, shared.ID, env.member.ID); err != nil {
		t.Fatalf("add member: %v", err)
	}

	cases := []struct {
		name   string
		planID int64
		userID int64
		want   domain.AccessLevel
	}{
		{"owner private", private.ID, env.owner.ID, domain.AccessOwner},
		{"stranger private", private.ID, env.stranger.ID, domain.AccessNone},
		{"anonymous private", private.ID, 0, domain.AccessNone},
		{"member shared", shared.ID, env.member.ID, domain.AccessMember},
		{"stranger shared", shared.ID, env.stranger.ID, domain.AccessNone},
		{"anonymous shared", shared.ID, 0, domain.AccessNone},
		{"stranger public", public.ID, env.stranger.ID, domain.AccessPublic},
		{"anonymous public", public.ID, 0, domain.AccessPublic},
		{"missing plan", 99999, env.owner.ID, domain.AccessNone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ev.Evaluate(ctx, tc.planID, tc.userID)
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			if got != tc.want {
				t.Fatalf("level = %s, want %s", got, tc.want)
			}
		})
	}
}

// Ownership outranks visibility: the owner of a public plan is still owner.
func TestEvaluateOwnerPrecedesVisibility(t *testing.T) {
	env := newAccessEnv(t)
	ev := Evaluator{Repo: env.repo}
	public := env.plan(t, domain.VisibilityPublic)
	got, err := ev.Evaluate(context.Background(), public.ID, env.owner.ID)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got != domain.AccessOwner {
		t.Fatalf("level = %s, want owner", got)
	}
}

// A membership row on a private plan grants nothing; membership only counts
// under shared visibility.
func TestEvaluateMembershipIgnoredOnPrivate(t *testing.T) {
	env := newAccessEnv(t)
	ctx := context.Background()
	ev := Evaluator{Repo: env.repo}
	private := env.plan(t, domain.VisibilityPrivate)
	if err := env.repo.AddMember(ctx, private.ID, env.member.ID); err != nil {
		t.Fatalf("add member: %v", err)
	}
	got, err := ev.Evaluate(ctx, private.ID, env.member.ID)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got != domain.AccessNone {
		t.Fatalf("level = %s, want none", got)
	}
}
