// Package access resolves a user's permission tier against a plan.
package access

import (
	"context"
	"errors"
	"fmt"

	"tripline/internal/domain"
	"tripline/internal/repo"
)

// ForbiddenError indicates the resolved access level is insufficient.
type ForbiddenError struct {
	Level domain.AccessLevel
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("access denied (level %s)", e.Level)
}

// Evaluator computes access levels from plan ownership, visibility and
// membership rows. Read-only.
type Evaluator struct {
	Repo repo.Repo
}

// Evaluate resolves the access level of userID (zero for anonymous) against
// planID. Ownership precedes every visibility check: an owner keeps access
// to their own private plan.
func (ev Evaluator) Evaluate(ctx context.Context, planID, userID int64) (domain.AccessLevel, error) {
	plan, err := ev.Repo.GetPlan(ctx, planID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.AccessNone, nil
		}
		return domain.AccessNone, err
	}
	if userID != 0 && userID == plan.OwnerID {
		return domain.AccessOwner, nil
	}
	if plan.Visibility == domain.VisibilityPublic {
		return domain.AccessPublic, nil
	}
	if plan.Visibility == domain.VisibilityShared && userID != 0 {
		if _, err := ev.Repo.GetMember(ctx, planID, userID); err == nil {
			return domain.AccessMember, nil
		} else if !errors.Is(err, repo.ErrNotFound) {
			return domain.AccessNone, err
		}
	}
	return domain.AccessNone, nil
}
