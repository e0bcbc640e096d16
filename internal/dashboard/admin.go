package dashboard

import (
	"context"
	"strings"
	"unicode/utf8"

	"openvote/dashboard/internal/apperr"
	"openvote/dashboard/internal/rbac"
	"openvote/dashboard/internal/remote"
)

const minPasswordLength = 6

// GenerateActivationToken creates a one-time enrolment token for an observer
// or coordinator in a region.
func (d *Dashboard) GenerateActivationToken(ctx context.Context, role, regionID string) (remote.ActivationToken, error) {
	if _, err := d.require(ctx, rbac.ActionGenerateToken); err != nil {
		return remote.ActivationToken{}, err
	}
	r, ok := rbac.Parse(strings.TrimSpace(role))
	if !ok {
		return remote.ActivationToken{}, apperr.Validation("INVALID_ROLE", "choose one of the known roles")
	}
	regionID = strings.TrimSpace(regionID)
	if regionID == "" {
		return remote.ActivationToken{}, apperr.Validation("MISSING_REGION", "a region is required")
	}
	tok, err := d.backend.GenerateToken(ctx, string(r), regionID)
	if err != nil {
		return remote.ActivationToken{}, d.check(err)
	}
	return tok, nil
}

// Register creates an account. It needs no session.
func (d *Dashboard) Register(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return apperr.Validation("MISSING_USERNAME", "a username is required")
	}
	if utf8.RuneCountInString(password) < minPasswordLength {
		return apperr.Validation("WEAK_PASSWORD", "the password needs at least 6 characters")
	}
	return d.backend.Register(ctx, username, password)
}

func (d *Dashboard) ListUsers(ctx context.Context) ([]remote.User, error) {
	if _, err := d.require(ctx, rbac.ActionManageUsers); err != nil {
		return nil, err
	}
	users, err := d.backend.ListUsers(ctx)
	if err != nil {
		return nil, d.check(err)
	}
	return users, nil
}

// UpdateUserRole changes another user's role and region. Administrators
// cannot change their own account.
func (d *Dashboard) UpdateUserRole(ctx context.Context, userID, role, regionID string) error {
	sess, err := d.require(ctx, rbac.ActionManageUsers)
	if err != nil {
		return err
	}
	if userID == "" {
		return apperr.Validation("MISSING_USER", "choose a user")
	}
	if userID == sess.UserID {
		return apperr.Validation("SELF_MODIFY", "you cannot change your own role")
	}
	r, ok := rbac.Parse(strings.TrimSpace(role))
	if !ok {
		return apperr.Validation("INVALID_ROLE", "choose one of the known roles")
	}
	return d.check(d.backend.UpdateUser(ctx, userID, string(r), strings.TrimSpace(regionID)))
}

func (d *Dashboard) DeleteUser(ctx context.Context, userID string) error {
	sess, err := d.require(ctx, rbac.ActionManageUsers)
	if err != nil {
		return err
	}
	if userID == "" {
		return apperr.Validation("MISSING_USER", "choose a user")
	}
	if userID == sess.UserID {
		return apperr.Validation("SELF_DELETE", "you cannot delete your own account")
	}
	return d.check(d.backend.DeleteUser(ctx, userID))
}
