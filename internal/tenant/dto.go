package tenant

import (
	"errors"
	"regexp"
	"strings"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// OnboardInput captures tenant onboarding input. The first member becomes the
// tenant admin.
type OnboardInput struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Timezone    string `json:"timezone"`
	AdminUserID int64  `json:"admin_user_id"`
}

// Validate ensures onboarding input correctness.
func (in OnboardInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return errors.New("tenant: name required")
	}
	if !slugPattern.MatchString(in.Slug) {
		return errors.New("tenant: slug must be lowercase letters, digits and hyphens")
	}
	if in.AdminUserID == 0 {
		return errors.New("tenant: admin user required")
	}
	return nil
}

// AddMemberInput captures membership creation input.
type AddMemberInput struct {
	TenantID int64 `json:"-"`
	UserID   int64 `json:"user_id"`
	Role     Role  `json:"role"`
}

// Validate ensures membership input correctness.
func (in AddMemberInput) Validate() error {
	if in.TenantID == 0 || in.UserID == 0 {
		return errors.New("tenant: tenant and user required")
	}
	if !in.Role.Valid() {
		return ErrInvalidRole
	}
	return nil
}
