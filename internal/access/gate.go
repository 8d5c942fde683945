package access

import (
	"fmt"
	"sort"

	"guest-visits-backend/internal/apperr"
)

// Principal is an authenticated actor and the codes it effectively holds.
type Principal struct {
	ID          string
	Username    string
	DisplayName string
	IsAdmin     bool
	RoleID      *string
	RoleName    string

	granted map[Code]struct{}
}

// NewPrincipal builds a principal from its role grants. Codes outside the
// catalog are dropped. A non-admin without a role holds nothing.
func NewPrincipal(id, username, displayName string, isAdmin bool, roleID *string, roleName string, granted []Code) Principal {
	p := Principal{
		ID:          id,
		Username:    username,
		DisplayName: displayName,
		IsAdmin:     isAdmin,
		RoleID:      roleID,
		RoleName:    roleName,
		granted:     make(map[Code]struct{}, len(granted)),
	}
	if roleID == nil {
		return p
	}
	for _, c := range granted {
		if c.Valid() {
			p.granted[c] = struct{}{}
		}
	}
	return p
}

// Name is the label used in event payloads and notifications.
func (p Principal) Name() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.Username
}

// Has reports whether the principal may perform the operation named by c.
// Unknown codes never match, administrators included.
func (p Principal) Has(c Code) bool {
	if !c.Valid() {
		return false
	}
	if p.IsAdmin {
		return true
	}
	_, ok := p.granted[c]
	return ok
}

// Effective returns the sorted set of codes the principal holds.
func (p Principal) Effective() []Code {
	if p.IsAdmin {
		return All()
	}
	codes := make([]Code, 0, len(p.granted))
	for c := range p.granted {
		codes = append(codes, c)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}

// UIPermissions returns only the display-safe subset of the effective set.
func (p Principal) UIPermissions() []Code {
	codes := []Code{}
	for _, c := range p.Effective() {
		if c.IsUI() {
			codes = append(codes, c)
		}
	}
	return codes
}

// ForbiddenError names the code a principal was missing.
type ForbiddenError struct {
	Code Code
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("permission %s required", e.Code)
}

// Is lets errors.Is(err, apperr.ErrForbidden) match.
func (e *ForbiddenError) Is(target error) bool {
	return target == apperr.ErrForbidden
}

// Authorize returns a *ForbiddenError unless the principal holds c.
func Authorize(p Principal, c Code) error {
	if p.Has(c) {
		return nil
	}
	return &ForbiddenError{Code: c}
}

// RequireAdmin returns a ForbiddenError for non-administrators. The code
// reported is "admin", which is not part of the catalog.
func RequireAdmin(p Principal) error {
	if p.IsAdmin {
		return nil
	}
	return &ForbiddenError{Code: "admin"}
}
