package auth

import (
	"fmt"
	"strings"
)

const (
	RoleAdmin     = "ADMIN"
	RoleModerator = "MODERATOR"
)

// RoleSet is a set of canonical upper-case role tokens.
type RoleSet map[string]struct{}

// ParseRoleClaim splits one raw role claim value into role tokens. It
// accepts a single role ("ADMIN"), a comma-joined list ("ADMIN,MODERATOR")
// and a JSON-style array serialized as a string (`["ADMIN","MODERATOR"]`).
func ParseRoleClaim(raw string) []string {
	cleaned := strings.NewReplacer("[", "", "]", "", `"`, "", "'", "").Replace(raw)
	var roles []string
	for _, part := range strings.Split(cleaned, ",") {
		part = strings.ToUpper(strings.TrimSpace(part))
		if part != "" {
			roles = append(roles, part)
		}
	}
	return roles
}

// NormalizeRoles merges raw claim values into one RoleSet.
func NormalizeRoles(raw ...string) RoleSet {
	set := RoleSet{}
	for _, value := range raw {
		for _, role := range ParseRoleClaim(value) {
			set[role] = struct{}{}
		}
	}
	return set
}

// rolesFromClaim flattens a decoded claim value, which may be a string or a
// real JSON array, into raw strings for NormalizeRoles.
func rolesFromClaim(value any) []string {
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		return []string{v}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, rolesFromClaim(item)...)
		}
		return out
	default:
		return []string{fmt.Sprint(v)}
	}
}

func (s RoleSet) Has(role string) bool {
	_, ok := s[strings.ToUpper(strings.TrimSpace(role))]
	return ok
}

// IsModerator reports whether the set grants ADMIN or MODERATOR privileges.
func (s RoleSet) IsModerator() bool {
	return s.Has(RoleAdmin) || s.Has(RoleModerator)
}
