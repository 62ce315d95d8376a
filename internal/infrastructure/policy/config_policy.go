// Package policy provides the role to action authorization used by the
// order services.
package policy

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/leorit/backend/internal/domain/shared"
	"github.com/leorit/backend/internal/infrastructure/config"
)

// ConfigPolicy grants actions per role, starting from
// shared.DefaultPermissions and applying the grants and revokes from
// configuration. When an admin allow-list is configured, only listed actor
// IDs may act as admin.
type ConfigPolicy struct {
	permissions map[shared.Role]map[shared.Action]bool
	admins      map[uuid.UUID]bool
}

// NewConfigPolicy builds the policy. Unknown roles, actions or malformed
// admin IDs are configuration errors.
func NewConfigPolicy(cfg config.PolicyConfig) (*ConfigPolicy, error) {
	known := make(map[shared.Action]bool)
	p := &ConfigPolicy{permissions: make(map[shared.Role]map[shared.Action]bool)}
	for role, actions := range shared.DefaultPermissions() {
		set := make(map[shared.Action]bool, len(actions))
		for _, a := range actions {
			set[a] = true
			known[a] = true
		}
		p.permissions[role] = set
	}

	apply := func(overrides map[string][]string, grant bool) error {
		for roleName, actions := range overrides {
			role := shared.Role(roleName)
			if !role.IsValid() {
				return fmt.Errorf("policy: unknown role %q", roleName)
			}
			for _, name := range actions {
				a := shared.Action(name)
				if !known[a] {
					return fmt.Errorf("policy: unknown action %q for role %s", name, roleName)
				}
				if grant {
					p.permissions[role][a] = true
				} else {
					delete(p.permissions[role], a)
				}
			}
		}
		return nil
	}
	if err := apply(cfg.Grants, true); err != nil {
		return nil, err
	}
	if err := apply(cfg.Revokes, false); err != nil {
		return nil, err
	}

	if len(cfg.AdminIDs) > 0 {
		p.admins = make(map[uuid.UUID]bool, len(cfg.AdminIDs))
		for _, raw := range cfg.AdminIDs {
			id, err := uuid.Parse(raw)
			if err != nil {
				return nil, fmt.Errorf("policy: invalid admin id %q: %w", raw, err)
			}
			p.admins[id] = true
		}
	}
	return p, nil
}

// IsAuthorized implements shared.PolicyProvider
func (p *ConfigPolicy) IsAuthorized(_ context.Context, role shared.Role, actorID uuid.UUID, action shared.Action) bool {
	if role == shared.RoleAdmin && p.admins != nil && !p.admins[actorID] {
		return false
	}
	return p.permissions[role][action]
}

// Actions returns the sorted actions granted to role
func (p *ConfigPolicy) Actions(role shared.Role) []shared.Action {
	out := make([]shared.Action, 0, len(p.permissions[role]))
	for a := range p.permissions[role] {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

var _ shared.PolicyProvider = (*ConfigPolicy)(nil)
