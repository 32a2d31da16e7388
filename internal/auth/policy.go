package auth

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/spec-kit/ticketdesk/internal/domain"
)

// Policy decides what a session user may see and do on a ticket.
type Policy struct {
	// ViewerRoles may view every ticket; other users only see their own.
	ViewerRoles []domain.Role `yaml:"viewer_roles"`
	// Resolvers maps a role to the categories it resolves.
	Resolvers map[domain.Role][]domain.TicketCategory `yaml:"resolvers"`
	// EscalationRoles may forward tickets to L2.
	EscalationRoles []domain.Role `yaml:"escalation_roles"`
	// ActionableStatus is the only status in which tickets can be changed.
	ActionableStatus domain.TicketStatus `yaml:"actionable_status"`
}

// DefaultPolicy returns the built-in rules.
func DefaultPolicy() *Policy {
	return &Policy{
		ViewerRoles: []domain.Role{domain.RoleAdmin, domain.RoleERPAdmin},
		Resolvers: map[domain.Role][]domain.TicketCategory{
			domain.RoleAdmin:    {domain.CategoryHardware, domain.CategorySoftware},
			domain.RoleERPAdmin: {domain.CategoryERP365},
		},
		EscalationRoles:  []domain.Role{domain.RoleERPAdmin},
		ActionableStatus: domain.TicketStatusOpen,
	}
}

// LoadPolicy reads a YAML policy file. Sections missing from the file keep
// their defaults; an empty path yields DefaultPolicy.
func LoadPolicy(path string) (*Policy, error) {
	policy := DefaultPolicy()
	if path == "" {
		return policy, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy: %w", err)
	}
	var file Policy
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse policy %s: %w", path, err)
	}
	if file.ViewerRoles != nil {
		policy.ViewerRoles = file.ViewerRoles
	}
	if file.Resolvers != nil {
		policy.Resolvers = file.Resolvers
	}
	if file.EscalationRoles != nil {
		policy.EscalationRoles = file.EscalationRoles
	}
	if file.ActionableStatus != "" {
		policy.ActionableStatus = file.ActionableStatus
	}
	return policy, nil
}

// IsViewer reports whether the role may view any ticket.
func (p *Policy) IsViewer(role domain.Role) bool {
	return containsRole(p.ViewerRoles, role)
}

// CanView reports whether user may see ticket.
func (p *Policy) CanView(user domain.SessionUser, ticket *domain.Ticket) bool {
	if ticket == nil {
		return false
	}
	return p.IsViewer(user.Role) || ticket.EmpID == user.EmpID
}

// CanResolve reports whether the resolve action is offered to user.
func (p *Policy) CanResolve(user domain.SessionUser, ticket *domain.Ticket) bool {
	if ticket == nil || ticket.Status != p.ActionableStatus {
		return false
	}
	for _, category := range p.Resolvers[user.Role] {
		if category == ticket.Category {
			return true
		}
	}
	return false
}

// CanForward reports whether the forward-to-L2 action is offered to user.
func (p *Policy) CanForward(user domain.SessionUser, ticket *domain.Ticket) bool {
	if ticket == nil || ticket.Status != p.ActionableStatus {
		return false
	}
	return containsRole(p.EscalationRoles, user.Role)
}

// Actions evaluates both mutation gates.
func (p *Policy) Actions(user domain.SessionUser, ticket *domain.Ticket) domain.ViewActions {
	return domain.ViewActions{
		CanResolve: p.CanResolve(user, ticket),
		CanForward: p.CanForward(user, ticket),
	}
}

func containsRole(roles []domain.Role, role domain.Role) bool {
	for _, candidate := range roles {
		if candidate == role {
			return true
		}
	}
	return false
}
