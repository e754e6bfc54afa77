package auth

import "github.com/spec-kit/ticket-bot/internal/gateway"

// StaffPolicy decides who may act on any ticket.
type StaffPolicy struct {
	staffRoleID string
}

// NewStaffPolicy returns a policy treating holders of staffRoleID as staff.
// An empty role id leaves only the manage-channels permission as the staff test.
func NewStaffPolicy(staffRoleID string) StaffPolicy {
	return StaffPolicy{staffRoleID: staffRoleID}
}

// StaffRoleID returns the configured staff role, if any.
func (p StaffPolicy) StaffRoleID() string {
	return p.staffRoleID
}

// IsStaff reports whether the interaction's actor counts as staff.
func (p StaffPolicy) IsStaff(in gateway.Interaction) bool {
	if !in.InGuild() {
		return false
	}
	if p.staffRoleID != "" {
		for _, role := range in.ActorRoles {
			if role == p.staffRoleID {
				return true
			}
		}
	}
	return in.ActorCanManageChannels
}
