package models

import (
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type WorkspaceRole string

const (
	RoleAdmin  WorkspaceRole = "ADMIN"
	RoleMember WorkspaceRole = "MEMBER"
)

// ParseWorkspaceRole normalizes an identity-provider role name such as "org:admin" or "Admin".
func ParseWorkspaceRole(raw string) (WorkspaceRole, bool) {
	name := strings.ToUpper(strings.TrimSpace(raw))
	name = strings.TrimPrefix(name, "ORG:")
	switch WorkspaceRole(name) {
	case RoleAdmin, RoleMember:
		return WorkspaceRole(name), true
	default:
		return WorkspaceRole(name), false
	}
}

type WorkspaceMember struct {
	ID          string        `gorm:"type:varchar(64);primarykey" json:"id"`
	UserID      string        `gorm:"type:varchar(64);not null;uniqueIndex:idx_workspace_members_user_workspace" json:"userId"`
	WorkspaceID string        `gorm:"type:varchar(64);not null;uniqueIndex:idx_workspace_members_user_workspace;index" json:"workspaceId"`
	Role        WorkspaceRole `gorm:"type:varchar(20);not null;default:'MEMBER'" json:"role"`
	Message     string        `gorm:"type:text" json:"message"`

	// Relations
	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (m *WorkspaceMember) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
