package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProjectMember struct {
	ID        string `gorm:"type:varchar(64);primarykey" json:"id"`
	UserID    string `gorm:"type:varchar(64);not null;uniqueIndex:idx_project_members_user_project" json:"userId"`
	ProjectID string `gorm:"type:varchar(64);not null;uniqueIndex:idx_project_members_user_project;index" json:"projectId"`

	// Relations
	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (m *ProjectMember) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
