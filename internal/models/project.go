package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProjectStatus string

const (
	ProjectStatusPlanning  ProjectStatus = "PLANNING"
	ProjectStatusActive    ProjectStatus = "ACTIVE"
	ProjectStatusOnHold    ProjectStatus = "ON_HOLD"
	ProjectStatusCompleted ProjectStatus = "COMPLETED"
	ProjectStatusCancelled ProjectStatus = "CANCELLED"
)

type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

type Project struct {
	ID          string        `gorm:"type:varchar(64);primarykey" json:"id"`
	WorkspaceID string        `gorm:"type:varchar(64);not null;index" json:"workspaceId"`
	Name        string        `gorm:"type:varchar(255);not null" json:"name"`
	Description string        `gorm:"type:text" json:"description"`
	Status      ProjectStatus `gorm:"type:varchar(20);not null;default:'ACTIVE'" json:"status"`
	Priority    Priority      `gorm:"type:varchar(20);not null;default:'MEDIUM'" json:"priority"`
	Progress    int           `gorm:"not null;default:0" json:"progress"`
	StartDate   *time.Time    `json:"start_date"`
	EndDate     *time.Time    `json:"end_date"`
	TeamLeadID  *string       `gorm:"type:varchar(64);index" json:"teamLeadId"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`

	// Relations
	Owner   *User           `gorm:"foreignKey:TeamLeadID" json:"owner,omitempty"`
	Members []ProjectMember `gorm:"foreignKey:ProjectID" json:"members"`
	Tasks   []Task          `gorm:"foreignKey:ProjectID" json:"tasks"`
}

func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
