package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Workspace struct {
	ID        string         `gorm:"type:varchar(64);primarykey" json:"id"`
	Name      string         `gorm:"type:varchar(255);not null" json:"name"`
	Slug      string         `gorm:"type:varchar(255);index" json:"slug"`
	OwnerID   string         `gorm:"type:varchar(64);index" json:"ownerId"`
	ImageURL  string         `gorm:"type:text" json:"image_url"`
	Settings  datatypes.JSON `json:"settings"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`

	// Relations
	Owner    *User             `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	Members  []WorkspaceMember `gorm:"foreignKey:WorkspaceID" json:"members"`
	Projects []Project         `gorm:"foreignKey:WorkspaceID" json:"projects"`
}

func (w *Workspace) BeforeCreate(tx *gorm.DB) error {
	if len(w.Settings) == 0 {
		w.Settings = datatypes.JSON("{}")
	}
	return nil
}
