package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "TODO"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusDone       TaskStatus = "DONE"
)

type TaskType string

const (
	TaskTypeTask        TaskType = "TASK"
	TaskTypeBug         TaskType = "BUG"
	TaskTypeFeature     TaskType = "FEATURE"
	TaskTypeImprovement TaskType = "IMPROVEMENT"
	TaskTypeOther       TaskType = "OTHER"
)

type Task struct {
	ID          string     `gorm:"type:varchar(64);primarykey" json:"id"`
	ProjectID   string     `gorm:"type:varchar(64);not null;index" json:"projectId"`
	Title       string     `gorm:"type:varchar(255);not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	Status      TaskStatus `gorm:"type:varchar(20);not null;default:'TODO'" json:"status"`
	Type        TaskType   `gorm:"type:varchar(20);not null;default:'TASK'" json:"type"`
	Priority    Priority   `gorm:"type:varchar(20);not null;default:'MEDIUM'" json:"priority"`
	AssigneeID  *string    `gorm:"type:varchar(64);index" json:"assigneeId"`
	DueDate     time.Time  `gorm:"not null" json:"due_date"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`

	// Relations
	Project  *Project  `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	Assignee *User     `gorm:"foreignKey:AssigneeID" json:"assignee,omitempty"`
	Comments []Comment `gorm:"foreignKey:TaskID" json:"comments,omitempty"`
}

func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}
