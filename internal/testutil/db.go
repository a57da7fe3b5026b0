// Package testutil provides fixtures shared by package tests.
package testutil

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/yukikurage/project-management-api/internal/database"
	"github.com/yukikurage/project-management-api/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a private in-memory SQLite database with every table migrated.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	// each test gets its own shared-cache database so pooled connections see the same data
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	require.NoError(t, err)

	require.NoError(t, database.Migrate(db))

	t.Cleanup(func() {
		_ = database.Close(db)
	})
	return db
}

// CreateUser inserts a user with the given id and email.
func CreateUser(t *testing.T, db *gorm.DB, id, email string) *models.User {
	t.Helper()
	user := &models.User{ID: id, Email: email, Name: id}
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreateWorkspace inserts a workspace owned by ownerID with the given members.
func CreateWorkspace(t *testing.T, db *gorm.DB, id, ownerID string, members map[string]models.WorkspaceRole) *models.Workspace {
	t.Helper()
	ws := &models.Workspace{ID: id, Name: id, Slug: id, OwnerID: ownerID}
	require.NoError(t, db.Create(ws).Error)
	for userID, role := range members {
		require.NoError(t, db.Create(&models.WorkspaceMember{
			UserID:      userID,
			WorkspaceID: id,
			Role:        role,
		}).Error)
	}
	return ws
}

// CreateProject inserts a project led by leadID (empty for none) with the given members.
func CreateProject(t *testing.T, db *gorm.DB, workspaceID, leadID string, memberIDs ...string) *models.Project {
	t.Helper()
	project := &models.Project{
		WorkspaceID: workspaceID,
		Name:        "Project " + workspaceID,
		Status:      models.ProjectStatusActive,
		Priority:    models.PriorityMedium,
	}
	if leadID != "" {
		project.TeamLeadID = &leadID
	}
	require.NoError(t, db.Omit("Owner", "Members", "Tasks").Create(project).Error)
	for _, userID := range memberIDs {
		require.NoError(t, db.Create(&models.ProjectMember{UserID: userID, ProjectID: project.ID}).Error)
	}
	return project
}

// CreateTask inserts a TODO task in the project.
func CreateTask(t *testing.T, db *gorm.DB, projectID string, assigneeID *string, due time.Time) *models.Task {
	t.Helper()
	task := &models.Task{
		ProjectID:  projectID,
		Title:      "Task",
		Status:     models.TaskStatusTodo,
		Type:       models.TaskTypeTask,
		Priority:   models.PriorityMedium,
		AssigneeID: assigneeID,
		DueDate:    due,
	}
	require.NoError(t, db.Omit("Project", "Assignee", "Comments").Create(task).Error)
	return task
}
