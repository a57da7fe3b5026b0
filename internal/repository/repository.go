package repository

import (
	"context"
	"time"

	"github.com/yukikurage/project-management-api/internal/models"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	// FindByID finds a user by ID
	FindByID(ctx context.Context, id string) (*models.User, error)

	// FindByEmail finds a user by email address
	FindByEmail(ctx context.Context, email string) (*models.User, error)

	// Upsert inserts the user or overwrites email, name and image of the existing row
	Upsert(ctx context.Context, user *models.User) error

	// Delete removes the user together with memberships and comments, and clears
	// assignee and team lead references, in a single transaction
	Delete(ctx context.Context, id string) error
}

// WorkspaceRepository defines the interface for workspace data access
type WorkspaceRepository interface {
	// FindByID finds a workspace by ID with optional preloading
	FindByID(ctx context.Context, id string, preload ...string) (*models.Workspace, error)

	// ListForUser returns every workspace the user belongs to, fully hydrated
	ListForUser(ctx context.Context, userID string) ([]models.Workspace, error)

	// Upsert inserts the workspace or overwrites its descriptive fields
	Upsert(ctx context.Context, workspace *models.Workspace) error

	// Delete removes the workspace and everything under it
	Delete(ctx context.Context, id string) error

	// FindMember finds a specific workspace member
	FindMember(ctx context.Context, workspaceID, userID string) (*models.WorkspaceMember, error)

	// AddMember adds a member to a workspace
	AddMember(ctx context.Context, member *models.WorkspaceMember) error

	// UpsertMember adds a member or updates the role of an existing membership
	UpsertMember(ctx context.Context, member *models.WorkspaceMember) error
}

// ProjectRepository defines the interface for project data access
type ProjectRepository interface {
	// FindByID finds a project by ID with optional preloading
	FindByID(ctx context.Context, id string, preload ...string) (*models.Project, error)

	// Create creates the project and its initial members atomically
	Create(ctx context.Context, project *models.Project, memberIDs []string) error

	// Update overwrites the mutable fields of a project
	Update(ctx context.Context, project *models.Project) error

	// AddMember adds a member to a project
	AddMember(ctx context.Context, member *models.ProjectMember) error
}

// TaskRepository defines the interface for task data access
type TaskRepository interface {
	// Create creates a new task
	Create(ctx context.Context, task *models.Task) error

	// FindByID finds a task by ID with optional preloading
	FindByID(ctx context.Context, id string, preload ...string) (*models.Task, error)

	// FindByIDs returns the tasks that exist among ids, in no particular order
	FindByIDs(ctx context.Context, ids []string) ([]models.Task, error)

	// Update applies a partial update to a task
	Update(ctx context.Context, id string, fields map[string]interface{}) error

	// DeleteByIDs deletes tasks and their comments, returning the number of tasks removed
	DeleteByIDs(ctx context.Context, ids []string) (int64, error)
}

// CommentRepository defines the interface for comment data access
type CommentRepository interface {
	// Create creates a new comment
	Create(ctx context.Context, comment *models.Comment) error

	// FindByID finds a comment with its author
	FindByID(ctx context.Context, id string) (*models.Comment, error)

	// ListByTask returns the comments of a task with authors, oldest first
	ListByTask(ctx context.Context, taskID string) ([]models.Comment, error)
}

// WorkflowRepository persists workflow runs and memoized steps
type WorkflowRepository interface {
	// CreateRun inserts a run unless one already exists for the same function and event.
	// It reports whether a new row was written.
	CreateRun(ctx context.Context, run *models.WorkflowRun) (bool, error)

	// FindRun finds a run by ID
	FindRun(ctx context.Context, id int64) (*models.WorkflowRun, error)

	// ListDue returns runs that are waiting and due at now, plus running runs whose lease expired
	ListDue(ctx context.Context, now time.Time, leaseExpiredBefore time.Time, limit int) ([]models.WorkflowRun, error)

	// Claim marks the run as running if nobody else claimed it since it was read
	Claim(ctx context.Context, run *models.WorkflowRun, now time.Time) (bool, error)

	// SaveState persists status, wake time, attempts and last error of a run
	SaveState(ctx context.Context, run *models.WorkflowRun) error

	// FindStep finds the memoized output of a step
	FindStep(ctx context.Context, runID int64, stepID string) (*models.WorkflowStep, error)

	// SaveStep records a step output; an existing record for the same step wins
	SaveStep(ctx context.Context, step *models.WorkflowStep) error
}
