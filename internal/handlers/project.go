package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	apierrors "github.com/yukikurage/project-management-api/internal/errors"
	"github.com/yukikurage/project-management-api/internal/models"
	"github.com/yukikurage/project-management-api/internal/services"
)

type ProjectHandler struct {
	projectService *services.ProjectService
	loc            *time.Location
}

func NewProjectHandler(projectService *services.ProjectService, loc *time.Location) *ProjectHandler {
	return &ProjectHandler{projectService: projectService, loc: loc}
}

type projectRequest struct {
	WorkspaceID string               `json:"workspaceId" binding:"required"`
	Name        string               `json:"name" binding:"required"`
	Description string               `json:"description"`
	Status      models.ProjectStatus `json:"status" binding:"omitempty,oneof=PLANNING ACTIVE ON_HOLD COMPLETED CANCELLED"`
	Priority    models.Priority      `json:"priority" binding:"omitempty,oneof=LOW MEDIUM HIGH"`
	Progress    int                  `json:"progress" binding:"min=0,max=100"`
	StartDate   string               `json:"start_date"`
	EndDate     string               `json:"end_date"`
}

type createProjectRequest struct {
	projectRequest
	TeamLead   string   `json:"team_lead"`
	TeamMember []string `json:"team_member"`
}

type updateProjectRequest struct {
	projectRequest
	ID string `json:"id" binding:"required"`
}

type addProjectMemberRequest struct {
	Email string `json:"email" binding:"required"`
}

func (r projectRequest) fields(loc *time.Location) (services.ProjectFields, error) {
	start, err := parseOptionalDate(r.StartDate, loc)
	if err != nil {
		return services.ProjectFields{}, errors.New("invalid start_date")
	}
	end, err := parseOptionalDate(r.EndDate, loc)
	if err != nil {
		return services.ProjectFields{}, errors.New("invalid end_date")
	}
	return services.ProjectFields{
		Name:        r.Name,
		Description: r.Description,
		Status:      r.Status,
		Priority:    r.Priority,
		Progress:    r.Progress,
		StartDate:   start,
		EndDate:     end,
	}, nil
}

// CreateProject creates a project inside a workspace
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.InvalidBody(c, err)
		return
	}

	fields, err := req.fields(h.loc)
	if err != nil {
		apierrors.BadRequest(c, err.Error())
		return
	}

	project, err := h.projectService.CreateProject(c.Request.Context(), services.CreateProjectInput{
		ProjectFields:    fields,
		ActorID:          userID,
		WorkspaceID:      req.WorkspaceID,
		TeamLeadEmail:    req.TeamLead,
		TeamMemberEmails: req.TeamMember,
	})
	if err != nil {
		respondProjectError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"project": project,
		"message": "Project created successfully",
	})
}

// UpdateProject replaces the mutable fields of a project
func (h *ProjectHandler) UpdateProject(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req updateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.InvalidBody(c, err)
		return
	}

	fields, err := req.fields(h.loc)
	if err != nil {
		apierrors.BadRequest(c, err.Error())
		return
	}

	project, err := h.projectService.UpdateProject(c.Request.Context(), services.UpdateProjectInput{
		ProjectFields: fields,
		ActorID:       userID,
		ID:            req.ID,
		WorkspaceID:   req.WorkspaceID,
	})
	if err != nil {
		respondProjectError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"project": project,
		"message": "Project updated successfully",
	})
}

// AddMember adds a user to a project
func (h *ProjectHandler) AddMember(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req addProjectMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.InvalidBody(c, err)
		return
	}

	member, err := h.projectService.AddMember(c.Request.Context(), services.AddProjectMemberInput{
		ActorID:   userID,
		ProjectID: c.Param("projectId"),
		Email:     req.Email,
	})
	if err != nil {
		respondProjectError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"member":  member,
		"message": "Member added to project successfully",
	})
}

func respondProjectError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrWorkspaceNotFound),
		errors.Is(err, services.ErrProjectNotFound),
		errors.Is(err, services.ErrUserNotFound):
		apierrors.NotFound(c, err.Error())
	case errors.Is(err, services.ErrNotWorkspaceAdmin),
		errors.Is(err, services.ErrProjectUpdateForbidden),
		errors.Is(err, services.ErrNotTeamLead):
		apierrors.Forbidden(c, err.Error())
	case errors.Is(err, services.ErrAlreadyProjectMember),
		errors.Is(err, services.ErrInvalidField):
		apierrors.BadRequest(c, err.Error())
	default:
		respondInternal(c, err)
	}
}
