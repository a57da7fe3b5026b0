package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	apierrors "github.com/yukikurage/project-management-api/internal/errors"
	"github.com/yukikurage/project-management-api/internal/services"
)

type WorkspaceHandler struct {
	workspaceService *services.WorkspaceService
}

func NewWorkspaceHandler(workspaceService *services.WorkspaceService) *WorkspaceHandler {
	return &WorkspaceHandler{workspaceService: workspaceService}
}

type addWorkspaceMemberRequest struct {
	Email       string `json:"email" binding:"required"`
	Role        string `json:"role"`
	WorkspaceID string `json:"workspaceId"`
	Message     string `json:"message"`
}

// GetUserWorkspaces returns every workspace the caller belongs to
func (h *WorkspaceHandler) GetUserWorkspaces(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	workspaces, err := h.workspaceService.ListForUser(c.Request.Context(), userID)
	if err != nil {
		respondWorkspaceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"workspaces": workspaces})
}

// AddMember adds an existing user to a workspace
func (h *WorkspaceHandler) AddMember(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req addWorkspaceMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.InvalidBody(c, err)
		return
	}

	member, err := h.workspaceService.AddMember(c.Request.Context(), services.AddWorkspaceMemberInput{
		ActorID:     userID,
		Email:       req.Email,
		Role:        req.Role,
		WorkspaceID: req.WorkspaceID,
		Message:     req.Message,
	})
	if err != nil {
		respondWorkspaceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"member":  member,
		"message": "Member added successfully",
	})
}

func respondWorkspaceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrWorkspaceNotFound):
		apierrors.NotFound(c, err.Error())
	case errors.Is(err, services.ErrWorkspaceIDRequired),
		errors.Is(err, services.ErrRoleRequired),
		errors.Is(err, services.ErrInvalidRole),
		errors.Is(err, services.ErrAlreadyWorkspaceMember):
		apierrors.BadRequest(c, err.Error())
	case errors.Is(err, services.ErrNotWorkspaceAdmin):
		apierrors.Forbidden(c, err.Error())
	default:
		respondInternal(c, err)
	}
}
