package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	apierrors "github.com/yukikurage/project-management-api/internal/errors"
	"github.com/yukikurage/project-management-api/internal/services"
)

type CommentHandler struct {
	commentService *services.CommentService
}

func NewCommentHandler(commentService *services.CommentService) *CommentHandler {
	return &CommentHandler{commentService: commentService}
}

type addCommentRequest struct {
	TaskID  string `json:"taskId" binding:"required"`
	Content string `json:"content" binding:"required"`
}

// AddComment posts a comment on a task
func (h *CommentHandler) AddComment(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req addCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.InvalidBody(c, err)
		return
	}

	comment, err := h.commentService.AddComment(c.Request.Context(), services.AddCommentInput{
		ActorID: userID,
		TaskID:  req.TaskID,
		Content: req.Content,
	})
	if err != nil {
		respondCommentError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"comment": comment,
		"message": "Comment added successfully",
	})
}

// GetTaskComments lists the comments of a task, oldest first
func (h *CommentHandler) GetTaskComments(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}

	comments, err := h.commentService.ListTaskComments(c.Request.Context(), c.Param("taskId"))
	if err != nil {
		respondCommentError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"comments": comments})
}

func respondCommentError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrTaskNotFound),
		errors.Is(err, services.ErrProjectNotFound):
		apierrors.NotFound(c, err.Error())
	case errors.Is(err, services.ErrNotProjectMember):
		apierrors.Forbidden(c, err.Error())
	default:
		respondInternal(c, err)
	}
}
