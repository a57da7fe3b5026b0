package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	apierrors "github.com/yukikurage/project-management-api/internal/errors"
	"github.com/yukikurage/project-management-api/internal/logger"
	"github.com/yukikurage/project-management-api/internal/middleware"
	"github.com/yukikurage/project-management-api/internal/utils"
)

// respondInternal logs the underlying error and hides it from the client.
func respondInternal(c *gin.Context, err error) {
	userID, _ := middleware.GetUserID(c)
	logger.Log.WithError(err).WithFields(logger.Fields{
		"method":  c.Request.Method,
		"path":    c.FullPath(),
		"user_id": userID,
	}).Error("request failed")
	apierrors.InternalError(c, "")
}

// currentUser returns the caller id, answering 401 when it is missing.
func currentUser(c *gin.Context) (string, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		apierrors.Unauthorized(c, "Unauthorized")
		return "", false
	}
	return userID, true
}

func parseOptionalDate(value string, loc *time.Location) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := utils.ParseDate(value, loc)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
