package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/project-management-api/internal/constants"
	apierrors "github.com/yukikurage/project-management-api/internal/errors"
	"github.com/yukikurage/project-management-api/internal/events"
	"github.com/yukikurage/project-management-api/internal/logger"
)

// EventHandler accepts inbound webhook events and hands them to the worker.
type EventHandler struct {
	publisher  events.Publisher
	signingKey string
	now        func() time.Time
}

// NewEventHandler creates an EventHandler. An empty signingKey disables signature checks.
func NewEventHandler(publisher events.Publisher, signingKey string) *EventHandler {
	return &EventHandler{
		publisher:  publisher,
		signingKey: signingKey,
		now:        time.Now,
	}
}

// Ingest verifies, normalizes and enqueues one event or a batch of events
func (h *EventHandler) Ingest(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		apierrors.BadRequest(c, "Unable to read request body")
		return
	}

	now := h.now()
	if h.signingKey != "" {
		header := c.GetHeader(constants.HeaderEventSignature)
		maxAge := constants.EventSignatureMaxAgeSeconds * time.Second
		if err := events.VerifySignature(h.signingKey, header, body, now, maxAge); err != nil {
			logger.Log.WithError(err).Warn("rejected event delivery")
			apierrors.Unauthorized(c, err.Error())
			return
		}
	}

	batch, err := events.DecodeBatch(body)
	if err != nil {
		apierrors.BadRequest(c, err.Error())
		return
	}
	if len(batch) == 0 {
		apierrors.BadRequest(c, "No events in request")
		return
	}

	ids := make([]string, 0, len(batch))
	for i := range batch {
		if err := batch[i].Normalize(now); err != nil {
			apierrors.BadRequest(c, err.Error())
			return
		}
		ids = append(ids, batch[i].ID)
	}

	if err := h.publisher.Send(c.Request.Context(), batch...); err != nil {
		respondInternal(c, errors.Join(errors.New("failed to enqueue events"), err))
		return
	}

	logger.Log.WithFields(logger.Fields{"count": len(ids)}).Debug("events accepted")
	c.JSON(http.StatusOK, gin.H{
		"ids":    ids,
		"status": http.StatusOK,
	})
}
