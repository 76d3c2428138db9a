package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/davicafu/trackrelay/internal/event/application"
	"github.com/davicafu/trackrelay/internal/event/domain"
	"github.com/davicafu/trackrelay/pkg/utils"
)

// EventHandler encapsula los endpoints HTTP del pipeline de eventos.
type EventHandler struct {
	service *application.IngestService
}

func NewEventHandler(service *application.IngestService) *EventHandler {
	return &EventHandler{service: service}
}

// ---------------- Handlers ----------------

// IngestEvent endpoint POST /events
func (h *EventHandler) IngestEvent(c *gin.Context) {
	var raw domain.RawEventInput
	if err := c.ShouldBindJSON(&raw); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}

	result, err := h.service.Ingest(c.Request.Context(), raw)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidEvent) {
			utils.SendBadRequest(c, err.Error())
			return
		}
		utils.SendInternalServerError(c, "failed to process event")
		return
	}

	// 202: la entrega al destino es asíncrona a partir de aquí.
	utils.SendAccepted(c, result)
}

// GetEvent endpoint GET /events/:id
func (h *EventHandler) GetEvent(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.SendBadRequest(c, "invalid event id")
		return
	}

	evt, err := h.service.GetEvent(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrEventNotFound) {
			utils.SendNotFound(c, "event not found")
			return
		}
		utils.SendInternalServerError(c, err.Error())
		return
	}

	utils.SendSuccess(c, http.StatusOK, evt)
}

// QueueStats endpoint GET /queue/stats
func (h *EventHandler) QueueStats(c *gin.Context) {
	stats, err := h.service.QueueStats(c.Request.Context())
	if err != nil {
		utils.SendInternalServerError(c, err.Error())
		return
	}
	utils.SendSuccess(c, http.StatusOK, stats)
}
