package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/septivank/fuel-mileage-worker/internal/service"
)

// EntryController serves the fill-up collection and its metrics
type EntryController struct {
	svc *service.EntryService
}

// NewEntryController creates a new entry controller
func NewEntryController(svc *service.EntryService) *EntryController {
	return &EntryController{svc: svc}
}

func (ec *EntryController) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"sync":   ec.svc.Status(),
	})
}

func (ec *EntryController) ListEntries(c *gin.Context) {
	sendData(c, http.StatusOK, ec.svc.Entries())
}

func (ec *EntryController) CreateEntry(c *gin.Context) {
	var req service.EntryPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}

	in, err := req.ToInput()
	if err != nil {
		sendDomainError(c, err)
		return
	}

	entry, err := ec.svc.CreateEntry(c.Request.Context(), requestID(c), in)
	if err != nil {
		sendDomainError(c, err)
		return
	}
	sendData(c, http.StatusCreated, entry)
}

func (ec *EntryController) UpdateEntry(c *gin.Context) {
	id, ok := entryID(c)
	if !ok {
		return
	}

	var req service.EntryPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}

	patch, err := req.ToPatch()
	if err != nil {
		sendDomainError(c, err)
		return
	}

	entry, err := ec.svc.UpdateEntry(c.Request.Context(), requestID(c), id, patch)
	if err != nil {
		sendDomainError(c, err)
		return
	}
	sendData(c, http.StatusOK, entry)
}

func (ec *EntryController) DeleteEntry(c *gin.Context) {
	id, ok := entryID(c)
	if !ok {
		return
	}

	if err := ec.svc.DeleteEntry(c.Request.Context(), requestID(c), id); err != nil {
		sendDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetMetrics returns aggregates and predictions. Undefined values are null.
func (ec *EntryController) GetMetrics(c *gin.Context) {
	tankCapacity := ec.svc.TankCapacity()
	if raw, present := c.GetQuery("tank_capacity"); present {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			sendError(c, http.StatusBadRequest, "Invalid request", "tank_capacity must be a number")
			return
		}
		tankCapacity = value
	}

	metrics, err := ec.svc.Metrics(tankCapacity)
	if err != nil {
		sendDomainError(c, err)
		return
	}
	sendData(c, http.StatusOK, metrics)
}

func (ec *EntryController) GetEfficiency(c *gin.Context) {
	records, err := ec.svc.Efficiency()
	if err != nil {
		sendDomainError(c, err)
		return
	}
	sendData(c, http.StatusOK, records)
}

func entryID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		sendError(c, http.StatusBadRequest, "Invalid entry id", err.Error())
		return uuid.Nil, false
	}
	return id, true
}

func requestID(c *gin.Context) string {
	if id := c.GetHeader("X-Request-ID"); id != "" {
		return id
	}
	return uuid.NewString()
}
