package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"prizedraw/internal/events"
	"prizedraw/internal/metrics"
	"prizedraw/internal/models"
	"prizedraw/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"
)

// HTTPHandler holds the dependencies for the HTTP handlers: the lottery
// service, the draw session and the event hub.
type HTTPHandler struct {
	service *services.LotteryService
	session *services.Session
	hub     *events.Hub
}

// NewHTTPHandler creates a new HTTPHandler.
func NewHTTPHandler(service *services.LotteryService, session *services.Session, hub *events.Hub) *HTTPHandler {
	return &HTTPHandler{
		service: service,
		session: session,
		hub:     hub,
	}
}

// RegisterRoutes registers all the application routes.
func (h *HTTPHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.GET("/state", h.GetState)
	api.PUT("/settings", h.UpdateSettings)

	api.POST("/prizes", h.AddPrize)
	api.PUT("/prizes/:id", h.UpdatePrize)
	api.DELETE("/prizes/:id", h.DeletePrize)
	api.POST("/prizes/:id/select", h.SelectPrize)
	api.POST("/prizes/cycle", h.CyclePrize)

	api.PUT("/participants", h.ReplaceParticipants)
	api.POST("/participants/import", h.ImportParticipants)

	api.POST("/designated", h.AddDesignated)
	api.DELETE("/designated/:prizeId/:personId", h.RemoveDesignated)
	api.POST("/blacklist", h.AddBlacklist)
	api.DELETE("/blacklist/:personId", h.RemoveBlacklist)

	api.GET("/session", h.GetSession)
	api.POST("/draw/start", h.StartDraw)
	api.POST("/draw/stop", h.StopDraw)
	api.POST("/draw/dismiss", h.DismissDraw)

	api.GET("/winners", h.GetWinners)
	api.DELETE("/winners", h.ClearWinners)
	api.GET("/winners/export.csv", h.ExportResultsCSV)
	api.DELETE("/data", h.ClearAll)

	if h.hub != nil {
		router.GET("/ws", gin.WrapF(h.hub.HandleConnection))
	}
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
}

// GetState returns everything the presentation layer renders.
func (h *HTTPHandler) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"settings":     h.service.Settings(),
		"participants": h.service.Participants(),
		"winners":      h.service.Winners(),
		"designated":   h.service.Constraints().Designated(),
		"blacklist":    h.service.Constraints().Blacklist(),
		"session":      h.session.Snapshot(),
	})
}

// UpdateSettings replaces the persisted settings.
func (h *HTTPHandler) UpdateSettings(c *gin.Context) {
	var settings models.Settings
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := h.session.WhileIdle(func() error {
		return h.service.UpdateSettings(c.Request.Context(), settings)
	})
	respond(c, gin.H{"settings": h.service.Settings()}, err)
}

type prizeRequest struct {
	Name      string `json:"name" binding:"required"`
	Count     int    `json:"count" binding:"required,min=1"`
	DrawCount int    `json:"drawCount" binding:"required,min=1"`
	Image     string `json:"image"`
}

// AddPrize creates a new prize tier.
func (h *HTTPHandler) AddPrize(c *gin.Context) {
	var req prizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	prize, err := h.service.AddPrize(c.Request.Context(), models.PrizeTier{
		Name: req.Name, Count: req.Count, DrawCount: req.DrawCount, Image: req.Image,
	})
	respondStatus(c, http.StatusCreated, gin.H{"prize": prize}, err)
}

// UpdatePrize edits an existing prize tier.
func (h *HTTPHandler) UpdatePrize(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	var req prizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	prize := models.PrizeTier{ID: id, Name: req.Name, Count: req.Count, DrawCount: req.DrawCount, Image: req.Image}
	respond(c, gin.H{"prize": prize}, h.service.UpdatePrize(c.Request.Context(), prize))
}

// DeletePrize removes a prize tier that has no winners.
func (h *HTTPHandler) DeletePrize(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	err := h.session.WhileIdle(func() error {
		return h.service.DeletePrize(c.Request.Context(), id)
	})
	respond(c, gin.H{"prizes": h.service.Prizes()}, err)
}

// SelectPrize changes the selected tier while idle.
func (h *HTTPHandler) SelectPrize(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	err := h.session.SelectPrize(c.Request.Context(), id)
	respond(c, gin.H{"currentPrizeId": h.service.Settings().CurrentPrizeID}, err)
}

// CyclePrize moves the selection forward (step 1) or backward (step -1).
func (h *HTTPHandler) CyclePrize(c *gin.Context) {
	var req struct {
		Step int `json:"step" binding:"required,oneof=-1 1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, err := h.session.CyclePrize(c.Request.Context(), req.Step)
	respond(c, gin.H{"currentPrizeId": id}, err)
}

// ReplaceParticipants replaces the participant pool with the posted list.
func (h *HTTPHandler) ReplaceParticipants(c *gin.Context) {
	var persons []models.Person
	if err := c.ShouldBindJSON(&persons); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := h.service.ReplaceParticipants(c.Request.Context(), persons)
	respond(c, gin.H{"participants": h.service.Participants()}, err)
}

// ImportParticipants parses a pasted or uploaded text/CSV body and replaces
// the participant pool with it. A multipart "file" field is used when present.
func (h *HTTPHandler) ImportParticipants(c *gin.Context) {
	body := io.Reader(c.Request.Body)
	if c.ContentType() == "multipart/form-data" {
		file, _, err := c.Request.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Error retrieving file: %v", err)})
			return
		}
		defer file.Close()
		body = file
	}
	persons, err := h.service.ImportParticipants(c.Request.Context(), body)
	if err != nil && !isWriteWarning(err) {
		respondError(c, err)
		return
	}
	logger.Infof("Imported %d participants", len(persons))
	respond(c, gin.H{"imported": len(persons), "participants": h.service.Participants()}, err)
}

type constraintRequest struct {
	PrizeID  int             `json:"prizeId"`
	PersonID models.PersonID `json:"personId" binding:"required"`
}

// AddDesignated designates a participant for a tier.
func (h *HTTPHandler) AddDesignated(c *gin.Context) {
	var req constraintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := h.service.AddDesignated(c.Request.Context(), req.PrizeID, req.PersonID)
	respond(c, gin.H{"designated": h.service.Constraints().Designated()}, err)
}

// RemoveDesignated removes a participant from a tier's designated list.
func (h *HTTPHandler) RemoveDesignated(c *gin.Context) {
	prizeID, ok := intParam(c, "prizeId")
	if !ok {
		return
	}
	err := h.service.Constraints().RemoveDesignated(c.Request.Context(), prizeID, models.PersonID(c.Param("personId")))
	respond(c, gin.H{"designated": h.service.Constraints().Designated()}, err)
}

// AddBlacklist excludes a participant from every draw.
func (h *HTTPHandler) AddBlacklist(c *gin.Context) {
	var req constraintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := h.service.AddBlacklist(c.Request.Context(), req.PersonID)
	respond(c, gin.H{"blacklist": h.service.Constraints().Blacklist()}, err)
}

// RemoveBlacklist removes a participant from the blacklist.
func (h *HTTPHandler) RemoveBlacklist(c *gin.Context) {
	err := h.service.Constraints().RemoveBlacklist(c.Request.Context(), models.PersonID(c.Param("personId")))
	respond(c, gin.H{"blacklist": h.service.Constraints().Blacklist()}, err)
}

// GetSession returns the current draw session.
func (h *HTTPHandler) GetSession(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"session": h.session.Snapshot()})
}

// StartDraw starts spinning for the posted tier, or the selected one.
func (h *HTTPHandler) StartDraw(c *gin.Context) {
	var req struct {
		PrizeID int `json:"prizeId"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	snapshot, err := h.session.StartDraw(c.Request.Context(), req.PrizeID)
	respond(c, gin.H{"session": snapshot}, err)
}

// StopDraw stops spinning and reveals the winners.
func (h *HTTPHandler) StopDraw(c *gin.Context) {
	snapshot, err := h.session.Stop(c.Request.Context())
	respond(c, gin.H{"session": snapshot}, err)
}

// DismissDraw closes the presented result.
func (h *HTTPHandler) DismissDraw(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"session": h.session.Dismiss()})
}

// GetWinners returns the winner history in insertion order.
func (h *HTTPHandler) GetWinners(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"winners": h.service.Winners()})
}

// ClearWinners bulk-removes the winner history.
func (h *HTTPHandler) ClearWinners(c *gin.Context) {
	err := h.session.WhileIdle(func() error {
		return h.service.ClearWinners(c.Request.Context())
	})
	respond(c, gin.H{"winners": h.service.Winners()}, err)
}

// ClearAll resets every piece of durable state.
func (h *HTTPHandler) ClearAll(c *gin.Context) {
	err := h.session.WhileIdle(func() error {
		return h.service.ClearAll(c.Request.Context())
	})
	respond(c, gin.H{"settings": h.service.Settings()}, err)
}

// ExportResultsCSV handles the request to download the winners as a CSV file.
func (h *HTTPHandler) ExportResultsCSV(c *gin.Context) {
	filename := fmt.Sprintf("winners_%s.csv", time.Now().Format("2006-01-02"))
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", "attachment;filename="+filename)

	if err := h.service.ExportWinnersCSV(c.Writer); err != nil {
		logger.Infof("Error writing CSV: %v", err)
		c.String(http.StatusInternalServerError, "Error writing CSV")
	}
}

func intParam(c *gin.Context, name string) (int, bool) {
	v, err := strconv.Atoi(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid %s", name)})
		return 0, false
	}
	return v, true
}

// respond writes payload with 200, attaching a persistence failure as a
// warning, or writes the error when the call was rejected.
func respond(c *gin.Context, payload gin.H, err error) {
	respondStatus(c, http.StatusOK, payload, err)
}

func respondStatus(c *gin.Context, status int, payload gin.H, err error) {
	if err != nil && !isWriteWarning(err) {
		respondError(c, err)
		return
	}
	if err != nil {
		payload["warning"] = err.Error()
	}
	c.JSON(status, payload)
}

func respondError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

func isWriteWarning(err error) bool {
	var writeErr *services.PersistenceWriteError
	return errors.As(err, &writeErr)
}

func statusFor(err error) int {
	var (
		quota     *services.QuotaExhaustedError
		pool      *services.InsufficientPoolError
		conflict  *services.ConstraintConflictError
		duplicate *services.DuplicateConstraintError
	)
	switch {
	case errors.As(err, &quota), errors.As(err, &conflict), errors.As(err, &duplicate),
		errors.Is(err, services.ErrSessionBusy), errors.Is(err, services.ErrPrizeHasWinners),
		errors.Is(err, services.ErrAlreadyWon):
		return http.StatusConflict
	case errors.As(err, &pool):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrPrizeNotFound), errors.Is(err, services.ErrPersonNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrInvalidSettings), errors.Is(err, services.ErrDuplicatePerson),
		errors.Is(err, services.ErrNoPrizesToSelect), errors.Is(err, services.ErrInvalidImport):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
