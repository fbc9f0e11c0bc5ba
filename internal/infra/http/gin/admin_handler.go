package ginserver

import (
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"rentalspot/internal/app/commands"
	"rentalspot/internal/app/dto"
	"rentalspot/internal/app/handlers/calendar"
	"rentalspot/internal/app/queries"
)

// AdminHandler exposes channel sync and maintenance operations.
type AdminHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type blockRequest struct {
	CheckIn  string `json:"checkIn" binding:"required"`
	CheckOut string `json:"checkOut" binding:"required"`
	Source   string `json:"source" binding:"omitempty,max=64"`
}

type maintenanceRequest struct {
	PropertyID  string `json:"propertyId"`
	MonthsAhead int    `json:"monthsAhead" binding:"gte=0,lte=36"`
}

func (h AdminHandler) ApplyBlock(c *gin.Context) { h.block(c, true) }

func (h AdminHandler) ClearBlock(c *gin.Context) { h.block(c, false) }

func (h AdminHandler) block(c *gin.Context, blocked bool) {
	var req blockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	in, out, err := stayRequest{CheckIn: req.CheckIn, CheckOut: req.CheckOut}.days()
	if err != nil {
		badRequest(c, err)
		return
	}
	cmd := calendar.ExternalBlockCommand{
		PropertyID: strings.TrimSpace(c.Param("id")),
		CheckIn:    in,
		CheckOut:   out,
		Source:     strings.TrimSpace(req.Source),
		Blocked:    blocked,
	}
	result, err := commands.Dispatch[calendar.ExternalBlockCommand, *dto.BlockChange](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// bindMaintenance accepts an empty body, meaning every catalog property.
func bindMaintenance(c *gin.Context) (maintenanceRequest, bool) {
	var req maintenanceRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return req, false
		}
	}
	req.PropertyID = strings.TrimSpace(req.PropertyID)
	return req, true
}

func (h AdminHandler) Generate(c *gin.Context) {
	req, ok := bindMaintenance(c)
	if !ok {
		return
	}
	cmd := calendar.GenerateCalendarCommand{PropertyID: req.PropertyID, MonthsAhead: req.MonthsAhead}
	result, err := commands.Dispatch[calendar.GenerateCalendarCommand, *calendar.GenerateCalendarResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h AdminHandler) Reconcile(c *gin.Context) {
	req, ok := bindMaintenance(c)
	if !ok {
		return
	}
	cmd := calendar.ReconcileCommand{PropertyID: req.PropertyID, MonthsAhead: req.MonthsAhead}
	result, err := commands.Dispatch[calendar.ReconcileCommand, *calendar.ReconcileResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h AdminHandler) SweepHolds(c *gin.Context) {
	result, err := commands.Dispatch[calendar.SweepHoldsCommand, *dto.Sweep](c.Request.Context(), h.Commands, calendar.SweepHoldsCommand{})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h AdminHandler) Health(c *gin.Context) {
	result, err := queries.Ask[calendar.HealthQuery, dto.Health](c.Request.Context(), h.Queries, calendar.HealthQuery{})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	status := http.StatusOK
	if !result.AvailabilityStoreReachable {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, result)
}

var _ AdminHTTP = AdminHandler{}
