package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dealerreach/backend/pkg/leads"
)

// LeadHandler handles lead-level outreach requests
type LeadHandler struct {
	leadService *leads.Service
}

// NewLeadHandler creates a new lead handler
func NewLeadHandler(leadService *leads.Service) *LeadHandler {
	return &LeadHandler{
		leadService: leadService,
	}
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

// OptOutLead godoc
// @Summary Opt a lead out of all outreach
// @Description Flags the lead as opted out and cancels every pending touch
// @Tags Leads
// @Accept json
// @Produce json
// @Param id path string true "Lead ID"
// @Param body body reasonRequest false "Opt-out reason"
// @Success 200 {object} map[string]string
// @Failure 404 {object} map[string]string "Lead not found"
// @Router /leads/{id}/opt-out [post]
func (h *LeadHandler) OptOutLead(c echo.Context) error {
	var req reasonRequest
	_ = c.Bind(&req)

	if err := h.leadService.OptOut(c.Request().Context(), c.Param("id"), req.Reason); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "opted_out"})
}

// AddLeadToDNC godoc
// @Summary Add a lead to the do-not-contact list
// @Tags Leads
// @Accept json
// @Produce json
// @Param id path string true "Lead ID"
// @Param body body reasonRequest false "Listing reason"
// @Success 200 {object} map[string]string
// @Failure 404 {object} map[string]string "Lead not found"
// @Router /leads/{id}/dnc [post]
func (h *LeadHandler) AddLeadToDNC(c echo.Context) error {
	var req reasonRequest
	_ = c.Bind(&req)

	if err := h.leadService.AddToDNC(c.Request().Context(), c.Param("id"), req.Reason); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "dnc_listed"})
}

type dncImportRequest struct {
	LeadIDs []string `json:"lead_ids"`
	Reason  string   `json:"reason"`
}

// ImportDNC godoc
// @Summary Bulk import leads onto the do-not-contact list
// @Description Lists every given lead as do-not-contact and cancels their pending touches; unknown lead IDs are skipped
// @Tags Leads
// @Accept json
// @Produce json
// @Param body body dncImportRequest true "Lead IDs and listing reason"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string "Empty lead list"
// @Router /leads/dnc/import [post]
func (h *LeadHandler) ImportDNC(c echo.Context) error {
	var req dncImportRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, map[string]string{
			"error": "invalid request body",
		})
	}
	if len(req.LeadIDs) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, map[string]string{
			"error": "lead_ids is required",
		})
	}

	listed, err := h.leadService.ImportDNC(c.Request().Context(), req.LeadIDs, req.Reason)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"requested": len(req.LeadIDs),
		"listed":    listed,
	})
}

// PromoteLead godoc
// @Summary Promote a lead to the accelerated cadence
// @Description Tags the lead as high intent, cancels its pending touches and starts the accelerated sequence
// @Tags Leads
// @Produce json
// @Param id path string true "Lead ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} map[string]string "Lead not found"
// @Router /leads/{id}/promote [post]
func (h *LeadHandler) PromoteLead(c echo.Context) error {
	if err := h.leadService.PromoteSuperHot(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "promoted"})
}

// GetLeadTimeline godoc
// @Summary Get a lead's touch history
// @Description Returns every touch for the lead with its delivery event log
// @Tags Leads
// @Produce json
// @Param id path string true "Lead ID"
// @Success 200 {object} leads.Timeline
// @Failure 404 {object} map[string]string "Lead not found"
// @Router /leads/{id}/timeline [get]
func (h *LeadHandler) GetLeadTimeline(c echo.Context) error {
	timeline, err := h.leadService.Timeline(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, timeline)
}
