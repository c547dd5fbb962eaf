package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/dealerreach/backend/pkg/campaigns"
	"github.com/dealerreach/backend/pkg/models"
)

// CampaignHandler handles campaign lifecycle requests
type CampaignHandler struct {
	campaignService *campaigns.Service
}

// NewCampaignHandler creates a new campaign handler
func NewCampaignHandler(campaignService *campaigns.Service) *CampaignHandler {
	return &CampaignHandler{
		campaignService: campaignService,
	}
}

// CreateCampaign godoc
// @Summary Create a campaign
// @Description Creates a draft reactivation campaign targeting one or more segments over one or more channels
// @Tags Campaigns
// @Accept json
// @Produce json
// @Param campaign body campaigns.CreateInput true "Campaign definition"
// @Success 201 {object} models.Campaign
// @Failure 400 {object} map[string]string "Validation error"
// @Router /campaigns [post]
func (h *CampaignHandler) CreateCampaign(c echo.Context) error {
	ctx := c.Request().Context()

	var input campaigns.CreateInput
	if err := c.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, map[string]string{
			"error": "invalid request body",
		})
	}

	campaign, err := h.campaignService.Create(ctx, &input)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, campaign)
}

// GetCampaign godoc
// @Summary Get a campaign
// @Description Returns a campaign with its touch status breakdown
// @Tags Campaigns
// @Produce json
// @Param id path string true "Campaign ID"
// @Success 200 {object} campaigns.Detail
// @Failure 404 {object} map[string]string "Campaign not found"
// @Router /campaigns/{id} [get]
func (h *CampaignHandler) GetCampaign(c echo.Context) error {
	detail, err := h.campaignService.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, detail)
}

// ListCampaigns godoc
// @Summary List campaigns by status
// @Tags Campaigns
// @Produce json
// @Param status query string false "Campaign status (default active)"
// @Success 200 {object} map[string]interface{}
// @Router /campaigns [get]
func (h *CampaignHandler) ListCampaigns(c echo.Context) error {
	status := models.CampaignStatus(c.QueryParam("status"))
	if status == "" {
		status = models.CampaignActive
	}

	list, err := h.campaignService.List(c.Request().Context(), status)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"campaigns": list,
		"total":     len(list),
	})
}

// ActivateCampaign godoc
// @Summary Activate or resume a campaign
// @Description Expands the campaign into touches and starts dispatch; resuming requeues pending touches without duplicating them
// @Tags Campaigns
// @Produce json
// @Param id path string true "Campaign ID"
// @Success 200 {object} map[string]string
// @Failure 409 {object} map[string]string "Illegal transition"
// @Router /campaigns/{id}/activate [post]
func (h *CampaignHandler) ActivateCampaign(c echo.Context) error {
	id := c.Param("id")
	if err := h.campaignService.Activate(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": string(models.CampaignActive)})
}

// PauseCampaign godoc
// @Summary Pause a campaign
// @Description Withdraws queued dispatch jobs; pending touches survive for a later resume
// @Tags Campaigns
// @Produce json
// @Param id path string true "Campaign ID"
// @Success 200 {object} map[string]string
// @Failure 409 {object} map[string]string "Illegal transition"
// @Router /campaigns/{id}/pause [post]
func (h *CampaignHandler) PauseCampaign(c echo.Context) error {
	id := c.Param("id")
	if err := h.campaignService.Pause(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": string(models.CampaignPaused)})
}

// CancelCampaign godoc
// @Summary Cancel a campaign
// @Description Fails every pending touch and completes the campaign
// @Tags Campaigns
// @Produce json
// @Param id path string true "Campaign ID"
// @Success 200 {object} map[string]string
// @Failure 409 {object} map[string]string "Illegal transition"
// @Router /campaigns/{id}/cancel [post]
func (h *CampaignHandler) CancelCampaign(c echo.Context) error {
	id := c.Param("id")
	if err := h.campaignService.Cancel(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": string(models.CampaignCompleted)})
}

// CompleteCampaign godoc
// @Summary Complete a campaign
// @Description Marks a campaign as having run its course; with nurture=true, silent leads get the long-tail nurture sequence
// @Tags Campaigns
// @Produce json
// @Param id path string true "Campaign ID"
// @Param nurture query bool false "Schedule nurture for leads that never replied"
// @Success 200 {object} map[string]string
// @Failure 409 {object} map[string]string "Illegal transition"
// @Router /campaigns/{id}/complete [post]
func (h *CampaignHandler) CompleteCampaign(c echo.Context) error {
	id := c.Param("id")
	withNurture, _ := strconv.ParseBool(c.QueryParam("nurture"))

	if err := h.campaignService.Complete(c.Request().Context(), id, withNurture); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": string(models.CampaignCompleted)})
}
