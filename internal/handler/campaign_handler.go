package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/outreach-engine/internal/domain"
	"github.com/kursadbilgin/outreach-engine/internal/service"
)

type CampaignService interface {
	CheckConflicts(ctx context.Context, leadIDs []string) ([]string, error)
	CreateCampaign(ctx context.Context, input service.CreateCampaignInput) (*domain.Campaign, error)
	Get(ctx context.Context, id string) (*domain.Campaign, error)
	SetPaused(ctx context.Context, id string, paused bool) (*domain.Campaign, error)
}

// BatchRunner starts and tracks asynchronous campaign batches.
type BatchRunner interface {
	Start(campaignID string) (string, error)
	Get(batchID string) (service.BatchStatus, error)
	Abort(batchID string) error
}

type CampaignHandler struct {
	campaigns CampaignService
	batches   BatchRunner
}

func NewCampaignHandler(campaigns CampaignService, batches BatchRunner) (*CampaignHandler, error) {
	if campaigns == nil {
		return nil, fmt.Errorf("campaign service is required")
	}
	if batches == nil {
		return nil, fmt.Errorf("batch runner is required")
	}
	return &CampaignHandler{campaigns: campaigns, batches: batches}, nil
}

func RegisterCampaignRoutes(router fiber.Router, campaigns CampaignService, batches BatchRunner) error {
	h, err := NewCampaignHandler(campaigns, batches)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/campaigns/conflicts", h.CheckConflicts)
	v1.Post("/campaigns", h.CreateCampaign)
	v1.Get("/campaigns/:id", h.GetCampaign)
	v1.Post("/campaigns/:id/pause", h.PauseCampaign)
	v1.Post("/campaigns/:id/resume", h.ResumeCampaign)
	v1.Post("/campaigns/:id/send", h.SendCampaign)
	v1.Get("/batches/:batchId", h.GetBatch)
	v1.Post("/batches/:batchId/abort", h.AbortBatch)

	return nil
}

type conflictsRequest struct {
	LeadIDs []string `json:"leadIds"`
}

type conflictsResponse struct {
	ConflictingLeadIDs []string `json:"conflictingLeadIds"`
}

type createCampaignRequest struct {
	Name    string   `json:"name"`
	LeadIDs []string `json:"leadIds"`
	Force   bool     `json:"force"`
}

type campaignMemberResponse struct {
	LeadID      string `json:"leadId"`
	EmailStatus string `json:"emailStatus"`
	Position    int    `json:"position"`
}

type campaignResponse struct {
	ID        string                   `json:"id"`
	Name      string                   `json:"name"`
	Status    string                   `json:"status"`
	Members   []campaignMemberResponse `json:"members"`
	CreatedAt time.Time                `json:"createdAt,omitempty"`
	UpdatedAt time.Time                `json:"updatedAt,omitempty"`
}

type conflictErrorResponse struct {
	Error              string   `json:"error"`
	ConflictingLeadIDs []string `json:"conflictingLeadIds"`
}

type batchStartedResponse struct {
	BatchID    string `json:"batchId"`
	CampaignID string `json:"campaignId"`
	State      string `json:"state"`
}

func (h *CampaignHandler) CheckConflicts(c *fiber.Ctx) error {
	var req conflictsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if len(req.LeadIDs) == 0 {
		return toHTTPError(fmt.Errorf("%w: leadIds is required", domain.ErrValidation))
	}

	conflicts, err := h.campaigns.CheckConflicts(requestContext(c), req.LeadIDs)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(conflictsResponse{ConflictingLeadIDs: conflicts})
}

func (h *CampaignHandler) CreateCampaign(c *fiber.Ctx) error {
	var req createCampaignRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	campaign, err := h.campaigns.CreateCampaign(requestContext(c), service.CreateCampaignInput{
		Name:    req.Name,
		LeadIDs: req.LeadIDs,
		Force:   req.Force,
	})
	if err != nil {
		var conflict *service.ConflictError
		if errors.As(err, &conflict) {
			return c.Status(fiber.StatusConflict).JSON(conflictErrorResponse{
				Error:              err.Error(),
				ConflictingLeadIDs: conflict.LeadIDs,
			})
		}
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(toCampaignResponse(campaign))
}

func (h *CampaignHandler) GetCampaign(c *fiber.Ctx) error {
	campaign, err := h.campaigns.Get(requestContext(c), strings.TrimSpace(c.Params("id")))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toCampaignResponse(campaign))
}

func (h *CampaignHandler) PauseCampaign(c *fiber.Ctx) error {
	return h.setPaused(c, true)
}

func (h *CampaignHandler) ResumeCampaign(c *fiber.Ctx) error {
	return h.setPaused(c, false)
}

func (h *CampaignHandler) setPaused(c *fiber.Ctx, paused bool) error {
	campaign, err := h.campaigns.SetPaused(requestContext(c), strings.TrimSpace(c.Params("id")), paused)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toCampaignResponse(campaign))
}

func (h *CampaignHandler) SendCampaign(c *fiber.Ctx) error {
	campaignID := strings.TrimSpace(c.Params("id"))

	campaign, err := h.campaigns.Get(requestContext(c), campaignID)
	if err != nil {
		return toHTTPError(err)
	}
	if campaign.Status == domain.CampaignStatusPaused {
		return toHTTPError(fmt.Errorf("%w: campaign is paused", domain.ErrConflict))
	}

	batchID, err := h.batches.Start(campaign.ID)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusAccepted).JSON(batchStartedResponse{
		BatchID:    batchID,
		CampaignID: campaign.ID,
		State:      string(service.BatchStateRunning),
	})
}

func (h *CampaignHandler) GetBatch(c *fiber.Ctx) error {
	status, err := h.batches.Get(strings.TrimSpace(c.Params("batchId")))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(status)
}

func (h *CampaignHandler) AbortBatch(c *fiber.Ctx) error {
	batchID := strings.TrimSpace(c.Params("batchId"))
	if err := h.batches.Abort(batchID); err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"batchId": batchID,
		"status":  "aborting",
	})
}

func toCampaignResponse(c *domain.Campaign) campaignResponse {
	if c == nil {
		return campaignResponse{}
	}

	members := make([]campaignMemberResponse, 0, len(c.Members))
	for _, m := range c.Members {
		members = append(members, campaignMemberResponse{
			LeadID:      m.LeadID,
			EmailStatus: m.EmailStatus.String(),
			Position:    m.Position,
		})
	}

	return campaignResponse{
		ID:        c.ID,
		Name:      c.Name,
		Status:    c.Status.String(),
		Members:   members,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}
