package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/outreach-engine/internal/domain"
	"github.com/kursadbilgin/outreach-engine/internal/queue"
	"github.com/kursadbilgin/outreach-engine/internal/service"
)

// Dispatcher sends single emails and reports quota usage.
type Dispatcher interface {
	SendOne(ctx context.Context, leadID string, campaignID *string) (*service.BatchResult, error)
	Quota(ctx context.Context) (service.QuotaStatus, error)
}

type Suppressor interface {
	Suppress(ctx context.Context, address string, reason string) error
}

type ReplyIntake interface {
	Submit(ctx context.Context, msg queue.ReplyMessage) error
}

type SendHandler struct {
	dispatcher   Dispatcher
	suppressions Suppressor
	replies      ReplyIntake
}

func NewSendHandler(dispatcher Dispatcher, suppressions Suppressor, replies ReplyIntake) (*SendHandler, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if suppressions == nil {
		return nil, fmt.Errorf("suppression registry is required")
	}
	if replies == nil {
		return nil, fmt.Errorf("reply intake is required")
	}
	return &SendHandler{dispatcher: dispatcher, suppressions: suppressions, replies: replies}, nil
}

func RegisterSendRoutes(router fiber.Router, dispatcher Dispatcher, suppressions Suppressor, replies ReplyIntake) error {
	h, err := NewSendHandler(dispatcher, suppressions, replies)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/leads/:id/send", h.SendLead)
	v1.Get("/quota", h.GetQuota)
	v1.Post("/suppressions", h.Suppress)
	v1.Post("/replies", h.SubmitReply)

	return nil
}

type sendLeadRequest struct {
	CampaignID string `json:"campaignId"`
}

type sendLeadResponse struct {
	LeadID     string               `json:"leadId"`
	CampaignID *string              `json:"campaignId,omitempty"`
	Result     *service.BatchResult `json:"result"`
}

type suppressRequest struct {
	Address string `json:"address"`
	Reason  string `json:"reason"`
}

func (h *SendHandler) SendLead(c *fiber.Ctx) error {
	var req sendLeadRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
	}

	leadID := strings.TrimSpace(c.Params("id"))
	var campaignID *string
	if id := strings.TrimSpace(req.CampaignID); id != "" {
		campaignID = &id
	}

	result, err := h.dispatcher.SendOne(requestContext(c), leadID, campaignID)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(sendLeadResponse{
		LeadID:     leadID,
		CampaignID: campaignID,
		Result:     result,
	})
}

func (h *SendHandler) GetQuota(c *fiber.Ctx) error {
	status, err := h.dispatcher.Quota(requestContext(c))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(status)
}

func (h *SendHandler) Suppress(c *fiber.Ctx) error {
	var req suppressRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "manual"
	}
	if err := h.suppressions.Suppress(requestContext(c), req.Address, reason); err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"address": domain.NormalizeAddress(req.Address),
		"reason":  reason,
	})
}

func (h *SendHandler) SubmitReply(c *fiber.Ctx) error {
	var msg queue.ReplyMessage
	if err := c.BodyParser(&msg); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if msg.CorrelationID == "" {
		msg.CorrelationID = requestCorrelationID(c)
	}

	if err := h.replies.Submit(requestContext(c), msg); err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"status":        "queued",
		"correlationId": msg.CorrelationID,
	})
}
