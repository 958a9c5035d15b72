package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/messaging-service/internal/api/dto"
	"github.com/spec-kit/messaging-service/internal/auth"
	"github.com/spec-kit/messaging-service/internal/domain"
	"github.com/spec-kit/messaging-service/internal/repository"
	"github.com/spec-kit/messaging-service/internal/service"
	apperrors "github.com/spec-kit/messaging-service/pkg/util/errorutil"
)

// MessagesHandler exposes the message board.
type MessagesHandler struct {
	messages *service.MessageService
}

// NewMessagesHandler constructs handler.
func NewMessagesHandler(messages *service.MessageService) *MessagesHandler {
	return &MessagesHandler{messages: messages}
}

// Post handles POST /postMessage.
func (h *MessagesHandler) Post(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewInternalError(errors.New("identity missing from authenticated route"))
	}

	var req dto.PostMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewDomainError("INVALID_PAYLOAD", "Invalid request body", http.StatusBadRequest, nil)
	}

	msg, err := h.messages.Post(c.UserContext(), identity, req.Content, req.AuthorName)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyContent):
			return apperrors.NewValidationError("Message content is required", nil)
		case errors.Is(err, service.ErrContentTooLong):
			return apperrors.NewValidationError(fmt.Sprintf("Message content exceeds %d characters", domain.MaxMessageLength), nil)
		}
		return apperrors.NewInternalError(err)
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Message created",
		"data":    dto.NewMessageView(*msg),
	})
}

// List handles GET /messages.
func (h *MessagesHandler) List(c *fiber.Ctx) error {
	msgs, err := h.messages.List(c.UserContext(), c.QueryInt("limit", service.DefaultListLimit))
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    dto.NewMessageViews(msgs),
	})
}

// Delete handles DELETE /messages/:id.
func (h *MessagesHandler) Delete(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewInternalError(errors.New("identity missing from authenticated route"))
	}

	if err := h.messages.Delete(c.UserContext(), identity, c.Params("id")); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewNotFound("Message")
		}
		return apperrors.NewInternalError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}
