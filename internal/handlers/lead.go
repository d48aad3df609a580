package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/waitlist/internal/services"
	appErrors "github.com/charlesng35/waitlist/pkg/errors"
	"github.com/charlesng35/waitlist/pkg/response"
)

// DefaultMaxBodyBytes bounds lead payloads when no limit is configured.
const DefaultMaxBodyBytes int64 = 64 * 1024

// LeadSubmitter accepts parsed waitlist submissions.
type LeadSubmitter interface {
	Submit(ctx context.Context, sub services.Submission, prov services.Provenance) error
}

// LeadHandler exposes the lead intake endpoint.
type LeadHandler struct {
	leads        LeadSubmitter
	maxBodyBytes int64
}

// NewLeadHandler constructs a LeadHandler. A non-positive maxBodyBytes selects
// DefaultMaxBodyBytes.
func NewLeadHandler(leads LeadSubmitter, maxBodyBytes int64) (*LeadHandler, error) {
	if leads == nil {
		return nil, errors.New("lead handler: lead service is required")
	}
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &LeadHandler{leads: leads, maxBodyBytes: maxBodyBytes}, nil
}

// Submit handles every method on the lead route: OPTIONS is answered with 204, anything
// other than POST with 405.
func (h *LeadHandler) Submit(c *gin.Context) {
	switch c.Request.Method {
	case http.MethodOptions:
		response.NoContent(c, http.StatusNoContent)
		return
	case http.MethodPost:
	default:
		c.Header("Allow", http.MethodPost)
		response.Error(c, appErrors.ErrMethodNotAllowed)
		return
	}

	payload, err := h.readPayload(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	prov := services.Provenance{
		UserAgent: c.Request.UserAgent(),
		IP:        c.ClientIP(),
	}
	if err := h.leads.Submit(c.Request.Context(), services.ParseSubmission(payload), prov); err != nil {
		var appErr *appErrors.AppError
		if !errors.As(err, &appErr) {
			err = appErrors.ErrSaveFailed.WithInternal(err)
		}
		_ = c.Error(err)
		response.Error(c, err)
		return
	}

	response.OK(c)
}

// readPayload returns the decoded body, or an empty payload when the body is not a JSON
// object. Oversized bodies fail with ErrPayloadTooLarge.
func (h *LeadHandler) readPayload(c *gin.Context) (map[string]any, error) {
	if c.Request.Body == nil {
		return map[string]any{}, nil
	}

	body := http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes)
	raw, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, appErrors.ErrPayloadTooLarge
		}
		return map[string]any{}, nil
	}
	return decodePayload(raw), nil
}

// decodePayload accepts a JSON object, or a JSON string that itself holds a JSON object.
func decodePayload(raw []byte) map[string]any {
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return map[string]any{}
	}

	if text, ok := value.(string); ok {
		value = nil
		if err := json.Unmarshal([]byte(text), &value); err != nil {
			return map[string]any{}
		}
	}

	if obj, ok := value.(map[string]any); ok {
		return obj
	}
	return map[string]any{}
}
