package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/onnwee/highlights/internal/auth"
	"github.com/onnwee/highlights/internal/engagement"
)

// DirtyMarker flags users whose interest vector needs recomputation.
type DirtyMarker interface {
	MarkDirty(ctx context.Context, userID string) error
}

// EventHandlers holds dependencies for the track-event endpoint.
type EventHandlers struct {
	log    engagement.Log
	dirty  DirtyMarker // optional
	logger *slog.Logger
}

// NewEventHandlers creates a new EventHandlers instance. dirty may be nil.
func NewEventHandlers(log engagement.Log, dirty DirtyMarker, logger *slog.Logger) *EventHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventHandlers{log: log, dirty: dirty, logger: logger}
}

// TrackEventRequest is the body of POST /v1/events.
type TrackEventRequest struct {
	// UserID lets privileged callers record events on behalf of a user.
	UserID    string         `json:"user_id"`
	PostID    string         `json:"post_id"`
	EventType string         `json:"event_type"`
	ValueNum  flexFloat      `json:"value_num"`
	ValueText *string        `json:"value_text"`
	Meta      map[string]any `json:"meta"`
}

// OKResponse is the generic success body.
type OKResponse struct {
	OK bool `json:"ok"`
}

// TrackEvent handles POST /v1/events. The event is recorded for the
// authenticated caller. A positive event marks the user for interest
// recomputation; failing to mark is logged and does not fail the request.
func (h *EventHandlers) TrackEvent(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	ctx := r.Context()
	caller := auth.CallerFrom(ctx)
	if !caller.Authenticated() {
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return
	}

	req := decodeBody[TrackEventRequest](r)

	userID := caller.UserID
	if target := strings.TrimSpace(req.UserID); target != "" && target != caller.UserID {
		if !caller.Privileged() {
			WriteError(w, ctx, http.StatusForbidden, ErrCodeForbidden, "Cannot record events for another user")
			return
		}
		userID = target
	}

	event := engagement.Event{
		UserID:    userID,
		PostID:    strings.TrimSpace(req.PostID),
		Type:      engagement.EventType(strings.ToLower(strings.TrimSpace(req.EventType))),
		ValueNum:  req.ValueNum.Ptr(),
		ValueText: req.ValueText,
		Meta:      req.Meta,
	}
	if err := event.Validate(); err != nil {
		msg := err.Error()
		if errors.Is(err, engagement.ErrUnknownEventType) {
			msg = "event_type must be one of view, like, complete, share, comment, follow, report"
		}
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, msg)
		return
	}

	if err := h.log.Append(ctx, event); err != nil {
		h.logger.ErrorContext(ctx, "failed to append engagement event",
			slog.String("post_id", event.PostID),
			slog.String("event_type", string(event.Type)),
			slog.String("error", err.Error()),
		)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeStoreFailed, clientMessages[ErrCodeStoreFailed])
		return
	}

	if event.Type.Positive() && h.dirty != nil {
		if err := h.dirty.MarkDirty(ctx, userID); err != nil {
			h.logger.WarnContext(ctx, "failed to mark user for interest recompute",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
	}

	writeJSON(w, r, http.StatusOK, OKResponse{OK: true})
}
