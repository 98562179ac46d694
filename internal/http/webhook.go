package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"moneybot/internal/amqp"
	applog "moneybot/internal/log"
	"moneybot/internal/services"
)

type queuedResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// handleWebhook accepts one chat message as JSON. Without an enqueuer the
// bot reply is returned in the response body.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodPost); resp != nil {
		resp.Write(w)
		return
	}
	ctx := r.Context()
	logger := applog.FromContext(ctx)

	var msg services.Message
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err := dec.Decode(&msg); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			ErrorResponse(http.StatusRequestEntityTooLarge, "message too large").Write(w)
			return
		}
		BadRequestError("invalid JSON body").Write(w)
		return
	}
	msg.SenderID = strings.TrimSpace(msg.SenderID)
	if msg.SenderID == "" {
		BadRequestError("sender_id is required").Write(w)
		return
	}
	if msg.ChatID == "" {
		msg.ChatID = msg.SenderID
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now()
	}

	sender := services.NormalizeSenderID(msg.SenderID)
	if s.limiter != nil && !s.limiter.Allow(sender) {
		logger.WarnContext(ctx, "Rate limit exceeded",
			applog.FieldComponent, applog.ComponentRateLimit,
			applog.FieldSenderID, sender)
		TooManyRequestsError().Write(w)
		return
	}

	if s.enqueuer != nil {
		in := amqp.NewInboundMessage(msg.Text, msg.SenderID, msg.ChatID, msg.Timestamp)
		if err := s.enqueuer.PublishInbound(ctx, in); err != nil {
			logger.ErrorContext(ctx, "Failed to queue message",
				applog.FieldSenderID, sender,
				applog.FieldOperation, applog.OpPublish,
				applog.FieldError, err)
			ServiceUnavailableError("message could not be queued").Write(w)
			return
		}
		NewJSONResponse().Status(http.StatusAccepted).Body(queuedResponse{ID: in.ID, Status: "queued"}).Write(w)
		return
	}

	reply := s.bot.Handle(ctx, msg)
	if reply.Messages == nil {
		reply.Messages = []string{}
	}
	NewJSONResponse().Body(reply).Write(w)
}
