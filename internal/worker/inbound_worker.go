package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"moneybot/internal/amqp"
	applog "moneybot/internal/log"
	"moneybot/internal/services"
)

// MessageHandler answers one chat message. *services.BotService satisfies it.
type MessageHandler interface {
	Handle(ctx context.Context, msg services.Message) services.Reply
}

type InboundConsumer interface {
	ConsumeInbound(ctx context.Context, handler func(context.Context, *amqp.InboundMessage) error) error
}

type ReplyPublisher interface {
	PublishReply(ctx context.Context, msg *amqp.ReplyMessage) error
}

// InboundWorker drains the inbound queue through the bot and publishes the
// answers on the reply queue.
type InboundWorker struct {
	handler   MessageHandler
	consumer  InboundConsumer
	publisher ReplyPublisher
	logger    *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	doneCh  chan struct{}
	err     error
}

func NewInboundWorker(handler MessageHandler, consumer InboundConsumer, publisher ReplyPublisher, logger *slog.Logger) *InboundWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &InboundWorker{
		handler:   handler,
		consumer:  consumer,
		publisher: publisher,
		logger:    logger.With(applog.FieldComponent, applog.ComponentWorker),
	}
}

// HandleInbound processes one queued message. The returned error makes the
// consumer reject the delivery; the ledger writes already made stay.
func (w *InboundWorker) HandleInbound(ctx context.Context, msg *amqp.InboundMessage) error {
	reply := w.handler.Handle(ctx, services.Message{
		Text:      msg.Text,
		SenderID:  msg.SenderID,
		ChatID:    msg.ChatID,
		Timestamp: msg.ReceivedAt,
	})
	if len(reply.Messages) == 0 {
		w.logger.DebugContext(ctx, "Nothing to reply", "id", msg.ID)
		return nil
	}

	if err := w.publisher.PublishReply(ctx, amqp.NewReplyMessage(msg.ID, reply.ChatID, reply.Messages)); err != nil {
		w.logger.ErrorContext(ctx, "Failed to publish reply",
			"id", msg.ID,
			applog.FieldChatID, reply.ChatID,
			applog.FieldError, err)
		return fmt.Errorf("publish reply: %w", err)
	}
	return nil
}

// Start begins consuming. Returns an error if already running.
func (w *InboundWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return fmt.Errorf("inbound worker is already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	w.running = true
	w.cancel = cancel
	w.doneCh = make(chan struct{})
	w.err = nil

	go w.run(ctx, w.doneCh)

	w.logger.InfoContext(ctx, "Inbound worker started")
	return nil
}

func (w *InboundWorker) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	err := w.consumer.ConsumeInbound(ctx, w.HandleInbound)
	if err != nil && !errors.Is(err, context.Canceled) {
		w.logger.ErrorContext(ctx, "Inbound consumer stopped", applog.FieldError, err)
	}

	w.mu.Lock()
	w.running = false
	w.err = err
	w.mu.Unlock()
}

// Stop cancels consumption and waits for the message in flight to finish.
func (w *InboundWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if w.cancel == nil {
		w.mu.Unlock()
		return nil
	}
	cancel, done := w.cancel, w.doneCh
	w.mu.Unlock()

	cancel()
	select {
	case <-done:
		w.logger.InfoContext(ctx, "Inbound worker stopped gracefully")
		return nil
	case <-ctx.Done():
		w.logger.WarnContext(ctx, "Inbound worker stop timed out")
		return ctx.Err()
	}
}

// Done is closed when the consumer loop exits.
func (w *InboundWorker) Done() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.doneCh
}

// Err reports why the consumer loop exited.
func (w *InboundWorker) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func (w *InboundWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
