package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"moneybot/internal/command"
	"moneybot/internal/core"
	applog "moneybot/internal/log"
	"moneybot/internal/refcache"
	"moneybot/internal/registration"
	ports "moneybot/internal/sheets"
	"moneybot/internal/summary"
)

// Message is one inbound chat message. Text may hold several lines.
type Message struct {
	Text      string    `json:"text"`
	SenderID  string    `json:"sender_id"`
	ChatID    string    `json:"chat_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Reply is everything to send back for one Message, in order.
type Reply struct {
	ChatID   string   `json:"chat_id"`
	Messages []string `json:"messages"`
}

type Options struct {
	AdminLedgerID       string
	ServiceAccountEmail string
	TemplateLink        string
	HelpTokens          []string
	// BackendTimeout bounds each backend call. Zero means no bound.
	BackendTimeout time.Duration
	Location       *time.Location
	Now            func() time.Time
	Logger         *slog.Logger
}

// BotService turns chat messages into ledger writes and answers.
type BotService struct {
	ledger     ports.Ledger
	refs       *refcache.Cache
	classifier *command.Classifier
	register   *registration.Flow
	summaries  *summary.Engine
	locks      *KeyedMutex
	opts       Options
	logger     *slog.Logger
	events     *applog.StructuredLogger
}

// NewBotService wires the service. refs may be nil, in which case a
// read-through reference cache over ledger is used.
func NewBotService(ledger ports.Ledger, refs *refcache.Cache, opts Options) *BotService {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(applog.FieldComponent, applog.ComponentBot)
	if refs == nil {
		refs = refcache.New(ledger, opts.AdminLedgerID, refcache.WithLogger(logger))
	}

	return &BotService{
		ledger:     ledger,
		refs:       refs,
		classifier: command.NewClassifier(opts.HelpTokens),
		register:   registration.NewFlow(ledger, opts.AdminLedgerID, logger),
		summaries: summary.NewEngine(ledger,
			summary.WithLocation(opts.Location),
			summary.WithClock(opts.Now),
			summary.WithLogger(logger)),
		locks:  NewKeyedMutex(),
		opts:   opts,
		logger: logger,
		events: applog.NewStructuredLogger(applog.Wrap(logger, applog.ComponentBot)),
	}
}

// NormalizeSenderID drops a "@domain" suffix from chat identities.
func NormalizeSenderID(id string) string {
	id = strings.TrimSpace(id)
	if i := strings.IndexByte(id, '@'); i >= 0 {
		return id[:i]
	}
	return id
}

// Handle processes every line of msg. It never returns an error: every
// failure is turned into reply text.
func (s *BotService) Handle(ctx context.Context, msg Message) Reply {
	reply := Reply{ChatID: msg.ChatID}
	sender := NormalizeSenderID(msg.SenderID)
	lines := splitLines(msg.Text)
	if len(lines) == 0 {
		return reply
	}

	arrival := msg.Timestamp
	if arrival.IsZero() {
		arrival = s.opts.Now()
	}
	arrival = arrival.In(s.opts.Location)

	acc, err := s.resolve(ctx, sender)
	switch {
	case errors.Is(err, core.ErrNotRegistered):
		reply.Messages = s.handleUnregistered(ctx, sender, lines)
		return reply
	case err != nil:
		s.logger.ErrorContext(ctx, "Registry lookup failed",
			applog.FieldSenderID, sender,
			applog.FieldError, err)
		reply.Messages = []string{failureReply}
		return reply
	}

	var out []string
	b := &batch{}
	var refs *core.ReferenceSet
	var refsErr error
	loadRefs := func() (core.ReferenceSet, error) {
		if refs == nil && refsErr == nil {
			callCtx, cancel := s.withTimeout(ctx)
			r, err := s.refs.References(callCtx, acc.LedgerID)
			cancel()
			if err != nil {
				refsErr = err
			} else {
				refs = &r
			}
		}
		if refsErr != nil {
			return core.ReferenceSet{}, refsErr
		}
		return *refs, nil
	}

	for _, line := range lines {
		cmd := s.classifier.Classify(line, true)
		s.logger.DebugContext(ctx, "Line classified",
			applog.FieldLedgerID, acc.LedgerID,
			applog.FieldCommand, cmd.Type())

		switch c := cmd.(type) {
		case command.Help:
			out = append(out, helpText(true))

		case command.SummaryQuery:
			out = append(out, s.answerSummary(ctx, acc, c, b))

		case command.ListQuery:
			r, err := loadRefs()
			if err != nil {
				s.noteBackendError(ctx, acc, err, b)
				out = append(out, listUnavailableText(c.Kind))
				continue
			}
			values := r.Categories
			if c.Kind == core.KindSource {
				values = r.Sources
			}
			out = append(out, listText(c.Kind, values))

		case command.AddTransaction:
			r, err := loadRefs()
			if err != nil {
				b.failed++
				s.noteBackendError(ctx, acc, err, b)
				continue
			}
			item, err := command.ValidateTransaction(c, r, arrival)
			if err != nil {
				b.errors = append(b.errors, lineError(line, err))
				continue
			}
			if err := s.appendTransaction(ctx, acc.LedgerID, item); err != nil {
				b.failed++
				s.noteBackendError(ctx, acc, err, b)
				continue
			}
			b.added++

		case command.AddConfig:
			item, err := command.ValidateConfig(c)
			if err != nil {
				b.errors = append(b.errors, lineError(line, err))
				continue
			}
			if err := s.appendConfig(ctx, acc.LedgerID, item); err != nil {
				b.configFailed++
				s.noteBackendError(ctx, acc, err, b)
				continue
			}
			b.configAdded++
			// Later lines of the same message see the new entry.
			refs, refsErr = nil, nil

		default:
			b.errors = append(b.errors, lineError(line, nil))
		}
	}

	if !b.empty() {
		out = append(out, b.text())
	}
	if b.accessDenied {
		out = append(out, accessDeniedText(s.opts.ServiceAccountEmail))
	}
	reply.Messages = out

	s.events.LogMessageHandled(ctx,
		sender, msg.ChatID, len(lines), b.added+b.configAdded, b.failed+b.configFailed, len(b.errors))
	return reply
}

func (s *BotService) handleUnregistered(ctx context.Context, sender string, lines []string) []string {
	switch c := s.classifier.Classify(lines[0], false).(type) {
	case command.Help:
		return []string{helpText(false)}
	case command.Register:
		callCtx, cancel := s.withTimeout(ctx)
		defer cancel()
		acc, err := s.register.Register(callCtx, sender, c)
		switch {
		case err == nil:
			return []string{registeredText(acc, s.opts.ServiceAccountEmail)}
		case errors.Is(err, core.ErrInvalidLink):
			return []string{"Invalid spreadsheet link. Please send the full link of your spreadsheet, it looks like https://docs.google.com/spreadsheets/d/<id>/edit"}
		default:
			s.logger.ErrorContext(ctx, "Registration failed",
				applog.FieldSenderID, sender,
				applog.FieldOperation, applog.OpRegister,
				applog.FieldError, err)
			return []string{failureReply}
		}
	default:
		return []string{notRegisteredText(s.opts.TemplateLink)}
	}
}

func (s *BotService) answerSummary(ctx context.Context, acc core.UserAccount, c command.SummaryQuery, b *batch) string {
	callCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	res, err := s.summaries.Compute(callCtx, c.RawArgs, acc.LedgerID)
	switch {
	case err == nil:
		return summaryText(res)
	case errors.Is(err, core.ErrInvalidRange), errors.Is(err, core.ErrInvalidMonth),
		errors.Is(err, core.ErrInvalidSummaryFormat):
		return summaryErrorText(c.RawArgs, err)
	default:
		s.noteBackendError(ctx, acc, err, b)
		return "Summary is not available right now."
	}
}

// appendTransaction writes once. A failed or timed out write is reported,
// never retried.
func (s *BotService) appendTransaction(ctx context.Context, ledgerID string, t core.TransactionItem) error {
	callCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.ledger.AppendTransaction(callCtx, ledgerID, t)
}

// appendConfig holds the ledger's lock across the row computation and the
// write inside the backend, then drops any cached references.
func (s *BotService) appendConfig(ctx context.Context, ledgerID string, c core.ConfigItem) error {
	unlock := s.locks.Lock(ledgerID)
	defer unlock()

	callCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.ledger.AppendConfig(callCtx, ledgerID, c); err != nil {
		return err
	}
	s.refs.Invalidate(ledgerID)
	return nil
}

func (s *BotService) noteBackendError(ctx context.Context, acc core.UserAccount, err error, b *batch) {
	errType := applog.ErrorTypeBackend
	switch {
	case errors.Is(err, core.ErrAccessDenied), errors.Is(err, core.ErrLedgerNotFound):
		b.accessDenied = true
		errType = applog.ErrorTypeAccessDenied
	case errors.Is(err, context.DeadlineExceeded):
		errType = applog.ErrorTypeTimeout
	}
	s.logger.WarnContext(ctx, "Backend call failed",
		applog.FieldLedgerID, acc.LedgerID,
		applog.FieldErrorType, errType,
		applog.FieldError, err)
}

func (s *BotService) resolve(ctx context.Context, sender string) (core.UserAccount, error) {
	callCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.refs.Resolve(callCtx, sender)
}

func (s *BotService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.BackendTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opts.BackendTimeout)
}

func splitLines(text string) []string {
	var out []string
	for _, l := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}
