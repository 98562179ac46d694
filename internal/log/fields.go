package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldErrorType  = "error_type"
	FieldOperation  = "operation"
	FieldSenderID   = "sender_id"
	FieldChatID     = "chat_id"
	FieldLedgerID   = "ledger_id"
	FieldCommand    = "command"
	FieldLines      = "lines"
	FieldAdded      = "added"
	FieldFailed     = "failed"
	FieldRejected   = "rejected"
)

// Components defines standard component names
const (
	ComponentApp          = "app"
	ComponentHTTP         = "http"
	ComponentBot          = "bot"
	ComponentRegistration = "registration"
	ComponentSummary      = "summary"
	ComponentStorage      = "storage"
	ComponentAMQP         = "amqp"
	ComponentWorker       = "worker"
	ComponentSheets       = "sheets"
	ComponentCache        = "cache"
	ComponentRateLimit    = "rate_limit"
	ComponentBackend      = "backend"
)

// Operations defines standard operation names
const (
	OpHandle   = "handle"
	OpRead     = "read"
	OpAppend   = "append"
	OpRegister = "register"
	OpSummary  = "summary"
	OpPublish  = "publish"
	OpConsume  = "consume"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeValidation    = "validation_error"
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeBackend       = "backend_error"
	ErrorTypeAccessDenied  = "access_denied"
	ErrorTypeTimeout       = "timeout_error"
	ErrorTypeNotRegistered = "not_registered"
	ErrorTypeInternal      = "internal_error"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithRequestID(requestID string) LogFields {
	if requestID != "" {
		f[FieldRequestID] = requestID
	}
	return f
}

func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithMessage adds the identity of an inbound chat message.
func (f LogFields) WithMessage(senderID, chatID string, lines int) LogFields {
	f[FieldSenderID] = senderID
	f[FieldChatID] = chatID
	f[FieldLines] = lines
	return f
}

// WithBatch adds the outcome counters of one processed message.
func (f LogFields) WithBatch(added, failed, rejected int) LogFields {
	f[FieldAdded] = added
	f[FieldFailed] = failed
	f[FieldRejected] = rejected
	return f
}

func (f LogFields) WithHTTPRequest(method, path, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	if userAgent != "" {
		f[FieldUserAgent] = userAgent
	}
	return f
}

func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = statusCode < 400
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
