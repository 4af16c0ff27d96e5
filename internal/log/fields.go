package log

// Common field names for structured logging.
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldError      = "error"
	FieldOperation  = "operation"

	FieldExpenseID   = "expense_id"
	FieldTitle       = "title"
	FieldAmount      = "amount"
	FieldFileKey     = "file_key"
	FieldUploadStage = "upload_stage"
	FieldCacheKey    = "cache_key"
	FieldEvent       = "event"
)

// Components defines standard component names.
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentExpense = "expense"
	ComponentStorage = "storage"
	ComponentBlob    = "blob"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
	ComponentAuth    = "auth"
	ComponentClient  = "client"
)

// Operations defines standard operation names.
const (
	OpCreate     = "create"
	OpRead       = "read"
	OpUpdate     = "update"
	OpDelete     = "delete"
	OpList       = "list"
	OpSign       = "sign"
	OpUpload     = "upload"
	OpInvalidate = "invalidate"
	OpRollback   = "rollback"
	OpStartup    = "startup"
	OpShutdown   = "shutdown"
)
