package log

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldClientIP      = "client_ip"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldStatusCode    = "status_code"
	FieldDuration      = "duration_ms"
	FieldError         = "error"
	FieldOperation     = "operation"
	FieldWalletID      = "wallet_id"
	FieldTransactionID = "transaction_id"
	FieldTransferID    = "transfer_id"
	FieldRuleID        = "rule_id"
	FieldAmount        = "amount"
	FieldCurrency      = "currency"
	FieldScheduledAt   = "scheduled_at"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentLedger    = "ledger"
	ComponentTransfer  = "transfer"
	ComponentScheduler = "scheduler"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpTransfer = "transfer"
	OpDispatch = "dispatch"
	OpRun      = "run"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)
