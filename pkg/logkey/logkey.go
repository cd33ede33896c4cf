package logkey

// Keys used with slog so log fields stay grepable across handlers.
const (
	TraceID = "Trace ID"
	ERROR   = "Error"
	OrderID = "OrderID"
	UserID  = "UserID"
)
