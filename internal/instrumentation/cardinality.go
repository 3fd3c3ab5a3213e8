package instrumentation

// Common operation types for Google API metrics.
// Status, OAuth, and Service constants are defined in config.go.
const (
	OperationList   = "list"
	OperationGet    = "get"
	OperationCreate = "create"
	OperationUpdate = "update"
	OperationDelete = "delete"
)

// maxLabelLength bounds free-form label values such as model names.
const maxLabelLength = 64

// BoundLabel returns value unchanged when it is short and non-empty,
// "unknown" when empty, and a truncated value otherwise.
func BoundLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	if len(value) > maxLabelLength {
		return value[:maxLabelLength]
	}
	return value
}
