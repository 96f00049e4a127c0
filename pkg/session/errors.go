package session

// ErrorCode represents a specific session failure.
type ErrorCode string

const (
	ErrCodeNoFace           ErrorCode = "NO_FACE"
	ErrCodeMultipleFaces    ErrorCode = "MULTIPLE_FACES"
	ErrCodeCamera           ErrorCode = "CAMERA_ERROR"
	ErrCodePermissionDenied ErrorCode = "PERMISSION_DENIED"
	ErrCodeTimeout          ErrorCode = "TIMEOUT"
	ErrCodeIncomplete       ErrorCode = "INCOMPLETE"
	ErrCodeCancelled        ErrorCode = "CANCELLED"
)

// RunError is a structured session error.
type RunError struct {
	Code    ErrorCode
	Message string
	Retry   bool
	Details map[string]interface{}
}

func (e *RunError) Error() string {
	return e.Message
}

// User-friendly error messages
var errorMessages = map[ErrorCode]string{
	ErrCodeNoFace:           "Please position your face inside the circle",
	ErrCodeMultipleFaces:    "Multiple faces detected. Please ensure only you are in frame",
	ErrCodeCamera:           "Camera error. Please check your camera connection",
	ErrCodePermissionDenied: "Camera access was denied",
	ErrCodeTimeout:          "Liveness check timed out. Please try again",
	ErrCodeIncomplete:       "Not all actions were performed. Please try again",
	ErrCodeCancelled:        "Liveness check cancelled",
}

// GetErrorMessage returns a user-friendly message for an error code.
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}
	return "Liveness check failed"
}

// NewRunError creates a new session error.
func NewRunError(code ErrorCode, retry bool) *RunError {
	return &RunError{
		Code:    code,
		Message: GetErrorMessage(code),
		Retry:   retry,
		Details: make(map[string]interface{}),
	}
}
