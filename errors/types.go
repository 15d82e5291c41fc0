package errors

// Codes follow HTTP status semantics so the health endpoint can map them
// directly onto responses.

func BadRequest(format string, args ...any) *Error {
	return New(400, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return New(404, format, args...)
}

// Gone marks a resource that has been shut down for good
func Gone(format string, args ...any) *Error {
	return New(410, format, args...)
}

func Internal(format string, args ...any) *Error {
	return New(500, format, args...)
}

// Unavailable marks a transient condition the caller may retry later
func Unavailable(format string, args ...any) *Error {
	return New(503, format, args...)
}

func Timeout(format string, args ...any) *Error {
	return New(504, format, args...)
}
