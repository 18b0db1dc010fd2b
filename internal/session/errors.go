package session

import "classroom/internal/apperr"

var (
	ErrMissingOpenFields    = apperr.Validation("missing_fields", "classId and date are required")
	ErrMissingCheckinFields = apperr.Validation("missing_fields", "classId, date, studentCodeOrEmail, pin are required")
	ErrInvalidID            = apperr.Validation("invalid_id", "classId and date must not contain '/'")
	ErrWindowTooLong        = apperr.Validation("invalid_window", "windowMinutes must be at most 1440")

	ErrNotOpened  = apperr.State("not_opened", "Session not opened")
	ErrClosed     = apperr.State("closed", "Check-in is closed")
	ErrNotStarted = apperr.State("not_started", "Check-in not started")
	ErrEnded      = apperr.State("ended", "Check-in time ended")
	ErrInvalidPIN = apperr.State("invalid_pin", "Invalid PIN")
	ErrNotStudent = apperr.State("not_student", "Not a student account")
	ErrInactive   = apperr.State("inactive", "Student not active")
	ErrWrongClass = apperr.State("wrong_class", "Student not in this class")
)
