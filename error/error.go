package error

import "errors"

var (
	ErrNoSuspendedExecution = errors.New("no suspended execution exists for this id")
	ErrExecutionResumed     = errors.New("execution is already resumed")
	ErrBreakpointIDRequired = errors.New("breakpoint id cannot be empty")
	ErrLanguageNotSupported = errors.New("This language is not supported")
	ErrNotScriptActivity    = errors.New("activity is not a script task")
	ErrSessionClosed        = errors.New("debug session is closed")
	ErrActivityNotFound     = errors.New("activity not found")
)
