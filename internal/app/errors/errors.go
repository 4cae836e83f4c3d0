package errors

import (
	"errors"
)

var (
	ErrFailedToReadConfig  = errors.New("failed to read config file")
	ErrFailedToParseConfig = errors.New("failed to parse config file")
	ErrInvalidConfig       = errors.New("invalid configuration")

	ErrNameInUse             = errors.New("unit name already in use")
	ErrMissingDescriptorData = errors.New("unit descriptor has no exec_start")
	ErrUnitNotFound          = errors.New("unit not found")
	ErrUnitRunning           = errors.New("unit is running")
	ErrNoMainTask            = errors.New("forking exec_start did not return a task")

	ErrCapabilityNotSet  = errors.New("capability was not set")
	ErrCapabilityMissing = errors.New("capability not present")
	ErrAlreadyEnabled    = errors.New("capability already enabled")

	ErrClosed     = errors.New("queue is closed")
	ErrEmpty      = errors.New("queue is empty")
	ErrEndReached = errors.New("end of event stream")

	ErrUnknownCommand = errors.New("unknown command")
)

var (
	As  = errors.As
	Is  = errors.Is
	New = errors.New
)
