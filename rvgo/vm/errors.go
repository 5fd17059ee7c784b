package vm

import "errors"

var (
	ErrExecutionFault = errors.New("execution fault")
	ErrIO             = errors.New("i/o failure")
)
