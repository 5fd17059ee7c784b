package transpile

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedInstruction = errors.New("unsupported instruction")
	ErrInvalidJumpTarget      = errors.New("invalid jump target")
	ErrOverlappingClaims      = errors.New("overlapping extension claims")
)

// UnsupportedInstructionError reports a source word no enabled extension can translate.
type UnsupportedInstructionError struct {
	PC     uint32
	Word   uint32
	Reason string
}

func (e *UnsupportedInstructionError) Error() string {
	msg := fmt.Sprintf("%v at %08x: %08x (%s)", ErrUnsupportedInstruction, e.PC, e.Word, Disassemble(e.Word))
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *UnsupportedInstructionError) Unwrap() error {
	return ErrUnsupportedInstruction
}

func unsupported(in Instr, format string, args ...any) error {
	return &UnsupportedInstructionError{PC: in.PC, Word: in.Word, Reason: fmt.Sprintf(format, args...)}
}
