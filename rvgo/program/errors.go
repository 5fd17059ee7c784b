package program

import "errors"

var (
	ErrMalformedELF            = errors.New("malformed ELF")
	ErrMissingSignatureSymbols = errors.New("missing signature symbols")
	ErrInvertedSignatureRange  = errors.New("inverted signature range")
)
