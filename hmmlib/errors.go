package hmmlib

import (
	"github.com/pkg/errors"
)

// Sentinel errors returned by the package.  They are wrapped with context
// before being returned, use errors.Is to test for them.
var (
	ErrBadConfig     = errors.New("hmmlib: invalid configuration")
	ErrBadShape      = errors.New("hmmlib: invalid shape")
	ErrNotStochastic = errors.New("hmmlib: not a probability table")
	ErrSymbolRange   = errors.New("hmmlib: observation symbol out of range")
	ErrDimMismatch   = errors.New("hmmlib: dimension mismatch")
	ErrSingular      = errors.New("hmmlib: singular information matrix")
)
