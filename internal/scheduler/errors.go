package scheduler

import (
	"errors"

	"cadence/internal/behavior"
)

var (
	ErrNilBehavior         = errors.New("behavior is nil")
	ErrNilResource         = errors.New("resource is nil")
	ErrUnknownResource     = errors.New("resource is not registered")
	ErrDuplicateResource   = errors.New("resource is already registered")
	ErrReentrantAdmission  = errors.New("request during admission")
	ErrFallbackRequirement = errors.New("fallback must require its resource")
	ErrComposed            = behavior.ErrComposed
)
