package reconcile

import (
	"errors"

	"github.com/okian/coinboard/internal/domain/model"
)

// Sentinel kinds for reconciliation errors.
var (
	ErrUnknownChapter = errors.New("unknown chapter")
	ErrUnknownMetric  = model.ErrUnknownMetric
	ErrInvalidPatch   = errors.New("invalid retention patch")
)
