package orchestration

import (
	"errors"
	"fmt"

	pkgerrors "github.com/absmach/fedprox/pkg/errors"
)

var (
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrRoundNotFound          = errors.New("round not found")
	ErrRoundExists            = errors.New("round already exists")
	ErrNoClients              = fmt.Errorf("%w: no clients", pkgerrors.ErrInvalidClientCount)
	ErrMissingComponent       = fmt.Errorf("%w: missing coordinator component", pkgerrors.ErrInvalidConfig)
)
