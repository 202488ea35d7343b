// Package transport moves parameter sets between the coordinator and the
// simulated clients entirely in memory. Every hop goes through an encoded
// snapshot, so a receiver never shares memory with the sender.
package transport

import (
	"fmt"

	"github.com/absmach/fedprox/pkg/crypto"
	pkgerrors "github.com/absmach/fedprox/pkg/errors"
	"github.com/absmach/fedprox/pkg/tensor"
)

type Dispatcher struct {
	sealer *crypto.Sealer
}

// NewDispatcher returns a dispatcher that seals snapshots when key is
// non-empty.
func NewDispatcher(key []byte) (*Dispatcher, error) {
	if len(key) == 0 {
		return &Dispatcher{}, nil
	}

	s, err := crypto.NewSealer(key)
	if err != nil {
		return nil, fmt.Errorf("%w: transfer key: %w", pkgerrors.ErrInvalidConfig, err)
	}

	return &Dispatcher{sealer: s}, nil
}

func (d *Dispatcher) Sealed() bool {
	return d.sealer != nil
}

// Snapshot encodes ps for delivery.
func (d *Dispatcher) Snapshot(ps tensor.ParameterSet) ([]byte, error) {
	data, err := tensor.Encode(ps)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if d.sealer == nil {
		return data, nil
	}

	return d.sealer.Seal(data)
}

// Receive decodes a snapshot and checks it against spec.
func (d *Dispatcher) Receive(data []byte, spec tensor.Spec) (tensor.ParameterSet, error) {
	if d.sealer != nil {
		plain, err := d.sealer.Open(data)
		if err != nil {
			return tensor.ParameterSet{}, fmt.Errorf("%w: failed to open snapshot: %w", pkgerrors.ErrInvalidData, err)
		}
		data = plain
	}

	ps, err := tensor.Decode(data)
	if err != nil {
		return tensor.ParameterSet{}, err
	}
	if err := ps.Conforms(spec); err != nil {
		return tensor.ParameterSet{}, err
	}

	return ps, nil
}
