package tensor

import (
	"fmt"

	pkgerrors "github.com/absmach/fedprox/pkg/errors"
	"github.com/fxamacker/cbor/v2"
)

// SnapshotVersion is the only snapshot layout understood by Decode.
const SnapshotVersion = "params.v1"

type encodedParam struct {
	Name  string    `cbor:"name"`
	Shape []int     `cbor:"shape"`
	Data  []float64 `cbor:"data"`
}

type encodedSet struct {
	Version string         `cbor:"version"`
	Params  []encodedParam `cbor:"params"`
}

// Encode serializes p into a self-describing CBOR snapshot.
func Encode(p ParameterSet) ([]byte, error) {
	enc := encodedSet{
		Version: SnapshotVersion,
		Params:  make([]encodedParam, len(p.tensors)),
	}
	for i, t := range p.tensors {
		enc.Params[i] = encodedParam{
			Name:  p.spec[i].Name,
			Shape: t.Shape,
			Data:  t.Data,
		}
	}

	return cbor.Marshal(enc)
}

// Decode parses a snapshot produced by Encode.
func Decode(data []byte) (ParameterSet, error) {
	var enc encodedSet
	if err := cbor.Unmarshal(data, &enc); err != nil {
		return ParameterSet{}, fmt.Errorf("%w: failed to decode snapshot: %w", pkgerrors.ErrInvalidData, err)
	}
	if enc.Version != SnapshotVersion {
		return ParameterSet{}, fmt.Errorf("%w: unsupported snapshot version %q", pkgerrors.ErrInvalidData, enc.Version)
	}

	spec := make(Spec, len(enc.Params))
	tensors := make([]Tensor, len(enc.Params))
	for i, ep := range enc.Params {
		spec[i] = Param{Name: ep.Name, Shape: Shape(ep.Shape)}
		tensors[i] = Tensor{Shape: Shape(ep.Shape), Data: ep.Data}
		if tensors[i].Data == nil {
			tensors[i].Data = []float64{}
		}
	}

	return FromTensors(spec, tensors)
}
