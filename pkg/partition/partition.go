// Package partition splits a dataset's index space into disjoint client shards.
package partition

import (
	"fmt"
	"math/rand/v2"

	pkgerrors "github.com/absmach/fedprox/pkg/errors"
)

// Shard is the immutable set of dataset indices owned by one client.
type Shard struct {
	Client  int
	Indices []int
}

func (s Shard) Len() int {
	return len(s.Indices)
}

// Partition shuffles 0..size-1 with rng and cuts the permutation into
// numClients contiguous groups whose sizes differ by at most one.
func Partition(size, numClients int, rng *rand.Rand) ([]Shard, error) {
	if numClients <= 0 || numClients > size {
		return nil, fmt.Errorf("%w: %d clients for %d examples", pkgerrors.ErrInvalidClientCount, numClients, size)
	}

	perm := rng.Perm(size)

	base, extra := size/numClients, size%numClients
	shards := make([]Shard, numClients)
	start := 0
	for c := range shards {
		n := base
		if c < extra {
			n++
		}
		shards[c] = Shard{
			Client:  c,
			Indices: perm[start : start+n : start+n],
		}
		start += n
	}

	return shards, nil
}

// Sizes returns the length of each shard in client order.
func Sizes(shards []Shard) []int {
	out := make([]int, len(shards))
	for i, s := range shards {
		out[i] = s.Len()
	}

	return out
}
