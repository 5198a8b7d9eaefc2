// Package partition derives which partitions of a sharded topic this process
// instance owns. Ownership is a pure function of the instance layout, so
// instances never need to coordinate.
package partition

import (
	"errors"
	"fmt"
)

var ErrInvalidLayout = errors.New("partition: invalid layout")

// Layout describes the horizontally scaled deployment.
type Layout struct {
	Partitions    int32
	InstanceCount int32
	InstanceID    int32
}

// Validate rejects layouts that cannot produce a meaningful assignment. It is
// meant to run at startup.
func (l Layout) Validate() error {
	switch {
	case l.Partitions <= 0:
		return fmt.Errorf("%w: partition count must be > 0, got %d", ErrInvalidLayout, l.Partitions)
	case l.InstanceCount <= 0:
		return fmt.Errorf("%w: instance count must be > 0, got %d", ErrInvalidLayout, l.InstanceCount)
	case l.InstanceID < 0 || l.InstanceID >= l.InstanceCount:
		return fmt.Errorf("%w: instance id %d outside [0,%d)", ErrInvalidLayout, l.InstanceID, l.InstanceCount)
	}
	return nil
}

// Assign returns, in ascending order, every partition p in [0,Partitions)
// with p mod InstanceCount == InstanceID.
func Assign(l Layout) ([]int32, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	out := make([]int32, 0, (l.Partitions+l.InstanceCount-1)/l.InstanceCount)
	for p := l.InstanceID; p < l.Partitions; p += l.InstanceCount {
		out = append(out, p)
	}
	return out, nil
}

// Diff reports the partitions gained and lost when moving from prev to next.
func Diff(prev, next []int32) (added, removed []int32) {
	in := func(set []int32, p int32) bool {
		for _, q := range set {
			if q == p {
				return true
			}
		}
		return false
	}
	for _, p := range next {
		if !in(prev, p) {
			added = append(added, p)
		}
	}
	for _, p := range prev {
		if !in(next, p) {
			removed = append(removed, p)
		}
	}
	return added, removed
}
