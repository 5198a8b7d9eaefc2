package partition

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAssign_TwoInstancesTenPartitions(t *testing.T) {
	p0, err := Assign(Layout{Partitions: 10, InstanceCount: 2, InstanceID: 0})
	require.NoError(t, err)
	require.Equal(t, []int32{0, 2, 4, 6, 8}, p0)

	p1, err := Assign(Layout{Partitions: 10, InstanceCount: 2, InstanceID: 1})
	require.NoError(t, err)
	require.Equal(t, []int32{1, 3, 5, 7, 9}, p1)
}

func TestAssign_CoversAllPartitionsDisjointly(t *testing.T) {
	for total := int32(1); total <= 17; total++ {
		for count := int32(1); count <= 7; count++ {
			seen := map[int32]int32{}
			for id := int32(0); id < count; id++ {
				got, err := Assign(Layout{Partitions: total, InstanceCount: count, InstanceID: id})
				require.NoError(t, err)
				for _, p := range got {
					owner, dup := seen[p]
					require.False(t, dup, "partition %d owned by %d and %d", p, owner, id)
					seen[p] = id
				}
			}
			require.Len(t, seen, int(total), "total=%d count=%d", total, count)
		}
	}
}

func TestAssign_MoreInstancesThanPartitions(t *testing.T) {
	got, err := Assign(Layout{Partitions: 2, InstanceCount: 4, InstanceID: 3})
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestAssign_Idempotent(t *testing.T) {
	l := Layout{Partitions: 10, InstanceCount: 3, InstanceID: 1}
	a, _ := Assign(l)
	b, _ := Assign(l)
	require.Equal(t, a, b)
}

func TestLayout_Validate(t *testing.T) {
	bad := []Layout{
		{Partitions: 0, InstanceCount: 1},
		{Partitions: -1, InstanceCount: 1},
		{Partitions: 10, InstanceCount: 0},
		{Partitions: 10, InstanceCount: 2, InstanceID: 2},
		{Partitions: 10, InstanceCount: 2, InstanceID: -1},
	}
	for _, l := range bad {
		require.ErrorIs(t, l.Validate(), ErrInvalidLayout, "%+v", l)
	}
}

func TestDiff(t *testing.T) {
	added, removed := Diff([]int32{0, 2, 4}, []int32{0, 3})
	require.Equal(t, []int32{3}, added)
	require.Equal(t, []int32{2, 4}, removed)
}
