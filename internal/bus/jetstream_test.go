package bus

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestShardFor_Deterministic(t *testing.T) {
	for _, aggregateID := range []int64{1, 42, 1000, 999999} {
		first := shardFor(aggregateID, 8)
		second := shardFor(aggregateID, 8)
		require.Equal(t, first, second)
		require.GreaterOrEqual(t, first, 0)
		require.Less(t, first, 8)
	}
}

func TestShardFor_SpreadsAcrossShards(t *testing.T) {
	seen := make(map[int]bool)
	for aggregateID := int64(0); aggregateID < 200; aggregateID++ {
		seen[shardFor(aggregateID, 8)] = true
	}
	require.Greater(t, len(seen), 1, "expected aggregate ids to spread across more than one shard")
}

func TestShardFor_SingleShardAlwaysZero(t *testing.T) {
	require.Equal(t, 0, shardFor(12345, 1))
}
