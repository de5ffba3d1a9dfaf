package realtime

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestManager_SubscriberCountEmpty(t *testing.T) {
	m := NewManager(nil)
	require.Equal(t, 0, m.SubscriberCount(1))
}
