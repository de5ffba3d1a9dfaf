package realtime

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChannelFor_RoundTrip(t *testing.T) {
	channel := channelFor(42)
	require.Equal(t, "item_updates:42", channel)

	id, err := itemIDFromChannel(channel)
	require.NoError(t, err)
	require.Equal(t, int64(42), id)
}

func TestItemIDFromChannel_Invalid(t *testing.T) {
	_, err := itemIDFromChannel("garbage")
	require.Error(t, err)
}
