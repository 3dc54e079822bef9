package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/volcanic-ash-alert/internal/advisory"
)

func TestNotifierStoresMessages(t *testing.T) {
	t.Parallel()

	n := NewNotifier()
	files := []string{"volcano.html", "a_vag.png"}
	require.NoError(t, n.Notify(context.Background(), advisory.Message{Subject: "s", Attachments: files}))
	files[0] = "modified"

	msgs := n.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "volcano.html", msgs[0].Attachments[0])

	n.FailWith(errors.New("relay down"))
	require.Error(t, n.Notify(context.Background(), advisory.Message{}))
	assert.Len(t, n.Messages(), 1)
}

func TestPublisherStoresEvents(t *testing.T) {
	t.Parallel()

	pub := NewPublisher()
	id1, err := pub.Publish(context.Background(), advisory.Event{RunID: "a"})
	require.NoError(t, err)
	assert.Equal(t, "memory-1", id1)
	id2, err := pub.Publish(context.Background(), advisory.Event{RunID: "b"})
	require.NoError(t, err)
	assert.Equal(t, "memory-2", id2)

	events := pub.Events()
	require.Len(t, events, 2)
	events[0].RunID = "modified"
	assert.Equal(t, "a", pub.Events()[0].RunID)

	pub.FailWith(errors.New("boom"))
	_, err = pub.Publish(context.Background(), advisory.Event{})
	require.Error(t, err)
}
