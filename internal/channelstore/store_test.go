package channelstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPublishAndRead(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	id, err := s.PublishMessage("#alpha", "hello", MessageHeader{Host: "h", From: "u"})
	require.NoError(t, err)

	_, err = ParseMessageID(id)
	require.NoError(t, err, "id must be an ISO-8601 timestamp")

	msgs, err := s.ReadChannel("#alpha", ReadOptions{})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, "hello", msgs[0].Content)
	require.Equal(t, "u", msgs[0].Meta.From)
	require.Empty(t, msgs[0].Replies)
}

func TestReplyOrderingAscending(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	threadID, err := s.PublishMessage("#alpha", "root", MessageHeader{Host: "h"})
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	r1, err := s.ReplyToMessage("#alpha", threadID, "first", MessageHeader{Host: "h"})
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	r2, err := s.ReplyToMessage("#alpha", threadID, "second", MessageHeader{Host: "h"})
	require.NoError(t, err)

	msgs, err := s.ReadChannel("#alpha", ReadOptions{})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Len(t, msgs[0].Replies, 2)
	require.Equal(t, r1, msgs[0].Replies[0].ID)
	require.Equal(t, r2, msgs[0].Replies[1].ID)
}

func TestPendingMessagesAfterMarkProcessed(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = s.PublishMessage("#alpha", "one", MessageHeader{Host: "h"})
	require.NoError(t, err)

	require.NoError(t, s.MarkChannelProcessed("#alpha", "tester"))

	time.Sleep(10 * time.Millisecond)
	_, err = s.PublishMessage("#alpha", "two", MessageHeader{Host: "h"})
	require.NoError(t, err)

	pending, err := s.GetPendingMessages("#alpha")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "two", pending[0].Content)
}

func TestMessagesDescendingOrder(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = s.PublishMessage("#alpha", "first", MessageHeader{Host: "h"})
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)
	_, err = s.PublishMessage("#alpha", "second", MessageHeader{Host: "h"})
	require.NoError(t, err)

	msgs, err := s.ReadChannel("#alpha", ReadOptions{})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, "second", msgs[0].Content)
	require.Equal(t, "first", msgs[1].Content)
}
