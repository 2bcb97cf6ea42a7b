// Package storetest holds the behaviour every store.Store backend must share.
package storetest

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/digital-twin/backend/internal/model/chat"
	"github.com/zhouzirui/digital-twin/backend/internal/store"
)

// Run exercises a fresh store returned by newStore for every subtest.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("LoadUnknownSessionIsEmpty", func(t *testing.T) {
		s := newStore(t)
		got, err := s.Load(context.Background(), "missing")
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("SaveThenLoadReturnsSameSequence", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		want := []chat.Message{
			chat.UserMessage("Hello"),
			chat.AssistantMessage("Hi, I'm Roger. Ça va? 👋"),
		}
		require.NoError(t, s.Save(ctx, "abc", want))

		got, err := s.Load(ctx, "abc")
		require.NoError(t, err)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("loaded messages mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("SaveOverwritesWholeSequence", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Save(ctx, "abc", []chat.Message{chat.UserMessage("a"), chat.AssistantMessage("b")}))
		require.NoError(t, s.Save(ctx, "abc", []chat.Message{chat.UserMessage("c")}))

		got, err := s.Load(ctx, "abc")
		require.NoError(t, err)
		assert.Equal(t, []chat.Message{chat.UserMessage("c")}, got)
	})

	t.Run("LoadSaveRoundTripIsStable", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Save(ctx, "abc", []chat.Message{chat.UserMessage("First"), chat.AssistantMessage("R1")}))

		first, err := s.Load(ctx, "abc")
		require.NoError(t, err)
		require.NoError(t, s.Save(ctx, "abc", first))

		second, err := s.Load(ctx, "abc")
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("SessionsAreIndependent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Save(ctx, "one", []chat.Message{chat.UserMessage("1")}))
		require.NoError(t, s.Save(ctx, "two", []chat.Message{chat.UserMessage("2"), chat.AssistantMessage("2b")}))

		one, err := s.Load(ctx, "one")
		require.NoError(t, err)
		assert.Len(t, one, 1)
	})

	t.Run("ListEmptyStore", func(t *testing.T) {
		s := newStore(t)
		got, err := s.List(context.Background())
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("ListMatchesLoad", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Save(ctx, "b-session", []chat.Message{chat.UserMessage("Hello"), chat.AssistantMessage("Hi there")}))
		require.NoError(t, s.Save(ctx, "a-session", []chat.Message{}))

		summaries, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, summaries, 2)

		assert.Equal(t, "a-session", summaries[0].SessionID)
		assert.Equal(t, 0, summaries[0].MessageCount)
		assert.Nil(t, summaries[0].LastMessage)

		assert.Equal(t, "b-session", summaries[1].SessionID)
		require.NotNil(t, summaries[1].LastMessage)
		assert.Equal(t, "Hi there", *summaries[1].LastMessage)

		for _, summary := range summaries {
			messages, err := s.Load(ctx, summary.SessionID)
			require.NoError(t, err)
			assert.Equal(t, len(messages), summary.MessageCount)
		}
	})

	t.Run("OpaqueSessionIDs", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		id := "../../etc/passwd?x=1 %2F"
		require.NoError(t, s.Save(ctx, id, []chat.Message{chat.UserMessage("hi")}))

		got, err := s.Load(ctx, id)
		require.NoError(t, err)
		assert.Len(t, got, 1)

		summaries, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, summaries, 1)
		assert.Equal(t, id, summaries[0].SessionID)
	})

	t.Run("NonASCIISessionIDs", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		ids := []string{
			strings.Repeat("é", 45),
			strings.Repeat("会话", 15),
			"привет мир",
		}
		for _, id := range ids {
			require.NoError(t, s.Save(ctx, id, []chat.Message{chat.UserMessage(id)}))

			got, err := s.Load(ctx, id)
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, id, got[0].Content)
		}

		summaries, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, summaries, len(ids))
		listed := make([]string, 0, len(summaries))
		for _, sum := range summaries {
			listed = append(listed, sum.SessionID)
		}
		assert.ElementsMatch(t, ids, listed)
	})
}
