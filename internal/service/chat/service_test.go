package chat_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/digital-twin/backend/internal/model/chat"
	chatservice "github.com/zhouzirui/digital-twin/backend/internal/service/chat"
	"github.com/zhouzirui/digital-twin/backend/internal/service/prompt"
	"github.com/zhouzirui/digital-twin/backend/internal/store"
	"github.com/zhouzirui/digital-twin/backend/internal/store/memory"
)

type generateCall struct {
	SessionID    string
	SystemPrompt string
	History      []chat.Message
	UserMessage  string
}

// scriptedGenerator replies "R1", "R2", ... unless err is set.
type scriptedGenerator struct {
	mu    sync.Mutex
	err   error
	calls []generateCall
}

func (g *scriptedGenerator) GenerateResponse(_ context.Context, sessionID, systemPrompt string, history []chat.Message, userMessage string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, generateCall{sessionID, systemPrompt, append([]chat.Message(nil), history...), userMessage})
	if g.err != nil {
		return "", g.err
	}
	return "R" + string(rune('0'+len(g.calls))), nil
}

type failingStore struct {
	store.Store
	loadErr error
	saveErr error
}

func (f *failingStore) Load(ctx context.Context, id string) ([]chat.Message, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.Store.Load(ctx, id)
}

func (f *failingStore) Save(ctx context.Context, id string, messages []chat.Message) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	return f.Store.Save(ctx, id, messages)
}

func newService(st store.Store, gen chatservice.Generator, opts ...chatservice.Option) *chatservice.Service {
	fixed := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	opts = append([]chatservice.Option{chatservice.WithClock(func() time.Time { return fixed })}, opts...)
	return chatservice.NewService(st, prompt.NewStatic("You are Roger."), gen, opts...)
}

func TestChatGeneratesUniqueSessionIDs(t *testing.T) {
	svc := newService(memory.New(), &scriptedGenerator{})
	ctx := context.Background()

	seen := map[string]bool{}
	for i := 0; i < 5; i++ {
		reply, err := svc.Chat(ctx, chatservice.Request{Message: "Hello"})
		require.NoError(t, err)
		require.NotEmpty(t, reply.SessionID)
		assert.False(t, seen[reply.SessionID], "duplicate session id %s", reply.SessionID)
		seen[reply.SessionID] = true
	}
}

func TestChatUsesCallerSessionIDVerbatim(t *testing.T) {
	st := memory.New()
	svc := newService(st, &scriptedGenerator{})

	reply, err := svc.Chat(context.Background(), chatservice.Request{Message: "Hi", SessionID: "  any token/ok "})
	require.NoError(t, err)
	assert.Equal(t, "  any token/ok ", reply.SessionID)
}

func TestChatTwoTurnsOnSameSession(t *testing.T) {
	st := memory.New()
	gen := &scriptedGenerator{}
	svc := newService(st, gen)
	ctx := context.Background()

	first, err := svc.Chat(ctx, chatservice.Request{Message: "First", SessionID: "abc"})
	require.NoError(t, err)
	assert.Equal(t, "R1", first.Response)

	second, err := svc.Chat(ctx, chatservice.Request{Message: "Second", SessionID: "abc"})
	require.NoError(t, err)
	assert.Equal(t, "R2", second.Response)

	stored, err := st.Load(ctx, "abc")
	require.NoError(t, err)
	want := []chat.Message{
		chat.UserMessage("First"),
		chat.AssistantMessage("R1"),
		chat.UserMessage("Second"),
		chat.AssistantMessage("R2"),
	}
	if diff := cmp.Diff(want, stored); diff != "" {
		t.Fatalf("stored sequence mismatch (-want +got):\n%s", diff)
	}

	require.Len(t, gen.calls, 2)
	assert.Equal(t, "You are Roger.", gen.calls[1].SystemPrompt)
	assert.Equal(t, "Second", gen.calls[1].UserMessage)
	assert.Equal(t, want[:2], gen.calls[1].History)
}

func TestChatGrowsHistoryByTwo(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	require.NoError(t, st.Save(ctx, "abc", []chat.Message{chat.UserMessage("old"), chat.AssistantMessage("older")}))

	svc := newService(st, &scriptedGenerator{})
	_, err := svc.Chat(ctx, chatservice.Request{Message: "new", SessionID: "abc"})
	require.NoError(t, err)

	stored, err := st.Load(ctx, "abc")
	require.NoError(t, err)
	assert.Len(t, stored, 4)
}

func TestChatProviderFailureLeavesStorageUnchanged(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	before := []chat.Message{chat.UserMessage("First"), chat.AssistantMessage("R1")}
	require.NoError(t, st.Save(ctx, "abc", before))

	svc := newService(st, &scriptedGenerator{err: errors.New("network down")})
	_, err := svc.Chat(ctx, chatservice.Request{Message: "Second", SessionID: "abc"})
	require.Error(t, err)
	assert.ErrorIs(t, err, chatservice.ErrProvider)

	after, err := st.Load(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, before, after)

	sessions, err := st.List(ctx)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

func TestChatProviderFailureOnNewSessionPersistsNothing(t *testing.T) {
	st := memory.New()
	svc := newService(st, &scriptedGenerator{err: errors.New("boom")})

	_, err := svc.Chat(context.Background(), chatservice.Request{Message: "Hello"})
	require.Error(t, err)

	sessions, err := st.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestChatStorageErrors(t *testing.T) {
	loadErr := &store.Error{Op: store.OpLoad, SessionID: "abc", Err: errors.New("corrupt")}
	gen := &scriptedGenerator{}
	svc := newService(&failingStore{Store: memory.New(), loadErr: loadErr}, gen)

	_, err := svc.Chat(context.Background(), chatservice.Request{Message: "Hi", SessionID: "abc"})
	var storeErr *store.Error
	require.True(t, errors.As(err, &storeErr))
	assert.Empty(t, gen.calls, "provider must not be called when load fails")

	saveErr := &store.Error{Op: store.OpSave, SessionID: "abc", Err: errors.New("disk full")}
	svc = newService(&failingStore{Store: memory.New(), saveErr: saveErr}, &scriptedGenerator{})
	_, err = svc.Chat(context.Background(), chatservice.Request{Message: "Hi", SessionID: "abc"})
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, store.OpSave, storeErr.Op)
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	gen := &scriptedGenerator{}
	svc := newService(memory.New(), gen)

	for _, msg := range []string{"", "   \n"} {
		_, err := svc.Chat(context.Background(), chatservice.Request{Message: msg})
		assert.ErrorIs(t, err, chatservice.ErrValidation)
	}
	assert.Empty(t, gen.calls)
}

func TestChatWithFixedIDGenerator(t *testing.T) {
	svc := newService(memory.New(), &scriptedGenerator{}, chatservice.WithIDGenerator(func() string { return "fixed-id" }))

	reply, err := svc.Chat(context.Background(), chatservice.Request{Message: "Hello"})
	require.NoError(t, err)
	assert.Equal(t, "fixed-id", reply.SessionID)
}

func TestChatSerializedSessionsKeepEveryTurn(t *testing.T) {
	st := memory.New()
	svc := newService(st, &scriptedGenerator{}, chatservice.WithSessionLocks())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Chat(ctx, chatservice.Request{Message: "hi", SessionID: "shared"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stored, err := st.Load(ctx, "shared")
	require.NoError(t, err)
	assert.Len(t, stored, 16)
}

func TestSessionsCountMatchesTranscript(t *testing.T) {
	st := memory.New()
	svc := newService(st, &scriptedGenerator{})
	ctx := context.Background()

	reply, err := svc.Chat(ctx, chatservice.Request{Message: "Hello"})
	require.NoError(t, err)

	sessions, err := svc.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, reply.SessionID, sessions[0].SessionID)
	assert.Equal(t, 2, sessions[0].MessageCount)

	transcript, err := st.Load(ctx, reply.SessionID)
	require.NoError(t, err)
	assert.Len(t, transcript, sessions[0].MessageCount)
}
