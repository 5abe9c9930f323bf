package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/xiaot623/gogo/modelrouter/internal/adapter/llm"
	"github.com/xiaot623/gogo/modelrouter/internal/config"
	"github.com/xiaot623/gogo/modelrouter/internal/domain"
	"github.com/xiaot623/gogo/modelrouter/internal/policy"
	"github.com/xiaot623/gogo/modelrouter/internal/repository"
	"github.com/xiaot623/gogo/modelrouter/internal/session"
	"github.com/xiaot623/gogo/modelrouter/internal/tools"
)

func TestMain(m *testing.M) {
	// The genai client's auth transport pulls in opencensus, whose view worker starts at init.
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

const generalJSON = `{"category": "general", "confidence": 0.9, "reasoning": "small talk"}`

type harness struct {
	svc        *Service
	store      *repository.SQLiteStore
	general    *llm.MockClient
	code       *llm.MockClient
	math       *llm.MockClient
	document   *llm.MockClient
	classifier *llm.MockClient
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	ctx := context.Background()

	store, err := repository.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	engine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	require.NoError(t, err)
	toolRegistry := tools.NewRegistry(engine, nil)
	tools.RegisterBuiltins(toolRegistry)

	h := &harness{
		store:      store,
		general:    llm.NewMockClient(),
		code:       llm.NewMockClient(),
		math:       llm.NewMockClient(),
		document:   llm.NewMockClient(),
		classifier: llm.NewMockClient(),
	}
	h.classifier.Func = func(ctx context.Context, messages []llm.Message) (*llm.Completion, error) {
		return &llm.Completion{Content: generalJSON}, nil
	}
	backends := llm.NewBackends(map[domain.BackendType]llm.Completer{
		domain.BackendGeneral:  h.general,
		domain.BackendCode:     h.code,
		domain.BackendMath:     h.math,
		domain.BackendDocument: h.document,
	}, h.classifier)

	h.svc = New(config.Default(), store, backends, toolRegistry, nil, opts...)
	return h
}

func (h *harness) events(t *testing.T, sessionID string, eventType domain.EventType) []domain.Event {
	t.Helper()
	events, err := h.svc.Events(context.Background(), sessionID, 0, []string{string(eventType)}, 0)
	require.NoError(t, err)
	return events
}

func TestChatCodeQueryUsesRuleTier(t *testing.T) {
	h := newHarness(t)
	h.code.Enqueue(llm.MockResponse{Content: "Looks fine."})

	resp, err := h.svc.Chat(context.Background(), domain.ChatRequest{Message: "def add(a, b): return a + b"})
	require.NoError(t, err)

	assert.Equal(t, "Looks fine.", resp.Response)
	assert.NotEmpty(t, resp.SessionID)
	meta := resp.RoutingMetadata
	assert.Equal(t, domain.CategoryCoding, meta.RouteCategory)
	assert.Equal(t, domain.BackendCode, meta.ModelUsed)
	assert.Equal(t, domain.MethodRuleBased, meta.RoutingMethod)
	assert.Equal(t, 0.9, meta.Confidence)
	assert.Zero(t, h.classifier.CallCount())
	assert.Zero(t, h.general.CallCount())

	events := h.events(t, resp.SessionID, domain.EventTypeRouteDecided)
	require.Len(t, events, 1)
	var payload domain.RouteDecidedPayload
	require.NoError(t, json.Unmarshal(events[0].Payload, &payload))
	assert.Equal(t, "def add(a, b): return a + b", payload.Query)
	assert.Equal(t, domain.CategoryCoding, payload.Metadata.RouteCategory)
	assert.Empty(t, payload.DispatchFailed)

	assert.Equal(t, 1.0, testutil.ToFloat64(h.svc.metrics.routeDecisions.WithLabelValues("coding", "rule-based")))
}

func TestChatMathUsesCalculator(t *testing.T) {
	h := newHarness(t)
	h.math.Enqueue(
		llm.MockResponse{Content: `calculator("125000 + 12000 - 11460")`},
		llm.MockResponse{Content: "The total is 125,540."},
	)

	resp, err := h.svc.Chat(context.Background(), domain.ChatRequest{Message: "What is 125000 + 12000 - 11460?"})
	require.NoError(t, err)

	assert.Equal(t, "The total is 125,540.", resp.Response)
	meta := resp.RoutingMetadata
	assert.Equal(t, domain.CategoryMath, meta.RouteCategory)
	assert.True(t, meta.CalculatorUsed)
	require.NotNil(t, meta.Calculation)
	assert.Equal(t, "125000 + 12000 - 11460", *meta.Calculation)
	require.NotNil(t, meta.CalculationResult)
	assert.Equal(t, 125540.0, *meta.CalculationResult)

	calls := h.math.Calls()
	require.Len(t, calls, 2)
	assert.Contains(t, calls[1][0].Content, "125000 + 12000 - 11460 = 125540")
	assert.Equal(t, 1.0, testutil.ToFloat64(h.svc.metrics.calculatorCalls.WithLabelValues("used")))
}

func TestChatMathBlockedExpressionDegrades(t *testing.T) {
	h := newHarness(t)
	long := strings.Repeat("1+", 120) + "1"
	h.math.Enqueue(llm.MockResponse{Content: `calculator("` + long + `")`})

	resp, err := h.svc.Chat(context.Background(), domain.ChatRequest{Message: "Add 1 to itself 121 times"})
	require.NoError(t, err)

	assert.Contains(t, resp.Response, "I attempted a calculation but encountered an error")
	assert.Contains(t, resp.Response, "expression too long")
	assert.False(t, resp.RoutingMetadata.CalculatorUsed)
	assert.Nil(t, resp.RoutingMetadata.Calculation)
	assert.Equal(t, 1, h.math.CallCount())
}

func TestChatDocumentWithoutUpload(t *testing.T) {
	h := newHarness(t)
	h.classifier.Enqueue(llm.MockResponse{Content: `{"category": "document", "confidence": 0.95, "reasoning": "asks about a report"}`})

	resp, err := h.svc.Chat(context.Background(), domain.ChatRequest{Message: "Tell me about the quarterly report"})
	require.NoError(t, err)

	assert.Equal(t, NoDocumentNotice, resp.Response)
	assert.Equal(t, domain.CategoryDocument, resp.RoutingMetadata.RouteCategory)
	assert.Equal(t, domain.MethodModelBased, resp.RoutingMetadata.RoutingMethod)
	assert.Nil(t, resp.RoutingMetadata.ContextsUsed)
	assert.Zero(t, h.document.CallCount())
}

func TestUploadThenDocumentQuestion(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	up, err := h.svc.Upload(ctx, "", "report.txt", []byte("Quarterly revenue grew strongly in the north region."))
	require.NoError(t, err)
	assert.Equal(t, "PDF uploaded and processed successfully", up.Message)
	assert.Equal(t, "report.txt", up.Filename)
	assert.Equal(t, 1, up.ChunksStored)
	require.Len(t, h.events(t, up.SessionID, domain.EventTypeDocumentStored), 1)

	h.document.Enqueue(llm.MockResponse{Content: "Revenue grew in the north."})
	resp, err := h.svc.Chat(ctx, domain.ChatRequest{Message: "What does the document say about revenue?", SessionID: up.SessionID})
	require.NoError(t, err)

	assert.Equal(t, up.SessionID, resp.SessionID)
	assert.Equal(t, "Revenue grew in the north.", resp.Response)
	assert.Equal(t, domain.CategoryDocument, resp.RoutingMetadata.RouteCategory)
	require.NotNil(t, resp.RoutingMetadata.ContextsUsed)
	assert.Equal(t, 1, *resp.RoutingMetadata.ContextsUsed)
	assert.Contains(t, h.document.Calls()[0][0].Content, "Quarterly revenue grew strongly")

	hist, err := h.svc.History(up.SessionID)
	require.NoError(t, err)
	assert.True(t, hist.DocumentUploaded)
	assert.Equal(t, "report.txt", hist.DocumentName)
	assert.Equal(t, 2, hist.MessageCount)
}

func TestUploadRejections(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, err := h.svc.Upload(ctx, "", "tool.exe", []byte("MZ"))
	assert.ErrorIs(t, err, domain.ErrUnsupportedDocument)

	_, err = h.svc.Upload(ctx, "", "big.txt", make([]byte, config.Default().MaxUploadBytes()+1))
	assert.ErrorIs(t, err, domain.ErrDocumentTooLarge)

	assert.Zero(t, h.svc.Sessions().Len())
}

func TestChatHistoryWindow(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	first, err := h.svc.Chat(ctx, domain.ChatRequest{Message: "greeting alpha"})
	require.NoError(t, err)
	require.Len(t, h.general.Calls()[0], 1, "first turn has no prior history")

	for _, msg := range []string{"greeting bravo", "greeting charlie", "greeting delta", "greeting echo"} {
		_, err := h.svc.Chat(ctx, domain.ChatRequest{Message: msg, SessionID: first.SessionID})
		require.NoError(t, err)
	}

	calls := h.general.Calls()
	require.Len(t, calls, 5)
	last := calls[4]
	require.Len(t, last, 5)
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "greeting charlie"}, last[0])
	assert.Equal(t, llm.RoleAssistant, last[1].Role)
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "greeting echo"}, last[4])

	hist, err := h.svc.History(first.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 10, hist.MessageCount)
	require.NotNil(t, h.svc.Sessions())
	sess, ok := h.svc.Sessions().Get(first.SessionID)
	require.True(t, ok)
	msgs := sess.Messages()
	require.NotNil(t, msgs[1].Metadata)
	assert.Equal(t, domain.CategoryGeneral, msgs[1].Metadata.RouteCategory)
	assert.Nil(t, msgs[0].Metadata)
}

func TestConcurrentChatsKeepTheirOwnHistory(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	sess := h.svc.Sessions().Create()

	entered := make(chan struct{})
	release := make(chan struct{})
	var releaseOnce sync.Once
	releaseAlpha := func() { releaseOnce.Do(func() { close(release) }) }
	t.Cleanup(releaseAlpha)

	h.classifier.Func = func(ctx context.Context, messages []llm.Message) (*llm.Completion, error) {
		if strings.Contains(messages[len(messages)-1].Content, "hello alpha") {
			close(entered)
			<-release
		}
		return &llm.Completion{Content: generalJSON}, nil
	}

	alphaDone := make(chan error, 1)
	go func() {
		_, err := h.svc.Chat(ctx, domain.ChatRequest{Message: "hello alpha", SessionID: sess.ID()})
		alphaDone <- err
	}()

	// alpha is recorded and parked in classification while bravo runs to completion.
	<-entered
	_, err := h.svc.Chat(ctx, domain.ChatRequest{Message: "hello bravo", SessionID: sess.ID()})
	require.NoError(t, err)
	releaseAlpha()
	require.NoError(t, <-alphaDone)

	var alphaCall, bravoCall []llm.Message
	for _, call := range h.general.Calls() {
		switch call[len(call)-1].Content {
		case "hello alpha":
			alphaCall = call
		case "hello bravo":
			bravoCall = call
		}
	}
	assert.Equal(t, []llm.Message{llm.User("hello alpha")}, alphaCall)
	assert.Equal(t, []llm.Message{llm.User("hello alpha"), llm.User("hello bravo")}, bravoCall)
	assert.Equal(t, 4, sess.MessageCount())
}

func TestChatBackendFailure(t *testing.T) {
	h := newHarness(t)
	sess := h.svc.Sessions().Create()
	h.general.Enqueue(llm.MockResponse{Err: errors.New("upstream unavailable")})

	_, err := h.svc.Chat(context.Background(), domain.ChatRequest{Message: "greeting alpha", SessionID: sess.ID()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream unavailable")

	events := h.events(t, sess.ID(), domain.EventTypeRouteDecided)
	require.Len(t, events, 1)
	var payload domain.RouteDecidedPayload
	require.NoError(t, json.Unmarshal(events[0].Payload, &payload))
	assert.Contains(t, payload.DispatchFailed, "upstream unavailable")
	assert.Equal(t, 1.0, testutil.ToFloat64(h.svc.metrics.dispatchErrors.WithLabelValues("general")))
}

func TestChatUserMessageKeptOnFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first, err := h.svc.Chat(ctx, domain.ChatRequest{Message: "greeting alpha"})
	require.NoError(t, err)

	h.general.Enqueue(llm.MockResponse{Err: errors.New("boom")})
	_, err = h.svc.Chat(ctx, domain.ChatRequest{Message: "greeting bravo", SessionID: first.SessionID})
	require.Error(t, err)

	hist, err := h.svc.History(first.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 3, hist.MessageCount)
	assert.Equal(t, domain.RoleUser, hist.History[2].Role)
}

func TestChatValidation(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Chat(context.Background(), domain.ChatRequest{Message: "   "})
	assert.ErrorIs(t, err, domain.ErrEmptyMessage)

	resp, err := h.svc.Chat(context.Background(), domain.ChatRequest{Message: "greeting alpha", SessionID: "missing"})
	require.NoError(t, err)
	assert.NotEqual(t, "missing", resp.SessionID)
}

func TestRouteDoesNotCreateSessions(t *testing.T) {
	h := newHarness(t)

	resp, err := h.svc.Route(context.Background(), domain.RouteRequest{Query: "import numpy as np", SessionID: "unknown"})
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryCoding, resp.Decision.Category)
	assert.Equal(t, domain.BackendCode, resp.RoutingMetadata.ModelUsed)
	assert.Zero(t, h.svc.Sessions().Len())
	assert.Zero(t, h.code.CallCount())
}

func TestDeleteSession(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	assert.ErrorIs(t, h.svc.DeleteSession(ctx, "missing"), domain.ErrSessionNotFound)

	up, err := h.svc.Upload(ctx, "", "notes.md", []byte("# Notes\nsome notes"))
	require.NoError(t, err)
	require.NoError(t, h.svc.DeleteSession(ctx, up.SessionID))

	_, err = h.svc.History(up.SessionID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	chunks, err := h.store.ListChunks(ctx, up.SessionID)
	require.NoError(t, err)
	assert.Empty(t, chunks)
	assert.Len(t, h.events(t, up.SessionID, domain.EventTypeSessionDeleted), 1)
}

func TestInvokeTool(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	resp, err := h.svc.InvokeTool(ctx, tools.CalculatorTool, domain.ToolInvokeRequest{SessionID: "s1", Args: json.RawMessage(`{"expression":"10 ÷ 2 × 3"}`)})
	require.NoError(t, err)
	assert.Equal(t, "succeeded", resp.Status)
	var out tools.CalculatorResult
	require.NoError(t, json.Unmarshal(resp.Result, &out))
	assert.Equal(t, 15.0, out.Result)

	resp, err = h.svc.InvokeTool(ctx, tools.CalculatorTool, domain.ToolInvokeRequest{SessionID: "s1", Args: json.RawMessage(`{"expression":"1/0"}`)})
	require.NoError(t, err)
	assert.Equal(t, "failed", resp.Status)
	assert.Equal(t, "evaluation_error", resp.Error.Code)

	args, _ := json.Marshal(tools.CalculatorArgs{Expression: strings.Repeat("9*", 150) + "9"})
	resp, err = h.svc.InvokeTool(ctx, tools.CalculatorTool, domain.ToolInvokeRequest{SessionID: "s1", Args: args})
	require.NoError(t, err)
	assert.Equal(t, "blocked", resp.Status)
	assert.Equal(t, "policy_blocked", resp.Error.Code)

	_, err = h.svc.InvokeTool(ctx, "shell.exec", domain.ToolInvokeRequest{})
	assert.ErrorIs(t, err, tools.ErrToolNotFound)

	assert.Len(t, h.events(t, "s1", domain.EventTypeToolInvoked), 3)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func TestSweepSessions(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	h := newHarness(t, WithSessions(session.NewRegistry(session.WithClock(clock.Now))))

	up, err := h.svc.Upload(ctx, "", "notes.txt", []byte("idle notes"))
	require.NoError(t, err)
	clock.Advance(23 * time.Hour)
	fresh, err := h.svc.Chat(ctx, domain.ChatRequest{Message: "greeting alpha"})
	require.NoError(t, err)
	clock.Advance(2 * time.Hour)

	h.svc.sweepSessions(ctx)

	_, ok := h.svc.Sessions().Get(up.SessionID)
	assert.False(t, ok)
	_, ok = h.svc.Sessions().Get(fresh.SessionID)
	assert.True(t, ok)

	chunks, err := h.store.ListChunks(ctx, up.SessionID)
	require.NoError(t, err)
	assert.Empty(t, chunks)
	assert.Len(t, h.events(t, up.SessionID, domain.EventTypeSessionsSwept), 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.svc.metrics.sessionsSwept))
}

func TestRunSessionSweeperStops(t *testing.T) {
	h := newHarness(t)
	h.svc.config.SweepInterval = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.svc.RunSessionSweeper(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
