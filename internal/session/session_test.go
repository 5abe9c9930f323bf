package session

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/modelrouter/internal/domain"
)

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

func TestAddMessagePreservesOrder(t *testing.T) {
	s := NewRegistry().Create()
	s.AddMessage(domain.RoleUser, "first", nil)
	s.AddMessage(domain.RoleAssistant, "second", nil)

	assert.Equal(t, []domain.Turn{
		{Role: domain.RoleUser, Content: "first"},
		{Role: domain.RoleAssistant, Content: "second"},
	}, s.ConversationHistory(0))
}

func TestConversationHistoryLimit(t *testing.T) {
	s := NewRegistry().Create()
	for i := 0; i < 7; i++ {
		s.AddMessage(domain.RoleUser, fmt.Sprintf("m%d", i), nil)
	}

	last := s.ConversationHistory(3)
	require.Len(t, last, 3)
	assert.Equal(t, "m4", last[0].Content)
	assert.Equal(t, "m6", last[2].Content)

	assert.Len(t, s.ConversationHistory(50), 7)
	assert.Equal(t, 7, s.MessageCount())
}

func TestAddMessageWithHistory(t *testing.T) {
	s := NewRegistry().Create()

	_, prior := s.AddMessageWithHistory(domain.RoleUser, "m0", 5)
	assert.Empty(t, prior)

	for i := 1; i < 7; i++ {
		s.AddMessage(domain.RoleUser, fmt.Sprintf("m%d", i), nil)
	}

	msg, prior := s.AddMessageWithHistory(domain.RoleUser, "m7", 5)
	assert.Equal(t, "m7", msg.Content)
	require.Len(t, prior, 4)
	assert.Equal(t, "m3", prior[0].Content)
	assert.Equal(t, "m6", prior[3].Content)
	assert.Equal(t, 8, s.MessageCount())

	_, prior = s.AddMessageWithHistory(domain.RoleUser, "m8", 1)
	assert.Empty(t, prior)

	_, prior = s.AddMessageWithHistory(domain.RoleUser, "m9", 0)
	assert.Len(t, prior, 9)
}

func TestConcurrentAddMessageWithHistorySeesEachOther(t *testing.T) {
	s := NewRegistry().Create()
	const n = 50

	var wg sync.WaitGroup
	seen := make(chan int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, prior := s.AddMessageWithHistory(domain.RoleUser, fmt.Sprintf("m%d", i), 0)
			seen <- len(prior)
		}(i)
	}
	wg.Wait()
	close(seen)

	// Each append observes a distinct prefix of the history.
	counts := make(map[int]bool)
	for c := range seen {
		assert.False(t, counts[c], "prior length %d observed twice", c)
		counts[c] = true
	}
	assert.Len(t, counts, n)
}

func TestMetadataIsCopiedOnAppend(t *testing.T) {
	s := NewRegistry().Create()
	meta := domain.RoutingMetadata{RouteCategory: domain.CategoryMath, Confidence: 0.85}
	s.AddMessage(domain.RoleAssistant, "42", &meta)

	meta.Confidence = 0.1
	msgs := s.Messages()
	require.Len(t, msgs, 1)
	require.NotNil(t, msgs[0].Metadata)
	assert.Equal(t, 0.85, msgs[0].Metadata.Confidence)
	assert.NotEmpty(t, msgs[0].MessageID)
}

func TestSetDocument(t *testing.T) {
	s := NewRegistry().Create()
	assert.False(t, s.DocumentUploaded())
	s.SetDocument("report.pdf")
	assert.True(t, s.DocumentUploaded())
	assert.Equal(t, "report.pdf", s.DocumentName())
}

func TestConcurrentAppendsAreSerialized(t *testing.T) {
	s := NewRegistry().Create()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.AddMessage(domain.RoleUser, fmt.Sprintf("m%d", i), nil)
			_ = s.ConversationHistory(5)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, s.MessageCount())
}

func TestRegistryGetOrCreate(t *testing.T) {
	r := NewRegistry()

	s, created := r.GetOrCreate("")
	assert.True(t, created)
	assert.NotEmpty(t, s.ID())

	again, created := r.GetOrCreate(s.ID())
	assert.False(t, created)
	assert.Same(t, s, again)

	fresh, created := r.GetOrCreate("does-not-exist")
	assert.True(t, created)
	assert.NotEqual(t, "does-not-exist", fresh.ID())
	assert.Equal(t, 2, r.Len())
}

func TestRegistryDelete(t *testing.T) {
	r := NewRegistry()
	s := r.Create()
	assert.True(t, r.Delete(s.ID()))
	assert.False(t, r.Delete(s.ID()))
	_, ok := r.Get(s.ID())
	assert.False(t, ok)
}

func TestRegistrySweep(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	r := NewRegistry(WithClock(clock.Now))

	idle := r.Create()
	active := r.Create()

	clock.Advance(23 * time.Hour)
	active.AddMessage(domain.RoleUser, "still here", nil)
	clock.Advance(2 * time.Hour)

	removed := r.Sweep(24 * time.Hour)
	assert.Equal(t, []string{idle.ID()}, removed)
	_, ok := r.Get(active.ID())
	assert.True(t, ok)
	assert.Equal(t, 1, r.Len())
}
