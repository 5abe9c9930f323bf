// Package session holds per-conversation state.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xiaot623/gogo/modelrouter/internal/domain"
)

// Session is one conversation. Its lock is held only while state is read or appended.
type Session struct {
	id        string
	createdAt time.Time
	now       func() time.Time

	mu               sync.Mutex
	messages         []domain.Message
	documentUploaded bool
	documentName     string
	lastActivity     time.Time
}

var _ domain.SessionView = (*Session)(nil)

func newSession(id string, now func() time.Time) *Session {
	t := now()
	return &Session{id: id, createdAt: t, lastActivity: t, now: now}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// CreatedAt returns the creation time.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// AddMessage appends a message and refreshes last activity.
func (s *Session) AddMessage(role domain.Role, content string, metadata *domain.RoutingMetadata) domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(role, content, metadata)
}

// AddMessageWithHistory appends a message and returns the turns that preceded it,
// taken under the same lock. With limit > 0 at most limit-1 prior turns are
// returned, so together with the new message the window holds limit turns.
func (s *Session) AddMessageWithHistory(role domain.Role, content string, limit int) (domain.Message, []domain.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prior := s.messages
	if limit > 0 {
		keep := limit - 1
		if len(prior) > keep {
			prior = prior[len(prior)-keep:]
		}
	}
	turns := toTurns(prior)
	return s.appendLocked(role, content, nil), turns
}

func (s *Session) appendLocked(role domain.Role, content string, metadata *domain.RoutingMetadata) domain.Message {
	msg := domain.Message{
		MessageID: uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: s.now(),
	}
	if metadata != nil {
		meta := *metadata
		msg.Metadata = &meta
	}
	s.messages = append(s.messages, msg)
	s.lastActivity = msg.Timestamp
	return msg
}

// SetDocument marks that a document was uploaded to this session.
func (s *Session) SetDocument(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documentUploaded = true
	s.documentName = name
	s.lastActivity = s.now()
}

// DocumentUploaded implements domain.SessionView.
func (s *Session) DocumentUploaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.documentUploaded
}

// DocumentName implements domain.SessionView.
func (s *Session) DocumentName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.documentName
}

// ConversationHistory implements domain.SessionView.
func (s *Session) ConversationHistory(limit int) []domain.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.messages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return toTurns(msgs)
}

func toTurns(msgs []domain.Message) []domain.Turn {
	turns := make([]domain.Turn, len(msgs))
	for i, m := range msgs {
		turns[i] = domain.Turn{Role: m.Role, Content: m.Content}
	}
	return turns
}

// Messages returns a copy of every message.
func (s *Session) Messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// MessageCount returns the number of messages.
func (s *Session) MessageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// LastActivity returns the time of the last mutation.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}
