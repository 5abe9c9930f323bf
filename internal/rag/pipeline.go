// Package rag answers questions about documents uploaded to a session.
package rag

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xiaot623/gogo/modelrouter/internal/adapter/llm"
	"github.com/xiaot623/gogo/modelrouter/internal/domain"
	"github.com/xiaot623/gogo/modelrouter/internal/repository"
)

// NoContextAnswer is returned when a session has nothing to retrieve from.
const NoContextAnswer = "I don't have any document context to answer this question. Please upload a PDF document first."

const answerPrompt = `You are a helpful assistant answering questions based on provided document context.

CONTEXT FROM DOCUMENT:
%s

USER QUESTION:
%s

INSTRUCTIONS:
- Answer the question using ONLY the information from the context above
- If the context doesn't contain enough information to fully answer, say so
- Be specific and cite relevant parts of the context
- Do not make up or infer information not present in the context

ANSWER:`

// Result is the outcome of a document query.
type Result struct {
	Answer      string   `json:"answer"`
	Contexts    []string `json:"contexts"`
	NumContexts int      `json:"num_contexts"`
}

// Options configure chunking, retrieval and upload limits.
type Options struct {
	ChunkSize    int
	ChunkOverlap int
	TopK         int
	MaxBytes     int64
}

// DefaultOptions mirror the configuration defaults.
func DefaultOptions() Options {
	return Options{ChunkSize: 1000, ChunkOverlap: 200, TopK: 3, MaxBytes: 10 * 1024 * 1024}
}

// Pipeline stores and queries the documents of one session.
type Pipeline struct {
	sessionID string
	store     repository.Store
	backend   llm.Completer
	splitter  *Splitter
	opts      Options
	logger    *zap.Logger
	now       func() time.Time
}

// NewPipeline creates a pipeline bound to a session.
func NewPipeline(sessionID string, store repository.Store, backend llm.Completer, opts Options, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultOptions().TopK
	}
	return &Pipeline{
		sessionID: sessionID,
		store:     store,
		backend:   backend,
		splitter:  NewSplitter(opts.ChunkSize, opts.ChunkOverlap),
		opts:      opts,
		logger:    logger.With(zap.String("session_id", sessionID)),
		now:       time.Now,
	}
}

// SessionID returns the owning session.
func (p *Pipeline) SessionID() string { return p.sessionID }

// StoreDocument extracts, chunks and persists an uploaded document.
func (p *Pipeline) StoreDocument(ctx context.Context, name string, data []byte) (*domain.Document, error) {
	if p.opts.MaxBytes > 0 && int64(len(data)) > p.opts.MaxBytes {
		return nil, fmt.Errorf("%s is %d bytes: %w", name, len(data), domain.ErrDocumentTooLarge)
	}
	text, err := ExtractText(name, data)
	if err != nil {
		return nil, err
	}
	pieces := p.splitter.Split(text)
	if len(pieces) == 0 {
		return nil, domain.ErrEmptyDocument
	}

	doc := &domain.Document{
		DocumentID: uuid.New().String(),
		SessionID:  p.sessionID,
		Name:       name,
		SizeBytes:  int64(len(data)),
		CreatedAt:  p.now(),
	}
	chunks := make([]domain.Chunk, len(pieces))
	for i, c := range pieces {
		chunks[i] = domain.Chunk{
			ChunkID:    uuid.New().String(),
			DocumentID: doc.DocumentID,
			SessionID:  p.sessionID,
			Seq:        i,
			Content:    c,
		}
	}
	if err := p.store.SaveDocument(ctx, doc, chunks); err != nil {
		return nil, fmt.Errorf("store document: %w", err)
	}

	p.logger.Info("document stored",
		zap.String("document", name),
		zap.Int("chunks", doc.ChunkCount),
		zap.Int64("bytes", doc.SizeBytes))
	return doc, nil
}

// Retrieve returns up to TopK chunk texts relevant to query.
func (p *Pipeline) Retrieve(ctx context.Context, query string) ([]string, error) {
	chunks, err := p.store.ListChunks(ctx, p.sessionID)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	best := Rank(query, chunks, p.opts.TopK)
	contexts := make([]string, len(best))
	for i, c := range best {
		contexts[i] = c.Content
	}
	return contexts, nil
}

// Answer asks the document backend to answer from the given contexts only.
func (p *Pipeline) Answer(ctx context.Context, query string, contexts []string) (string, error) {
	if len(contexts) == 0 {
		return NoContextAnswer, nil
	}
	res, err := p.backend.Complete(ctx, []llm.Message{llm.User(BuildPrompt(query, contexts))})
	if err != nil {
		return "", fmt.Errorf("document backend: %w", err)
	}
	return res.Content, nil
}

// Query retrieves context for query and generates an answer from it.
func (p *Pipeline) Query(ctx context.Context, query string) (*Result, error) {
	contexts, err := p.Retrieve(ctx, query)
	if err != nil {
		return nil, err
	}
	answer, err := p.Answer(ctx, query, contexts)
	if err != nil {
		return nil, err
	}
	return &Result{Answer: answer, Contexts: contexts, NumContexts: len(contexts)}, nil
}

// BuildPrompt renders the numbered contexts and the question.
func BuildPrompt(query string, contexts []string) string {
	parts := make([]string, len(contexts))
	for i, c := range contexts {
		parts[i] = fmt.Sprintf("Context %d:\n%s", i+1, c)
	}
	return fmt.Sprintf(answerPrompt, strings.Join(parts, "\n\n"), query)
}

// Manager owns one pipeline per session.
type Manager struct {
	mu        sync.Mutex
	pipelines map[string]*Pipeline
	store     repository.Store
	backend   llm.Completer
	opts      Options
	logger    *zap.Logger
}

// NewManager creates a manager whose pipelines share store and backend.
func NewManager(store repository.Store, backend llm.Completer, opts Options, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		pipelines: make(map[string]*Pipeline),
		store:     store,
		backend:   backend,
		opts:      opts,
		logger:    logger,
	}
}

// Get returns the session's pipeline, creating it on first use.
func (m *Manager) Get(sessionID string) *Pipeline {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pipelines[sessionID]
	if !ok {
		p = NewPipeline(sessionID, m.store, m.backend, m.opts, m.logger)
		m.pipelines[sessionID] = p
	}
	return p
}

// Remove drops the session's pipeline and its stored documents.
// It returns the number of documents deleted.
func (m *Manager) Remove(ctx context.Context, sessionID string) (int, error) {
	m.mu.Lock()
	delete(m.pipelines, sessionID)
	m.mu.Unlock()

	n, err := m.store.DeleteSessionDocuments(ctx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("delete documents for %s: %w", sessionID, err)
	}
	return n, nil
}

// Len returns the number of live pipelines.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pipelines)
}
