// Package chat implements the conversation lifecycle for one (user, agent)
// pair: session issuance, history persistence, webhook dispatch with
// bounded retry, response normalization and interaction logging.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prosomo/agenthub/internal/domain"
	"github.com/prosomo/agenthub/internal/metrics"
	"github.com/prosomo/agenthub/internal/webhook"
	"github.com/rs/zerolog"
)

// Sender abstracts the webhook client
type Sender interface {
	Send(ctx context.Context, webhookURL string, payload webhook.Payload) ([]byte, error)
}

// Outcome classifies a completed SendMessage call
type Outcome int

const (
	// OutcomeDelivered means the agent answered and its message was appended
	OutcomeDelivered Outcome = iota
	// OutcomeFailed means all attempts failed and an error message was appended
	OutcomeFailed
	// OutcomeStale means the session was reset or superseded mid-send and
	// the pending result was discarded without touching the new session
	OutcomeStale
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDelivered:
		return "delivered"
	case OutcomeFailed:
		return "failed"
	case OutcomeStale:
		return "stale"
	default:
		return "unknown"
	}
}

// Rejections returned before any message is appended
var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrSendInFlight = errors.New("a send is already in flight for this session")
)

const (
	maxRetries     = 2
	defaultBackoff = 2 * time.Second

	retryNotice  = "Tentative de reconnexion..."
	apologyText  = "Désolé, je rencontre des difficultés techniques. Veuillez réessayer."
	welcomeEN    = "Welcome to %s! How can I help you today?"
	welcomeFR    = "Bienvenue dans %s! Comment puis-je vous aider aujourd'hui?"
)

// Protocol drives conversations. Sends are single-flight per session;
// different sessions proceed concurrently.
type Protocol struct {
	store   domain.ConversationStore
	sink    domain.InteractionSink
	sender  Sender
	logger  zerolog.Logger
	chatMet *metrics.Chat
	backoff time.Duration

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// Option configures a Protocol
type Option func(*Protocol)

// WithBackoff overrides the fixed retry interval
func WithBackoff(d time.Duration) Option {
	return func(p *Protocol) { p.backoff = d }
}

// WithMetrics attaches chat metrics
func WithMetrics(m *metrics.Chat) Option {
	return func(p *Protocol) { p.chatMet = m }
}

// NewProtocol creates a chat protocol
func NewProtocol(store domain.ConversationStore, sink domain.InteractionSink, sender Sender, logger zerolog.Logger, opts ...Option) *Protocol {
	p := &Protocol{
		store:    store,
		sink:     sink,
		sender:   sender,
		logger:   logger.With().Str("component", "chat").Logger(),
		backoff:  defaultBackoff,
		inFlight: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// OpenSession restores the stored conversation for the (user, agent) pair,
// or creates a fresh one seeded with a welcome message from the agent.
func (p *Protocol) OpenSession(ctx context.Context, ident *domain.Identity, agent *domain.Agent) (*domain.Conversation, error) {
	conv, err := p.store.Load(ctx, ident.ID, agent.ID)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	conv = &domain.Conversation{
		SessionID: newSessionID(ident.ID, agent.ID),
		UserID:    ident.ID,
		AgentID:   agent.ID,
		Messages: []domain.Message{
			welcomeMessage(1, agent.Name, ident.Language),
		},
	}
	if err := p.store.Save(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// ResetSession abandons the current session id, clears the history down to
// a fresh welcome message and discards any pending retry state. Sessions of
// other (user, agent) pairs are untouched.
func (p *Protocol) ResetSession(ctx context.Context, ident *domain.Identity, agent *domain.Agent) (*domain.Conversation, error) {
	conv := &domain.Conversation{
		SessionID: newSessionID(ident.ID, agent.ID),
		UserID:    ident.ID,
		AgentID:   agent.ID,
		Messages: []domain.Message{
			welcomeMessage(1, agent.Name, ident.Language),
		},
	}
	if err := p.store.Save(ctx, conv); err != nil {
		return nil, err
	}
	// In-flight sends against the old session id notice the change before
	// appending and drop their result.
	return conv, nil
}

// SendMessage appends the user's message, dispatches it to the agent
// webhook with up to two fixed-interval retries, and appends the outcome.
// Messages are only ever appended, never reordered or removed.
func (p *Protocol) SendMessage(ctx context.Context, ident *domain.Identity, agent *domain.Agent, text string) (*domain.Conversation, Outcome, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, OutcomeFailed, ErrEmptyMessage
	}

	key := flightKey(ident.ID, agent.ID)
	if !p.acquire(key) {
		return nil, OutcomeFailed, ErrSendInFlight
	}
	defer p.release(key)

	conv, err := p.OpenSession(ctx, ident, agent)
	if err != nil {
		return nil, OutcomeFailed, err
	}
	sessionID := conv.SessionID

	conv.Messages = append(conv.Messages, domain.Message{
		ID:        conv.LastMessageID() + 1,
		Text:      text,
		Sender:    domain.SenderUser,
		Timestamp: time.Now(),
	})
	if err := p.store.Save(ctx, conv); err != nil {
		return nil, OutcomeFailed, err
	}
	p.countMessage(domain.SenderUser)
	p.recordInteraction(ident.ID, agent.Name, text, domain.InteractionUserMessage)

	payload := webhook.Payload{
		ChatInput: text,
		SessionID: sessionID,
		UserID:    ident.ID.String(),
		UserName:  ident.FullName,
		Lang:      lang(ident.Language),
	}

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if p.chatMet != nil {
			p.chatMet.WebhookAttempts.WithLabelValues(agent.ID).Inc()
			if attempt > 0 {
				p.chatMet.WebhookRetries.WithLabelValues(agent.ID).Inc()
			}
		}

		body, err := p.sender.Send(ctx, agent.WebhookURL, payload)
		if err == nil {
			return p.deliver(ctx, ident, agent, sessionID, body)
		}

		p.logger.Warn().Err(err).
			Str("agent_id", agent.ID).
			Int("attempt", attempt+1).
			Msg("webhook call failed")

		if attempt == maxRetries {
			break
		}

		conv, stale, err := p.appendIfCurrent(ctx, ident.ID, agent.ID, sessionID, domain.Message{
			Text:      retryNotice,
			Sender:    domain.SenderSystem,
			Timestamp: time.Now(),
		})
		if err != nil {
			return nil, OutcomeFailed, err
		}
		if stale {
			return conv, OutcomeStale, nil
		}
		p.countMessage(domain.SenderSystem)

		select {
		case <-time.After(p.backoff):
		case <-ctx.Done():
			return conv, OutcomeStale, ctx.Err()
		}
	}

	if p.chatMet != nil {
		p.chatMet.WebhookFailures.WithLabelValues(agent.ID).Inc()
	}

	// Retries exhausted: exactly one error message, and the attempt count
	// is implicitly back at zero for the next send.
	conv, stale, err := p.appendIfCurrent(ctx, ident.ID, agent.ID, sessionID, domain.Message{
		Text:      apologyText,
		Sender:    domain.SenderAgent,
		Timestamp: time.Now(),
		IsError:   true,
	})
	if err != nil {
		return nil, OutcomeFailed, err
	}
	if stale {
		return conv, OutcomeStale, nil
	}
	p.countMessage(domain.SenderAgent)
	return conv, OutcomeFailed, nil
}

// deliver normalizes a successful response and appends the agent message
func (p *Protocol) deliver(ctx context.Context, ident *domain.Identity, agent *domain.Agent, sessionID string, body []byte) (*domain.Conversation, Outcome, error) {
	responseText := NormalizeResponse(body)

	conv, stale, err := p.appendIfCurrent(ctx, ident.ID, agent.ID, sessionID, domain.Message{
		Text:      responseText,
		Sender:    domain.SenderAgent,
		Timestamp: time.Now(),
	})
	if err != nil {
		return nil, OutcomeFailed, err
	}
	if stale {
		return conv, OutcomeStale, nil
	}

	p.countMessage(domain.SenderAgent)
	p.recordInteraction(ident.ID, agent.Name, responseText, domain.InteractionAgentResponse)
	return conv, OutcomeDelivered, nil
}

// appendIfCurrent reloads the conversation and appends the message only if
// the session id still matches. A reset or superseded session returns the
// current conversation with stale=true and appends nothing.
func (p *Protocol) appendIfCurrent(ctx context.Context, userID uuid.UUID, agentID, sessionID string, msg domain.Message) (conv *domain.Conversation, stale bool, err error) {
	conv, err = p.store.Load(ctx, userID, agentID)
	if err != nil {
		return nil, false, err
	}
	if conv.SessionID != sessionID {
		return conv, true, nil
	}

	msg.ID = conv.LastMessageID() + 1
	conv.Messages = append(conv.Messages, msg)
	if err := p.store.Save(ctx, conv); err != nil {
		return nil, false, err
	}
	return conv, false, nil
}

// recordInteraction writes an analytics record without ever blocking or
// failing the chat flow.
func (p *Protocol) recordInteraction(userID uuid.UUID, agentName, message, category string) {
	interaction := &domain.Interaction{
		ID:            uuid.New(),
		UserID:        userID,
		AgentName:     agentName,
		Message:       message,
		MessageLength: len(message),
		Category:      category,
		CreatedAt:     time.Now(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.sink.Record(ctx, interaction); err != nil {
			p.logger.Warn().Err(err).Str("category", category).Msg("failed to record interaction")
		}
	}()
}

func (p *Protocol) acquire(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.inFlight[key]; busy {
		return false
	}
	p.inFlight[key] = struct{}{}
	return true
}

func (p *Protocol) release(key string) {
	p.mu.Lock()
	delete(p.inFlight, key)
	p.mu.Unlock()
}

func (p *Protocol) countMessage(sender domain.Sender) {
	if p.chatMet != nil {
		p.chatMet.Messages.WithLabelValues(string(sender)).Inc()
	}
}

func flightKey(userID uuid.UUID, agentID string) string {
	return userID.String() + "|" + agentID
}

// newSessionID issues an opaque session id unique per user, agent and
// epoch. Nanosecond resolution keeps back-to-back resets distinct.
func newSessionID(userID uuid.UUID, agentID string) string {
	return fmt.Sprintf("%s-%s-%d", userID, agentID, time.Now().UnixNano())
}

func welcomeMessage(id int64, agentName, language string) domain.Message {
	format := welcomeFR
	if language == "en" {
		format = welcomeEN
	}
	return domain.Message{
		ID:        id,
		Text:      fmt.Sprintf(format, agentName),
		Sender:    domain.SenderAgent,
		Timestamp: time.Now(),
	}
}

func lang(language string) string {
	if language == "" {
		return domain.DefaultLanguage
	}
	return language
}
