// Package intake runs the multi-step /add conversation that collects a new
// catalog item field by field. One session per user; starting a new one
// replaces any conversation left dangling.
package intake

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"dailydsa/internal/catalog"
	"dailydsa/internal/eventbus"
	logx "dailydsa/pkg/logx"
)

type step int

const (
	stepTitle step = iota
	stepDifficulty
	stepTopic
	stepURL
)

const (
	promptTitle      = "Let's add a new problem. What's its title?"
	promptDifficulty = "Got it. Difficulty? (easy / medium / hard)"
	promptTopic      = "And the topic? (e.g. arrays, graphs, dp)"
	promptURL        = "Last one: the problem URL."
	textCancelled    = "Okay, nothing was added."
	textStoreFailed  = "Couldn't save the problem, sorry. Nothing was added, try again later."
)

type session struct {
	step step
	item catalog.Item
}

// Manager tracks in-flight add conversations keyed by user id.
type Manager struct {
	catalog catalog.Gateway
	bus     eventbus.Bus
	log     logx.Logger

	// nowUnix is swappable for tests.
	nowUnix func() int64

	mu       sync.Mutex
	sessions map[int64]*session
}

func New(g catalog.Gateway, bus eventbus.Bus, log logx.Logger) *Manager {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Manager{
		catalog:  g,
		bus:      bus,
		log:      log,
		nowUnix:  func() int64 { return time.Now().Unix() },
		sessions: map[int64]*session{},
	}
}

// Begin starts (or restarts) a conversation and returns the first prompt.
func (m *Manager) Begin(userID int64) string {
	m.mu.Lock()
	m.sessions[userID] = &session{step: stepTitle}
	m.mu.Unlock()
	m.log.Debug("intake started", logx.Int64("user_id", userID))
	return promptTitle
}

// Active reports whether the user has a conversation in flight.
func (m *Manager) Active(userID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[userID]
	return ok
}

// Cancel discards the user's conversation, if any. Collected answers are
// thrown away.
func (m *Manager) Cancel(userID int64) (string, bool) {
	m.mu.Lock()
	_, ok := m.sessions[userID]
	delete(m.sessions, userID)
	m.mu.Unlock()
	if !ok {
		return "", false
	}
	m.log.Debug("intake cancelled", logx.Int64("user_id", userID))
	return textCancelled, true
}

// HandleInput advances the user's conversation with one message of input and
// returns the reply to send. Invalid input re-prompts without advancing. The
// final valid answer persists the item and ends the conversation.
func (m *Manager) HandleInput(ctx context.Context, userID int64, text string) string {
	text = strings.TrimSpace(text)

	m.mu.Lock()
	s, ok := m.sessions[userID]
	if !ok {
		m.mu.Unlock()
		return ""
	}

	var finished catalog.Item
	reply := ""
	switch s.step {
	case stepTitle:
		if text == "" {
			reply = "A title can't be empty. What's the problem called?"
			break
		}
		s.item.Title = text
		s.step = stepDifficulty
		reply = promptDifficulty

	case stepDifficulty:
		if !catalog.ValidDifficulty(text) {
			reply = fmt.Sprintf("%q isn't a difficulty I know. Pick one of: easy, medium, hard.", text)
			break
		}
		s.item.Difficulty = strings.ToLower(text)
		s.step = stepTopic
		reply = promptTopic

	case stepTopic:
		if text == "" {
			reply = "The topic can't be empty. Which topic does it belong to?"
			break
		}
		s.item.Topic = text
		s.step = stepURL
		reply = promptURL

	case stepURL:
		if !validURL(text) {
			reply = "That doesn't look like a link. Send a full http(s) URL."
			break
		}
		s.item.URL = text
		finished = s.item
		delete(m.sessions, userID)
	}
	m.mu.Unlock()

	if finished.URL != "" {
		return m.finish(ctx, userID, finished)
	}
	return reply
}

// finish assigns the id and persists the item. The session is already gone by
// the time this runs; a storage failure does not keep the collected answers
// around for retry.
func (m *Manager) finish(ctx context.Context, userID int64, it catalog.Item) string {
	items, err := m.catalog.ListItems(ctx)
	if err != nil {
		m.log.Error("intake: catalog read failed", logx.Int64("user_id", userID), logx.Err(err))
		return textStoreFailed
	}
	it.ID = fmt.Sprintf("%d_%d", len(items)+1, m.nowUnix())

	if err := m.catalog.AppendItem(ctx, it); err != nil {
		m.log.Error("intake: append failed", logx.Int64("user_id", userID), logx.Err(err))
		return textStoreFailed
	}

	if m.bus != nil {
		m.bus.Publish(eventbus.Event{Type: eventbus.TypeItemAdded, UserID: userID, ItemID: it.ID})
	}
	m.log.Info("item added",
		logx.Int64("user_id", userID),
		logx.String("item_id", it.ID),
		logx.String("difficulty", it.Difficulty))
	return fmt.Sprintf("Added %q (%s, %s). Thanks!", it.Title, it.Difficulty, it.Topic)
}

func validURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
