// Package notification fans user-facing notifications out to the frontend
// providers. It replaces the former global notification singleton with a
// constructed, injected event bus.
package notification

import (
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type (
	// Level classifies a notification.
	Level string

	// Notification is one user-facing message.
	Notification struct {
		Level   Level
		Message string
	}

	// Service is the notification bus.
	Service struct {
		mu          sync.RWMutex
		subscribers map[uuid.UUID]chan Notification
	}
)

const (
	LevelInfo    Level = "Info"
	LevelSuccess Level = "Success"
	LevelError   Level = "Error"
)

var (
	// logger is a global logger of the package
	logger = log.WithField("package", "notification")
)

// New initializes the notification bus.
func New() *Service {
	return &Service{
		subscribers: map[uuid.UUID]chan Notification{},
	}
}

// Publish delivers a notification to all subscribers. Slow subscribers drop
// messages instead of blocking the publisher.
func (s *Service) Publish(level Level, message string) {
	s.mu.RLock()
	subscribers := make([]chan Notification, 0, len(s.subscribers))
	for _, subscriber := range s.subscribers {
		subscribers = append(subscribers, subscriber)
	}
	s.mu.RUnlock()

	logger.WithField("level", level).Debug(message)

	notification := Notification{Level: level, Message: message}
	for _, subscriber := range subscribers {
		select {
		case subscriber <- notification:
		default:
			logger.Warn("Dropping notification for slow subscriber")
		}
	}
}

// Subscribe registers a listener on the bus.
func (s *Service) Subscribe() (uuid.UUID, <-chan Notification) {
	id := uuid.New()
	subscriber := make(chan Notification, 16)

	s.mu.Lock()
	s.subscribers[id] = subscriber
	s.mu.Unlock()

	return id, subscriber
}

// Unsubscribe removes a listener.
func (s *Service) Unsubscribe(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if subscriber, ok := s.subscribers[id]; ok {
		close(subscriber)
		delete(s.subscribers, id)
	}
}

// Close disposes the bus and all remaining subscriptions.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, subscriber := range s.subscribers {
		close(subscriber)
		delete(s.subscribers, id)
	}
}
