// Package settings holds the application settings, most importantly the
// interview language. Like the auth service it is a constructed, injected
// replacement for a former global singleton.
package settings

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

type (
	// Settings is the mutable application configuration.
	Settings struct {
		// Language is the lower-case interface language code (ex: "en").
		Language string
	}

	// Service owns the settings for the lifetime of the application.
	Service struct {
		mu          sync.RWMutex
		settings    Settings
		subscribers map[uuid.UUID]chan Settings
	}
)

// defaultLanguage is used until the user picks one.
const defaultLanguage = "en"

// New initializes the settings service with the given language, falling back
// to English.
func New(language string) *Service {
	if language == "" {
		language = defaultLanguage
	}

	return &Service{
		settings:    Settings{Language: strings.ToLower(language)},
		subscribers: map[uuid.UUID]chan Settings{},
	}
}

// Settings returns the current settings.
func (s *Service) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.settings
}

// Language returns the current interface language.
func (s *Service) Language() string {
	return s.Settings().Language
}

// SetLanguage publishes a language change to all subscribers.
func (s *Service) SetLanguage(language string) {
	s.mu.Lock()
	s.settings.Language = strings.ToLower(language)
	settings := s.settings
	subscribers := make([]chan Settings, 0, len(s.subscribers))
	for _, subscriber := range s.subscribers {
		subscribers = append(subscribers, subscriber)
	}
	s.mu.Unlock()

	for _, subscriber := range subscribers {
		select {
		case subscriber <- settings:
		default:
		}
	}
}

// Subscribe registers a listener for settings changes.
func (s *Service) Subscribe() (uuid.UUID, <-chan Settings) {
	id := uuid.New()
	subscriber := make(chan Settings, 1)

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

// Close disposes the service and all remaining subscriptions.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, subscriber := range s.subscribers {
		close(subscriber)
		delete(s.subscribers, id)
	}
}
