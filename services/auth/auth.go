// Package auth holds the credentials of the signed-in user. It replaces the
// module-level session singleton of earlier clients with a constructed,
// injected service exposing subscribe/publish semantics over channels.
package auth

import (
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type (
	// Credentials is the authentication state of the client.
	Credentials struct {
		// Address is the blockchain address the account is keyed on.
		Address string

		// Signature is the ownership proof of the address.
		Signature string

		// AccessToken is the JWT issued by the backend.
		AccessToken string
	}

	// Service owns the credentials for the lifetime of the application,
	// from construction at start to Close at teardown.
	Service struct {
		mu          sync.RWMutex
		credentials Credentials
		subscribers map[uuid.UUID]chan Credentials
	}
)

var (
	// logger is a global logger of the package
	logger = log.WithField("package", "auth")
)

// New initializes an empty auth service.
func New() *Service {
	return &Service{
		subscribers: map[uuid.UUID]chan Credentials{},
	}
}

// Credentials returns the current authentication state.
func (s *Service) Credentials() Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.credentials
}

// IsLoggedIn reports whether an access token is present.
func (s *Service) IsLoggedIn() bool {
	return s.Credentials().AccessToken != ""
}

// Update publishes new credentials to all subscribers.
func (s *Service) Update(credentials Credentials) {
	s.mu.Lock()
	s.credentials = credentials
	subscribers := make([]chan Credentials, 0, len(s.subscribers))
	for _, subscriber := range s.subscribers {
		subscribers = append(subscribers, subscriber)
	}
	s.mu.Unlock()

	logger.WithField("address", credentials.Address).Debug("Credentials updated")

	for _, subscriber := range subscribers {
		select {
		case subscriber <- credentials:
		default:
		}
	}
}

// Reset clears the credentials, logging the user out.
func (s *Service) Reset() {
	s.Update(Credentials{})
}

// Subscribe registers a listener for credential changes.
func (s *Service) Subscribe() (uuid.UUID, <-chan Credentials) {
	id := uuid.New()
	subscriber := make(chan Credentials, 1)

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
