package chatbot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/DFXswiss/payment-sub000/models"
	"github.com/juju/errors"
)

type (
	// Session is the client of one SMS-gated conversation on the remote
	// verification engine. The protocol is strictly request/response per
	// conversational turn; the session never pushes.
	Session struct {
		client *http.Client
		url    string
		id     string
		token  string
	}

	// SessionConfig carries the coordinates of a remote conversation, as
	// issued by the DFX backend when a KYC step is started.
	SessionConfig struct {
		// URL is the base URL of the verification engine.
		URL string `json:"url" yaml:"url"`

		// ID is the remote conversation identifier.
		ID string `json:"id" yaml:"id"`

		// Token is the access token of the conversation.
		Token string `json:"token" yaml:"token"`

		// Timeout bounds every HTTP round trip.
		Timeout time.Duration `json:"timeout" yaml:"timeout"`
	}

	// SessionStatus is the remote-side state of the conversation.
	SessionStatus string

	// AuthenticationInfo describes the pending SMS challenge.
	AuthenticationInfo struct {
		// Type is the challenge type (ex: "SMS").
		Type string `json:"type"`

		// Target is the masked phone number the code is sent to.
		Target string `json:"target"`
	}
)

const (
	// SessionStatusInitiated means the conversation exists but was never
	// authenticated.
	SessionStatusInitiated SessionStatus = "INITIATED"

	// SessionStatusChallenged means an SMS code was issued and must be
	// submitted before the conversation continues.
	SessionStatusChallenged SessionStatus = "CHALLENGED"

	// SessionStatusAuthenticated means the conversation accepts answers.
	SessionStatusAuthenticated SessionStatus = "AUTHENTICATED"

	// SessionStatusCompleted means the interview was finished remotely.
	SessionStatusCompleted SessionStatus = "COMPLETED"

	// SessionStatusExpired means the conversation can no longer be resumed.
	SessionStatusExpired SessionStatus = "EXPIRED"
)

const defaultSessionTimeout = 30 * time.Second

// NewSession initializes a client for the remote conversation described by
// the given config.
func NewSession(config *SessionConfig) (*Session, error) {
	if config == nil || config.URL == "" {
		return nil, errors.NotValidf("session URL")
	}

	if config.ID == "" || config.Token == "" {
		return nil, errors.NotValidf("session credentials")
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultSessionTimeout
	}

	return &Session{
		client: &http.Client{Timeout: timeout},
		url:    config.URL,
		id:     config.ID,
		token:  config.Token,
	}, nil
}

// Status fetches the remote-side state of the conversation.
func (s *Session) Status(ctx context.Context) (SessionStatus, error) {
	result := struct {
		Status SessionStatus `json:"status"`
	}{}

	if err := s.do(ctx, http.MethodGet, "status", nil, &result); err != nil {
		return "", errors.Annotate(err, "fetching session status")
	}

	return result.Status, nil
}

// AuthenticationInfo fetches the description of the pending SMS challenge.
func (s *Session) AuthenticationInfo(ctx context.Context) (*AuthenticationInfo, error) {
	info := &AuthenticationInfo{}
	if err := s.do(ctx, http.MethodGet, "authentication-info", nil, info); err != nil {
		return nil, errors.Annotate(err, "fetching authentication info")
	}

	return info, nil
}

// RequestSMSCode asks the engine to send a fresh SMS code to the registered
// phone number.
func (s *Session) RequestSMSCode(ctx context.Context) error {
	if err := s.do(ctx, http.MethodGet, "challenge", nil, nil); err != nil {
		return errors.Annotate(err, "requesting SMS code")
	}

	return nil
}

// SubmitSMSCode submits the received SMS code. On success the engine returns
// the full raw item log of the conversation, which the caller replays through
// RestorePages to rebuild the interview history.
func (s *Session) SubmitSMSCode(ctx context.Context, code string) (*models.ChatbotAPIQuestion, error) {
	if code == "" {
		return nil, errors.NotValidf("SMS code")
	}

	body := struct {
		Challenge string `json:"challenge"`
	}{Challenge: code}

	question := &models.ChatbotAPIQuestion{}
	if err := s.do(ctx, http.MethodPost, "authenticate", body, question); err != nil {
		return nil, errors.Annotate(err, "submitting SMS code")
	}

	return question, nil
}

// NextStep submits an answer and returns the next conversational turn. A nil
// answer fetches the pending turn without submitting anything.
func (s *Session) NextStep(ctx context.Context, answer *models.ChatbotAPIAnswer) (*models.ChatbotAPIQuestion, error) {
	question := &models.ChatbotAPIQuestion{}

	if answer == nil {
		if err := s.do(ctx, http.MethodGet, "update", nil, question); err != nil {
			return nil, errors.Annotate(err, "fetching pending turn")
		}

		return question, nil
	}

	if err := s.do(ctx, http.MethodPost, "update", answer, question); err != nil {
		return nil, errors.Annotate(err, "submitting answer")
	}

	return question, nil
}

// RequestSkip asks the engine to skip the current question.
func (s *Session) RequestSkip(ctx context.Context) error {
	if err := s.do(ctx, http.MethodPost, "skip", nil, nil); err != nil {
		return errors.Annotate(err, "requesting skip")
	}

	return nil
}

// do performs one request/response round trip against the engine.
func (s *Session) do(ctx context.Context, method, endpoint string, body interface{}, result interface{}) error {
	url := fmt.Sprintf("%s/session/%s/%s", s.url, s.id, endpoint)

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return errors.Annotate(err, "encoding request body")
		}

		reader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return errors.Annotate(err, "building request")
	}

	request.Header.Set("Authorization", "Bearer "+s.token)
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	logger.WithField("endpoint", endpoint).Debug("Calling verification engine")

	response, err := s.client.Do(request)
	if err != nil {
		return errors.Annotate(err, "calling verification engine")
	}
	defer response.Body.Close()

	data, err := io.ReadAll(response.Body)
	if err != nil {
		return errors.Annotate(err, "reading response")
	}

	if response.StatusCode == http.StatusUnauthorized || response.StatusCode == http.StatusForbidden {
		return errors.Unauthorizedf("verification engine rejected the session (%d)", response.StatusCode)
	}

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return errors.Errorf("verification engine returned %d: %s", response.StatusCode, string(data))
	}

	if result == nil || len(data) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, result); err != nil {
		return errors.Annotate(err, "decoding response")
	}

	return nil
}
