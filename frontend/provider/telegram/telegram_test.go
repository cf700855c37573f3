package telegram

import (
	"testing"

	"github.com/DFXswiss/payment-sub000/capsule"
	"github.com/DFXswiss/payment-sub000/frontend/provider"
	tb "gopkg.in/tucnak/telebot.v2"
)

func TestIsAuthorized(t *testing.T) {
	telegram := &Telegram{
		AuthorizedUsers: []*provider.User{
			{ID: 123456789, Name: "alice"},
		},
	}

	tests := []struct {
		name     string
		sender   *tb.User
		expected bool
	}{
		{
			name:     "configured user",
			sender:   &tb.User{ID: 123456789, Username: "alice"},
			expected: true,
		},
		{
			name:     "matching name, wrong ID",
			sender:   &tb.User{ID: 987654321, Username: "alice"},
			expected: false,
		},
		{
			name:     "matching ID, wrong name",
			sender:   &tb.User{ID: 123456789, Username: "mallory"},
			expected: false,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := telegram.isAuthorized(test.sender); got != test.expected {
				t.Errorf("isAuthorized() = %v, expected %v", got, test.expected)
			}
		})
	}
}

func TestCapsuleFor(t *testing.T) {
	telegram := &Telegram{}
	sender := &tb.User{ID: 1, Username: "alice"}

	answer := telegram.capsuleFor(&tb.Message{Sender: sender, Text: "John"})
	if answer.Kind != capsule.KindAnswer || answer.Content != "John" {
		t.Errorf("answer capsule = %+v", answer)
	}

	command := telegram.capsuleFor(&tb.Message{Sender: sender, Text: "/back"})
	if command.Kind != capsule.KindCommand || command.Content != capsule.CommandBack {
		t.Errorf("command capsule = %+v", command)
	}

	telegram.expectingCode = true
	code := telegram.capsuleFor(&tb.Message{Sender: sender, Text: "123456"})
	if code.Kind != capsule.KindSMSCode || code.Content != "123456" {
		t.Errorf("code capsule = %+v", code)
	}

	if telegram.expectingCode {
		t.Error("the code flag must reset after one message")
	}
}
