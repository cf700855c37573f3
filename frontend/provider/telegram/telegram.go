package telegram

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/DFXswiss/payment-sub000/capsule"
	"github.com/DFXswiss/payment-sub000/frontend/provider"
	"github.com/DFXswiss/payment-sub000/models"
	"github.com/google/uuid"
	"github.com/juju/errors"
	log "github.com/sirupsen/logrus"
	tb "gopkg.in/tucnak/telebot.v2"
)

type (
	// Telegram contains all variables needed to make a stable
	// connection with the Telegram API.
	Telegram struct {
		// Bot is the handler which handles the message sent by users
		Bot *tb.Bot

		// AuthorizedUsers is a authorized users slice.
		AuthorizedUsers []*provider.User

		// userInput is a channel connected to the frontend manager. It is
		// used to send user capsules to that manager.
		userInput chan<- *capsule.Capsule

		// mu guards the interview state against the poller goroutine.
		mu sync.Mutex

		// chat is the user the interview is rendered to, set on the first
		// authorized message.
		chat *tb.User

		// expectingCode is set while an SMS challenge is pending; the next
		// message is sent as the code.
		expectingCode bool
	}
)

const (
	// pollerTimeout is the poller timeout. When the poller does not receive any
	// message from users, it pauses its listening.
	pollerTimeout = 10 * time.Second

	// label is the provider label.
	label = "telegram"

	// commandPrefix marks a message as a command.
	commandPrefix = "/"
)

var (
	// logger is a global logger of the package
	logger = log.WithFields(log.Fields{
		"package":  "frontend",
		"provider": label,
	})
)

// Initialize initializes a provider with the given configuration, slice of
// authorized users and user inputs write-only channel.
func (t *Telegram) Initialize(config *provider.Config) (provider.Provider, error) {
	logger.Debugf("Initializing %s", label)

	bot, err := tb.NewBot(tb.Settings{
		Token:  config.Token,
		Poller: &tb.LongPoller{Timeout: pollerTimeout},
	})
	if err != nil {
		return nil, errors.Annotate(err, "initializing telegram")
	}

	return &Telegram{
		Bot:             bot,
		AuthorizedUsers: config.AuthorizedUsers,
		userInput:       config.UserInput,
	}, nil
}

// Start starts the provider handlers.
func (t *Telegram) Start() {
	localLogger := log.WithField("ui", label)
	localLogger.Debugf("Starting %s", label)

	t.Bot.Handle(tb.OnText, t.textMessageHandler())

	t.Bot.Start()
}

// Render presents one interview page to the user. List options are offered as
// a reply keyboard of option keys.
func (t *Telegram) Render(view *capsule.PageView) error {
	chat := t.currentChat()
	if chat == nil {
		return errors.NotProvisionedf("telegram chat (no authorized message received yet)")
	}

	text := fmt.Sprintf("[%d/%d] %s", view.Index+1, view.Total, view.Header)
	if view.Body != "" {
		text += "\n" + view.Body
	}

	if view.SupportLink {
		text += "\nSupport: support@dfx.swiss"
	}

	if view.Element == models.ChatbotElementDate {
		text += fmt.Sprintf("\nPlease answer in the format %s.", view.DateFormat)
	}

	if len(view.Options) == 0 {
		_, err := t.Bot.Send(chat, text)
		return errors.Annotate(err, "rendering page")
	}

	rows := [][]tb.ReplyButton{}
	for _, option := range view.Options {
		text += fmt.Sprintf("\n%s - %s", option.Key, option.Label)
		rows = append(rows, []tb.ReplyButton{{Text: option.Key}})
	}

	_, err := t.Bot.Send(chat, text, &tb.ReplyMarkup{
		ReplyKeyboard:       rows,
		ResizeReplyKeyboard: true,
		OneTimeKeyboard:     true,
	})

	return errors.Annotate(err, "rendering page")
}

// Challenge asks the user for the pending SMS code.
func (t *Telegram) Challenge(target string) error {
	chat := t.currentChat()
	if chat == nil {
		return errors.NotProvisionedf("telegram chat (no authorized message received yet)")
	}

	t.mu.Lock()
	t.expectingCode = true
	t.mu.Unlock()

	_, err := t.Bot.Send(chat, fmt.Sprintf("An SMS code was sent to %s. Please reply with the code.", target))
	return errors.Annotate(err, "sending SMS challenge")
}

// Notify shows a user-facing notification.
func (t *Telegram) Notify(level, message string) error {
	chat := t.currentChat()
	if chat == nil {
		logger.WithField("level", level).Debug("Dropping notification, no chat yet")
		return nil
	}

	_, err := t.Bot.Send(chat, fmt.Sprintf("[%s] %s", level, message))
	return errors.Annotate(err, "sending notification")
}

// GetLabel returns the label of the provider
func (t *Telegram) GetLabel() string {
	return label
}

// Stop closes the telegram listener. The user inputs channel is owned and
// closed by the frontend manager.
func (t *Telegram) Stop() {
	t.Bot.Stop()
}

// textMessageHandler handles text messages sent by users.
func (t *Telegram) textMessageHandler() func(*tb.Message) {
	return func(message *tb.Message) {
		localLogger := logger.WithField("action", "receiving user message")

		// Verifies if the user is an authorized user.
		if !t.isAuthorized(message.Sender) {
			localLogger.WithFields(log.Fields{
				"from":      message.Sender.Username,
				"sender_id": message.Sender.ID,
				"message":   message.Text,
			}).Debug("User message received from unauthorized user")
			return
		}

		localLogger.WithFields(log.Fields{
			"from":      message.Sender.Username,
			"sender_id": message.Sender.ID,
			"message":   message.Text,
		}).Debug("User message received")

		t.mu.Lock()
		t.chat = message.Sender
		t.mu.Unlock()

		// Sends the user input to the frontend manager.
		t.userInput <- t.capsuleFor(message)
	}
}

// isAuthorized reports whether the sender matches one of the configured
// authorized users on both name and ID.
func (t *Telegram) isAuthorized(sender *tb.User) bool {
	for _, user := range t.AuthorizedUsers {
		if user.Name == sender.Username && user.ID == sender.ID {
			return true
		}
	}

	return false
}

// capsuleFor converts one user message into a capsule.
func (t *Telegram) capsuleFor(message *tb.Message) *capsule.Capsule {
	out := &capsule.Capsule{
		ID:       uuid.New(),
		Provider: label,
		Kind:     capsule.KindAnswer,
		Content:  strings.TrimSpace(message.Text),
		User:     message.Sender.Username,
	}

	t.mu.Lock()
	if t.expectingCode {
		t.expectingCode = false
		out.Kind = capsule.KindSMSCode
	}
	t.mu.Unlock()

	if strings.HasPrefix(out.Content, commandPrefix) {
		name := strings.TrimPrefix(out.Content, commandPrefix)
		if command, ok := provider.Commands[name]; ok {
			out.Kind = capsule.KindCommand
			out.Content = command
		}
	}

	return out
}

// currentChat returns the user the interview is rendered to.
func (t *Telegram) currentChat() *tb.User {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.chat
}
