package capsule

import (
	"github.com/DFXswiss/payment-sub000/models"
	"github.com/google/uuid"
)

type (
	// Capsule is the unit exchanged between the frontend and the backend
	// conversation driver. A capsule is initialized on one side, marshalled
	// to yaml and sent over the connecting channel.
	Capsule struct {
		// ID correlates a response with the capsule that caused it.
		ID uuid.UUID `json:"id" yaml:"id"`

		// Kind tells how the capsule content is interpreted.
		Kind Kind `json:"kind" yaml:"kind"`

		// Provider is the label of the frontend provider involved.
		Provider string `json:"provider" yaml:"provider"`

		// User is the name of the user, when known.
		User string `json:"user" yaml:"user"`

		// Content is the free-form payload: an answer value, a command
		// name, an SMS code, a help or notification text.
		Content string `json:"content" yaml:"content"`

		// Page is the rendered interview page, set on KindPage capsules.
		Page *PageView `json:"page,omitempty" yaml:"page,omitempty"`
	}

	// Kind classifies a capsule.
	Kind string

	// PageView is the renderable projection of one interview page, already
	// localized for the active language.
	PageView struct {
		// Index is the position of the page in the interview history.
		Index int `json:"index" yaml:"index"`

		// Total is the current length of the interview history.
		Total int `json:"total" yaml:"total"`

		// Header is the localized page header.
		Header string `json:"header" yaml:"header"`

		// Body is the localized page body, empty when the page has none.
		Body string `json:"body" yaml:"body"`

		// SupportLink tells the provider to append the support contact.
		SupportLink bool `json:"supportLink" yaml:"supportLink"`

		// Element is the widget capturing the answer.
		Element models.ChatbotElement `json:"element" yaml:"element"`

		// DateFormat is the expected input pattern for date answers.
		DateFormat string `json:"dateFormat" yaml:"dateFormat"`

		// Options are the selectable options of a list answer.
		Options []OptionView `json:"options,omitempty" yaml:"options,omitempty"`

		// Value is the current answer value, pre-filled on replayed pages.
		Value string `json:"value" yaml:"value"`

		// Answered tells whether this page's answer was already sent.
		Answered bool `json:"answered" yaml:"answered"`
	}

	// OptionView is one selectable option of a list answer.
	OptionView struct {
		Key      string `json:"key" yaml:"key"`
		Label    string `json:"label" yaml:"label"`
		Selected bool   `json:"selected" yaml:"selected"`
	}
)

const (
	// KindPage carries an interview page from backend to frontend.
	KindPage Kind = "Page"

	// KindAnswer carries a user answer from frontend to backend. For list
	// answers the content is the option key.
	KindAnswer Kind = "Answer"

	// KindCommand carries a navigation command (back, next, skip, help).
	KindCommand Kind = "Command"

	// KindSMSChallenge asks the frontend for the received SMS code.
	KindSMSChallenge Kind = "SMSChallenge"

	// KindSMSCode carries the SMS code from frontend to backend.
	KindSMSCode Kind = "SMSCode"

	// KindHelp carries a help text side-channel message.
	KindHelp Kind = "Help"

	// KindNotice carries a user-facing notification.
	KindNotice Kind = "Notice"

	// KindFinished signals the completed interview.
	KindFinished Kind = "Finished"
)

const (
	// CommandBack navigates to the previous page of the interview.
	CommandBack = "back"

	// CommandNext navigates to the next page of the interview.
	CommandNext = "next"

	// CommandSkip asks the engine to skip the current question.
	CommandSkip = "skip"

	// CommandHelp requests the help text of the current question.
	CommandHelp = "help"
)
