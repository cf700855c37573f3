package models

import (
	"encoding/json"
)

type (
	// ChatbotLanguageValues maps a lower-case language code (ex: "en", "de",
	// "fr") to a localized string. Values sourced from the KYC protocol always
	// carry an "en" entry which acts as the fallback translation.
	ChatbotLanguageValues map[string]string

	// ChatbotQuestion is one parsed question fragment of a conversational
	// turn. It is rebuilt on every parse pass and never persisted.
	ChatbotQuestion struct {
		// Key is the positional index of the item inside its turn.
		Key int

		// Label is the localized question text.
		Label ChatbotLanguageValues
	}

	// ChatbotAnswer is the capture state of one interactive prompt.
	ChatbotAnswer struct {
		// APIType is the protocol answer type emitted on submission.
		APIType ChatbotAPIItemType

		// Element selects the widget which renders this answer.
		Element ChatbotElement

		// Data contains the selectable options. It is empty for free-text
		// and date answers.
		Data []*ChatbotAnswerData

		// DateFormat is the pattern extracted from the question label
		// (ex: "DD.MM.YYYY") when Element is ChatbotElementDate.
		DateFormat string

		// Value is the current user-entered or selected value. For
		// selections it holds the JSON-encoded protocol element.
		Value string

		// PreviousSentValue is the value last transmitted to the remote
		// session. It gates no-op resubmissions and restores replayed pages.
		PreviousSentValue string

		// Timestamp is the remote-side time of the last transmitted answer,
		// 0 if the answer was never sent.
		Timestamp int64

		// HasChanged is set on every local edit and cleared when the value
		// is known to match the remote state.
		HasChanged bool
	}

	// ChatbotAnswerData is one selectable option of a LIST answer.
	ChatbotAnswerData struct {
		// Key is the protocol identifier of the option (ex: "SAVINGS").
		Key string

		// Label is the localized display text of the option.
		Label ChatbotLanguageValues

		// IsSelected reports whether the option is currently selected.
		IsSelected bool

		// APIElement is the protocol-native payload echoed back verbatim
		// when the option is selected.
		APIElement ChatbotAPISelectionEntry
	}

	// ChatbotPage is one rendered interview screen. Header and body are
	// immutable once the page is assembled; only the embedded answer value
	// mutates while the user types or selects.
	ChatbotPage struct {
		Header             ChatbotLanguageValues
		Body               ChatbotLanguageValues
		BodyHasSupportLink bool
		Answer             *ChatbotAnswer
	}

	// ChatbotAPIItem is the atomic protocol unit of a conversational turn.
	ChatbotAPIItem struct {
		// Data is the item payload, usually JSON-encoded.
		Data string `json:"data"`

		// Kind tells whether the item was emitted by the engine or echoes
		// a previously submitted answer.
		Kind ChatbotAPIItemKind `json:"kind"`

		// Sequence is the item position inside its turn. A sequence of 0
		// marks the start of a new turn when replaying history; it is the
		// only ordering signal the protocol provides.
		Sequence int `json:"sequence"`

		// Time is the remote epoch timestamp of the item.
		Time int64 `json:"time"`

		// Type is the protocol item type tag.
		Type ChatbotAPIItemType `json:"type"`
	}

	// ChatbotAPIQuestion is one protocol turn as returned by the remote
	// session per HTTP round trip.
	ChatbotAPIQuestion struct {
		Items      []ChatbotAPIItem `json:"items"`
		Attributes json.RawMessage  `json:"attributes"`
		ChatState  ChatbotAPIState  `json:"chatState"`
	}

	// ChatbotAPIConfirmations carries the two-valued confirmation flags
	// embedded in a turn's attributes ("YES"/"NO").
	ChatbotAPIConfirmations struct {
		ConfirmsForm     string `json:"confirmsForm"`
		InformsOfChanges string `json:"informsOfChanges"`
	}

	// ChatbotAPIAnswer is the outbound answer payload of one turn.
	ChatbotAPIAnswer struct {
		Items      []ChatbotAPIAnswerItem `json:"items"`
		Attributes json.RawMessage        `json:"attributes"`
	}

	// ChatbotAPIAnswerItem is the single item of an outbound answer.
	ChatbotAPIAnswerItem struct {
		Type ChatbotAPIItemType `json:"type"`
		Data string             `json:"data"`
	}

	// ChatbotAPISelectionEntry is one entry of a dropdown/selection payload.
	// It stays a generic map because the engine may attach fields the client
	// does not know about and expects echoed back unchanged.
	ChatbotAPISelectionEntry map[string]interface{}

	// ChatbotElement identifies the widget rendering an answer.
	ChatbotElement string

	// ChatbotAPIItemKind tells the direction of a protocol item.
	ChatbotAPIItemKind string

	// ChatbotAPIItemType is a protocol item type tag. The exact strings must
	// round-trip unchanged when resubmitting.
	ChatbotAPIItemType string

	// ChatbotAPIState is the conversational state reported by the engine.
	ChatbotAPIState string
)

const (
	ChatbotElementText     ChatbotElement = "Text"
	ChatbotElementTextbox  ChatbotElement = "Textbox"
	ChatbotElementList     ChatbotElement = "List"
	ChatbotElementDate     ChatbotElement = "Date"
	ChatbotElementLoading  ChatbotElement = "Loading"
	ChatbotElementDropdown ChatbotElement = "Dropdown"
)

const (
	ChatbotAPIItemKindOutput ChatbotAPIItemKind = "OUTPUT"
	ChatbotAPIItemKindInput  ChatbotAPIItemKind = "INPUT"
)

const (
	ChatbotAPIItemOutput          ChatbotAPIItemType = "output:text:plain"
	ChatbotAPIItemPlain           ChatbotAPIItemType = "query:text:plain"
	ChatbotAPIItemHelp            ChatbotAPIItemType = "query:help:plain"
	ChatbotAPIItemDropdown        ChatbotAPIItemType = "query:text:dropdown"
	ChatbotAPIItemSelection       ChatbotAPIItemType = "query:text:selection"
	ChatbotAPIItemAnswerPlain     ChatbotAPIItemType = "query:answer:plain"
	ChatbotAPIItemAnswerSelection ChatbotAPIItemType = "query:answer:selection"
)

const (
	ChatbotAPIStateHelp     ChatbotAPIState = "HELP"
	ChatbotAPIStateContinue ChatbotAPIState = "TEXT"
	ChatbotAPIStateFinish   ChatbotAPIState = "DONE"
)

// selectionEntryPrefixField is protocol metadata attached to selection
// entries. It is never shown to the user and is stripped before the entry is
// echoed back, preventing duplicate prefix concatenation on resubmission.
const selectionEntryPrefixField = "prefix"

// Key returns the protocol identifier of the entry.
func (e ChatbotAPISelectionEntry) Key() string {
	key, _ := e["key"].(string)
	return key
}

// Text returns the localized display text of the entry.
func (e ChatbotAPISelectionEntry) Text() ChatbotLanguageValues {
	values := ChatbotLanguageValues{}
	raw, ok := e["text"].(map[string]interface{})
	if !ok {
		return values
	}

	for language, value := range raw {
		if text, ok := value.(string); ok {
			values[language] = text
		}
	}

	return values
}

// WithoutPrefix returns a copy of the entry with the protocol prefix field
// omitted. The original entry is left untouched to avoid aliasing between the
// parsed payload and the derived answer data.
func (e ChatbotAPISelectionEntry) WithoutPrefix() ChatbotAPISelectionEntry {
	stripped := make(ChatbotAPISelectionEntry, len(e))
	for field, value := range e {
		if field == selectionEntryPrefixField {
			continue
		}

		stripped[field] = value
	}

	return stripped
}

// IsAnswer reports whether the item echoes a previously submitted answer
// instead of carrying new conversational content.
func (i *ChatbotAPIItem) IsAnswer() bool {
	return i.Type == ChatbotAPIItemAnswerPlain || i.Type == ChatbotAPIItemAnswerSelection
}

// Confirmations extracts the confirmation flags embedded in the turn
// attributes. It returns nil when the turn carries none.
func (q *ChatbotAPIQuestion) Confirmations() *ChatbotAPIConfirmations {
	if len(q.Attributes) == 0 {
		return nil
	}

	attributes := struct {
		ConversationPartner struct {
			Confirmations *ChatbotAPIConfirmations `json:"confirmations"`
		} `json:"conversationPartner"`
	}{}

	if err := json.Unmarshal(q.Attributes, &attributes); err != nil {
		return nil
	}

	return attributes.ConversationPartner.Confirmations
}
