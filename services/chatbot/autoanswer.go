package chatbot

import (
	"strings"

	"github.com/DFXswiss/payment-sub000/models"
)

type (
	// autoAnswerRule links a header fragment to the option that is selected
	// and resubmitted without showing the page to the user.
	autoAnswerRule struct {
		// fragment is matched against the English header text.
		fragment string

		// optionKey is the protocol key of the option to select.
		optionKey string
	}
)

// autoAnswerRules are the known single-sensible-answer questions of the
// engine. Keying off English substrings is a fragility of the remote
// protocol; all matching stays behind shouldAutoAnswer so the strategy can
// change without touching callers.
var autoAnswerRules = []autoAnswerRule{
	{fragment: "CHF 0", optionKey: "SAVINGS"},
}

// shouldAutoAnswer checks the most recently assembled page against the known
// auto-answer rules.
func shouldAutoAnswer(pages []models.ChatbotPage) (*autoAnswerRule, bool) {
	if len(pages) == 0 {
		return nil, false
	}

	page := pages[len(pages)-1]
	if page.Answer == nil {
		return nil, false
	}

	header := Localize(page.Header, fallbackLanguage)
	for index := range autoAnswerRules {
		if strings.Contains(header, autoAnswerRules[index].fragment) {
			return &autoAnswerRules[index], true
		}
	}

	return nil, false
}

// createAutoAnswer pre-fills the page answer with the option named by the
// rule. When the option is absent from the answer data, the value resolves to
// empty and the caller falls back to presenting the page normally.
func createAutoAnswer(rule *autoAnswerRule, page *models.ChatbotPage) *models.ChatbotAnswer {
	answer := page.Answer
	if answer == nil {
		return nil
	}

	answer.Value = ""
	for _, option := range answer.Data {
		if option.Key != rule.optionKey {
			continue
		}

		if value := SelectionValue(option); value != "" {
			option.IsSelected = true
			answer.Value = value
			answer.HasChanged = true
		}

		break
	}

	return answer
}
