package chatbot

import (
	"encoding/json"

	"github.com/DFXswiss/payment-sub000/models"
)

// RestorePages rebuilds the page sequence of a resumed session from the full
// raw item log, in transmission order. The flat list is partitioned into
// per-turn batches at every item with sequence 0, each batch is fed through
// the page assembler with the growing page list as substitution context, and
// batches opened by an INPUT-kind item restore the trailing page's answer
// from the previously submitted value.
func RestorePages(items []models.ChatbotAPIItem, language string) []models.ChatbotPage {
	pages := []models.ChatbotPage{}

	for _, batch := range splitIntoBatches(items) {
		boundary := batch[0]
		if boundary.Kind == models.ChatbotAPIItemKindInput && len(pages) > 0 {
			if answer := pages[len(pages)-1].Answer; answer != nil {
				restoreAnswerValues(&boundary, answer)
			}
		}

		question := &models.ChatbotAPIQuestion{
			Items:     batch,
			ChatState: models.ChatbotAPIStateContinue,
		}

		pages, _, _, _ = FeedQuestion(question, pages, language)
	}

	return pages
}

// splitIntoBatches partitions the flat item log into per-turn batches. A
// sequence of 0 is the only boundary signal the protocol provides; behavior
// for non-monotonic sequences within a turn is undefined upstream.
func splitIntoBatches(items []models.ChatbotAPIItem) [][]models.ChatbotAPIItem {
	batches := [][]models.ChatbotAPIItem{}

	var current []models.ChatbotAPIItem
	for _, item := range items {
		if item.Sequence == 0 && len(current) > 0 {
			batches = append(batches, current)
			current = nil
		}

		current = append(current, item)
	}

	if len(current) > 0 {
		batches = append(batches, current)
	}

	return batches
}

// restoreAnswerValues reconciles an in-memory answer with the value the
// server already holds for it. A primitive string payload is stored directly,
// anything else stays in its raw encoded form. The dirty flag is cleared
// since the value is known to match the remote state.
func restoreAnswerValues(item *models.ChatbotAPIItem, answer *models.ChatbotAnswer) {
	value := item.Data

	var parsed interface{}
	if err := json.Unmarshal([]byte(item.Data), &parsed); err == nil {
		if text, ok := parsed.(string); ok {
			value = text
		}
	}

	answer.Value = value
	answer.PreviousSentValue = value
	answer.Timestamp = item.Time
	answer.HasChanged = false

	// The echoed selection element is formatted by the server; matching on
	// the decoded key tolerates key order and whitespace differences.
	selectedKey := ""
	var entry models.ChatbotAPISelectionEntry
	if err := json.Unmarshal([]byte(item.Data), &entry); err == nil {
		selectedKey = entry.Key()
	}

	for _, option := range answer.Data {
		if selectedKey != "" {
			option.IsSelected = option.Key == selectedKey
			continue
		}

		option.IsSelected = SelectionValue(option) == value
	}
}
