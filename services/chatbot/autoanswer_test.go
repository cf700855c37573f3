package chatbot

import (
	"encoding/json"
	"testing"

	"github.com/DFXswiss/payment-sub000/models"
)

func savingsQuestion(t *testing.T, optionKeys []string) *models.ChatbotAPIQuestion {
	t.Helper()

	entries := []map[string]interface{}{}
	for _, key := range optionKeys {
		entries = append(entries, map[string]interface{}{
			"key":  key,
			"text": map[string]string{"en": key},
		})
	}

	return &models.ChatbotAPIQuestion{
		Items: []models.ChatbotAPIItem{selectionItem(t,
			models.ChatbotLanguageValues{"en": "What is the origin of the CHF 0 you transferred?"},
			entries,
		)},
		ChatState: models.ChatbotAPIStateContinue,
	}
}

func TestFeedQuestionAutoAnswersZeroVolumeOrigin(t *testing.T) {
	question := savingsQuestion(t, []string{"SAVINGS", "INHERITANCE"})

	previous := historyPage()
	pages, finished, _, autoAnswer := FeedQuestion(question, previous, "en")
	if finished {
		t.Fatal("auto-answered turn must not finish")
	}

	if len(pages) != len(previous) {
		t.Fatalf("auto-answered page must be withheld, got %d extra pages", len(pages)-len(previous))
	}

	if autoAnswer == nil {
		t.Fatal("expected an auto-answer")
	}

	var selected map[string]interface{}
	if err := json.Unmarshal([]byte(autoAnswer.Value), &selected); err != nil {
		t.Fatalf("auto-answer value is not an encoded element: %v", err)
	}

	if selected["key"] != "SAVINGS" {
		t.Errorf("selected key = %v, expected SAVINGS", selected["key"])
	}

	if !autoAnswer.HasChanged {
		t.Error("auto-answer must pass the submission gate")
	}

	if !ShouldSendAnswer(autoAnswer) {
		t.Error("auto-answer must be sendable as-is")
	}
}

func TestFeedQuestionKeepsPageWhenAutoAnswerKeyMissing(t *testing.T) {
	question := savingsQuestion(t, []string{"INHERITANCE", "SALARY"})

	previous := historyPage()
	pages, _, _, autoAnswer := FeedQuestion(question, previous, "en")
	if autoAnswer != nil {
		t.Fatalf("expected no auto-answer, got %+v", autoAnswer)
	}

	if len(pages) != len(previous)+1 {
		t.Fatalf("page must be presented normally, got %d pages", len(pages))
	}

	answer := pages[len(pages)-1].Answer
	if answer == nil || answer.Value != "" {
		t.Errorf("fallback page must carry a blank answer, got %+v", answer)
	}
}

func TestShouldAutoAnswerIgnoresAnswerlessPages(t *testing.T) {
	pages := []models.ChatbotPage{{
		Header: models.ChatbotLanguageValues{"en": "Your balance is CHF 0."},
	}}

	if _, ok := shouldAutoAnswer(pages); ok {
		t.Error("pages without an answer prompt must never auto-answer")
	}

	if _, ok := shouldAutoAnswer(nil); ok {
		t.Error("empty page list must never auto-answer")
	}
}
