package chatbot

import (
	"encoding/json"
	"testing"

	"github.com/DFXswiss/payment-sub000/models"
)

func TestRestorePagesReplaysAnsweredTurns(t *testing.T) {
	first := plainItem(t, models.ChatbotLanguageValues{"en": "What is your first name?"})
	second := plainItem(t, models.ChatbotLanguageValues{"en": "What is your last name?"})

	items := []models.ChatbotAPIItem{
		first,
		{
			Data: `"John"`,
			Kind: models.ChatbotAPIItemKindInput,
			Time: 1111,
			Type: models.ChatbotAPIItemAnswerPlain,
		},
		second,
	}

	pages := RestorePages(items, "en")
	if len(pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(pages))
	}

	restored := pages[0].Answer
	if restored == nil {
		t.Fatal("answered page lost its answer")
	}

	if restored.Value != "John" || restored.PreviousSentValue != "John" {
		t.Errorf("restored value = %q / %q, expected John", restored.Value, restored.PreviousSentValue)
	}

	if restored.Timestamp != 1111 {
		t.Errorf("timestamp = %d, expected 1111", restored.Timestamp)
	}

	if restored.HasChanged {
		t.Error("restored answer must be clean")
	}

	if ShouldSendAnswer(restored) {
		t.Error("restored answer must not be resubmitted as-is")
	}

	if !IsEdit(restored) {
		t.Error("re-answering a restored page is an edit")
	}

	fresh := pages[1].Answer
	if fresh == nil {
		t.Fatal("open page lost its answer")
	}

	if fresh.Value != "" || fresh.Timestamp != 0 || fresh.HasChanged {
		t.Errorf("open page answer must start blank, got %+v", fresh)
	}
}

func TestRestorePagesReconcilesSelections(t *testing.T) {
	selected := models.ChatbotAPISelectionEntry{
		"key":  "SALARY",
		"text": map[string]interface{}{"en": "Salary"},
	}
	encoded, err := json.Marshal(selected)
	if err != nil {
		t.Fatalf("encoding selection: %v", err)
	}

	items := []models.ChatbotAPIItem{
		selectionItem(t,
			models.ChatbotLanguageValues{"en": "What is the origin of your funds?"},
			[]map[string]interface{}{
				{"key": "SALARY", "text": map[string]interface{}{"en": "Salary"}},
				{"key": "INHERITANCE", "text": map[string]interface{}{"en": "Inheritance"}},
			},
		),
		{
			Data: string(encoded),
			Kind: models.ChatbotAPIItemKindInput,
			Time: 2222,
			Type: models.ChatbotAPIItemAnswerSelection,
		},
	}

	pages := RestorePages(items, "en")
	if len(pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(pages))
	}

	answer := pages[0].Answer
	if answer == nil || len(answer.Data) != 2 {
		t.Fatalf("selection answer not restored: %+v", answer)
	}

	for _, option := range answer.Data {
		if expected := option.Key == "SALARY"; option.IsSelected != expected {
			t.Errorf("option %s: selected = %v, expected %v", option.Key, option.IsSelected, expected)
		}
	}

	if answer.Value != string(encoded) {
		t.Errorf("restored value = %s, expected the encoded element", answer.Value)
	}
}

func TestRestorePagesToleratesServerSideFormatting(t *testing.T) {
	// The server echoes the element with its own key order and whitespace.
	echoed := "{ \"text\": {\"en\": \"Salary\"}, \"key\": \"SALARY\" }"

	items := []models.ChatbotAPIItem{
		selectionItem(t,
			models.ChatbotLanguageValues{"en": "What is the origin of your funds?"},
			[]map[string]interface{}{
				{"key": "SALARY", "text": map[string]interface{}{"en": "Salary"}},
				{"key": "INHERITANCE", "text": map[string]interface{}{"en": "Inheritance"}},
			},
		),
		{
			Data: echoed,
			Kind: models.ChatbotAPIItemKindInput,
			Time: 3333,
			Type: models.ChatbotAPIItemAnswerSelection,
		},
	}

	pages := RestorePages(items, "en")
	if len(pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(pages))
	}

	answer := pages[0].Answer
	if answer == nil || len(answer.Data) != 2 {
		t.Fatalf("selection answer not restored: %+v", answer)
	}

	for _, option := range answer.Data {
		if expected := option.Key == "SALARY"; option.IsSelected != expected {
			t.Errorf("option %s: selected = %v, expected %v", option.Key, option.IsSelected, expected)
		}
	}
}

func TestSplitIntoBatches(t *testing.T) {
	items := []models.ChatbotAPIItem{
		{Sequence: 0, Data: "a"},
		{Sequence: 1, Data: "b"},
		{Sequence: 0, Data: "c"},
		{Sequence: 0, Data: "d"},
		{Sequence: 1, Data: "e"},
	}

	batches := splitIntoBatches(items)
	if len(batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(batches))
	}

	sizes := []int{2, 1, 2}
	for index, batch := range batches {
		if len(batch) != sizes[index] {
			t.Errorf("batch %d: size = %d, expected %d", index, len(batch), sizes[index])
		}
	}

	if batches[1][0].Data != "c" {
		t.Errorf("batch 1 boundary = %s, expected c", batches[1][0].Data)
	}

	if len(splitIntoBatches(nil)) != 0 {
		t.Error("empty log must yield no batches")
	}
}
