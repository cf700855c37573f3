package chatbot

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/DFXswiss/payment-sub000/models"
)

// historyPage returns a non-empty page list so that assembled pages are not
// exchanged with the bundled start page.
func historyPage() []models.ChatbotPage {
	return []models.ChatbotPage{{
		Header: models.ChatbotLanguageValues{"en": "Earlier question"},
	}}
}

func plainItem(t *testing.T, label models.ChatbotLanguageValues) models.ChatbotAPIItem {
	t.Helper()

	data, err := json.Marshal(label)
	if err != nil {
		t.Fatalf("marshaling label: %v", err)
	}

	return models.ChatbotAPIItem{
		Data: string(data),
		Kind: models.ChatbotAPIItemKindOutput,
		Type: models.ChatbotAPIItemPlain,
	}
}

func outputItem(t *testing.T, label models.ChatbotLanguageValues) models.ChatbotAPIItem {
	t.Helper()

	item := plainItem(t, label)
	item.Type = models.ChatbotAPIItemOutput
	return item
}

func selectionItem(t *testing.T, text models.ChatbotLanguageValues, entries []map[string]interface{}) models.ChatbotAPIItem {
	t.Helper()

	data, err := json.Marshal(map[string]interface{}{
		"text":      text,
		"selection": entries,
	})
	if err != nil {
		t.Fatalf("marshaling selection: %v", err)
	}

	return models.ChatbotAPIItem{
		Data: string(data),
		Kind: models.ChatbotAPIItemKindOutput,
		Type: models.ChatbotAPIItemSelection,
	}
}

func TestShouldSendAnswerGates(t *testing.T) {
	tests := []struct {
		name     string
		answer   *models.ChatbotAnswer
		expected bool
	}{
		{
			name:     "nil answer",
			answer:   nil,
			expected: false,
		},
		{
			name:     "unchanged answer never sends",
			answer:   &models.ChatbotAnswer{Value: "x", PreviousSentValue: "y", HasChanged: false},
			expected: false,
		},
		{
			name:     "empty value never sends",
			answer:   &models.ChatbotAnswer{Value: "", PreviousSentValue: "y", HasChanged: true},
			expected: false,
		},
		{
			name:     "resubmission of the sent value never sends",
			answer:   &models.ChatbotAnswer{Value: "x", PreviousSentValue: "x", HasChanged: true},
			expected: false,
		},
		{
			name:     "changed new value sends",
			answer:   &models.ChatbotAnswer{Value: "x", PreviousSentValue: "", HasChanged: true},
			expected: true,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := ShouldSendAnswer(test.answer); got != test.expected {
				t.Errorf("ShouldSendAnswer() = %v, expected %v", got, test.expected)
			}
		})
	}
}

func TestLocalize(t *testing.T) {
	values := models.ChatbotLanguageValues{"en": "hello", "de": "hallo"}

	if got := Localize(values, "de"); got != "hallo" {
		t.Errorf("Localize(de) = %q, expected %q", got, "hallo")
	}

	if got := Localize(values, "DE"); got != "hallo" {
		t.Errorf("Localize(DE) = %q, expected %q", got, "hallo")
	}

	if got := Localize(values, "fr"); got != "hello" {
		t.Errorf("Localize(fr) = %q, expected fallback %q", got, "hello")
	}

	if got := Localize(nil, "en"); got != "" {
		t.Errorf("Localize(nil) = %q, expected empty", got)
	}
}

func TestFeedQuestionDateFormatExtraction(t *testing.T) {
	question := &models.ChatbotAPIQuestion{
		Items:     []models.ChatbotAPIItem{plainItem(t, models.ChatbotLanguageValues{"en": "Enter your birthday (DD.MM.YYYY)"})},
		ChatState: models.ChatbotAPIStateContinue,
	}

	pages, finished, help, autoAnswer := FeedQuestion(question, historyPage(), "en")
	if finished || help != "" || autoAnswer != nil {
		t.Fatalf("unexpected side results: finished=%v help=%q autoAnswer=%v", finished, help, autoAnswer)
	}

	if len(pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(pages))
	}

	page := pages[1]
	if page.Answer == nil {
		t.Fatal("expected an answer on the prompt page")
	}

	if page.Answer.Element != models.ChatbotElementDate {
		t.Errorf("element = %s, expected %s", page.Answer.Element, models.ChatbotElementDate)
	}

	if page.Answer.DateFormat != "DD.MM.YYYY" {
		t.Errorf("dateFormat = %q, expected %q", page.Answer.DateFormat, "DD.MM.YYYY")
	}

	if got := Localize(page.Header, "en"); got != "Enter your birthday" {
		t.Errorf("header = %q, expected stripped %q", got, "Enter your birthday")
	}

	if page.Answer.HasChanged || page.Answer.Value != "" || page.Answer.PreviousSentValue != "" || page.Answer.Timestamp != 0 {
		t.Error("fresh answer must start blank and clean")
	}
}

func TestFeedQuestionIgnoresOtherParentheticals(t *testing.T) {
	labels := []string{
		"Amount (CHF)",
		"Your occupation (please describe it precisely)",
	}

	for _, label := range labels {
		question := &models.ChatbotAPIQuestion{
			Items:     []models.ChatbotAPIItem{plainItem(t, models.ChatbotLanguageValues{"en": label})},
			ChatState: models.ChatbotAPIStateContinue,
		}

		pages, _, _, _ := FeedQuestion(question, historyPage(), "en")
		answer := pages[len(pages)-1].Answer
		if answer.Element != models.ChatbotElementTextbox {
			t.Errorf("label %q: element = %s, expected %s", label, answer.Element, models.ChatbotElementTextbox)
		}

		if answer.DateFormat != "" {
			t.Errorf("label %q: unexpected dateFormat %q", label, answer.DateFormat)
		}
	}
}

func TestFeedQuestionStripsSelectionPrefix(t *testing.T) {
	question := &models.ChatbotAPIQuestion{
		Items: []models.ChatbotAPIItem{selectionItem(t,
			models.ChatbotLanguageValues{"en": "Pick one"},
			[]map[string]interface{}{
				{"key": "A", "text": map[string]string{"en": "Option A"}, "prefix": "1."},
				{"key": "B", "text": map[string]string{"en": "Option B"}, "prefix": "2."},
			},
		)},
		ChatState: models.ChatbotAPIStateContinue,
	}

	pages, _, _, _ := FeedQuestion(question, historyPage(), "en")
	answer := pages[len(pages)-1].Answer
	if answer == nil || len(answer.Data) != 2 {
		t.Fatalf("expected 2 options, got %+v", answer)
	}

	for _, option := range answer.Data {
		if _, ok := option.APIElement["prefix"]; ok {
			t.Errorf("option %s: prefix must be stripped from the echoed element", option.Key)
		}

		if option.APIElement.Key() != option.Key {
			t.Errorf("option %s: key not preserved in element", option.Key)
		}

		if option.IsSelected {
			t.Errorf("option %s: fresh option must not be selected", option.Key)
		}
	}

	if answer.Data[0].Key != "A" || Localize(answer.Data[0].Label, "en") != "Option A" {
		t.Errorf("option key/label not preserved: %+v", answer.Data[0])
	}
}

func TestFeedQuestionFinishAttachesNoAnswer(t *testing.T) {
	question := &models.ChatbotAPIQuestion{
		Items: []models.ChatbotAPIItem{
			outputItem(t, models.ChatbotLanguageValues{"en": "Thank you!"}),
			outputItem(t, models.ChatbotLanguageValues{"en": "You are done."}),
		},
		ChatState: models.ChatbotAPIStateFinish,
	}

	pages, finished, _, _ := FeedQuestion(question, historyPage(), "en")
	if !finished {
		t.Fatal("expected shouldFinish on DONE state")
	}

	page := pages[len(pages)-1]
	if page.Answer != nil {
		t.Error("finishing turn must not synthesize an answer")
	}

	if got := Localize(page.Header, "en"); got != "Thank you!" {
		t.Errorf("header = %q", got)
	}

	if got := Localize(page.Body, "en"); got != "You are done." {
		t.Errorf("body = %q", got)
	}
}

func TestFeedQuestionHelpSideChannel(t *testing.T) {
	item := plainItem(t, models.ChatbotLanguageValues{"en": "This question asks for your residence."})
	item.Type = models.ChatbotAPIItemHelp

	question := &models.ChatbotAPIQuestion{
		Items:     []models.ChatbotAPIItem{item},
		ChatState: models.ChatbotAPIStateHelp,
	}

	previous := historyPage()
	pages, finished, help, _ := FeedQuestion(question, previous, "en")
	if finished {
		t.Error("help turn must not finish")
	}

	if len(pages) != len(previous) {
		t.Errorf("help turn must not emit pages, got %d", len(pages)-len(previous))
	}

	if help != "This question asks for your residence." {
		t.Errorf("help = %q", help)
	}
}

func TestFeedQuestionSplitsMultiLineHeader(t *testing.T) {
	tests := []struct {
		name   string
		label  string
		header string
		body   string
	}{
		{
			name:   "newline separated",
			label:  "Line1\nLine2\nLine3",
			header: "Line1",
			body:   "Line2\nLine3",
		},
		{
			name:   "br separated",
			label:  "Line1<br>Line2",
			header: "Line1",
			body:   "Line2",
		},
		{
			name:   "single line stays put",
			label:  "Line1",
			header: "Line1",
			body:   "",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			question := &models.ChatbotAPIQuestion{
				Items:     []models.ChatbotAPIItem{plainItem(t, models.ChatbotLanguageValues{"en": test.label})},
				ChatState: models.ChatbotAPIStateContinue,
			}

			pages, _, _, _ := FeedQuestion(question, historyPage(), "en")
			page := pages[len(pages)-1]

			if got := Localize(page.Header, "en"); got != test.header {
				t.Errorf("header = %q, expected %q", got, test.header)
			}

			if got := Localize(page.Body, "en"); got != test.body {
				t.Errorf("body = %q, expected %q", got, test.body)
			}
		})
	}
}

func TestFeedQuestionMalformedItemYieldsEmptyLabel(t *testing.T) {
	question := &models.ChatbotAPIQuestion{
		Items: []models.ChatbotAPIItem{
			{Data: "{not json", Type: models.ChatbotAPIItemPlain},
		},
		ChatState: models.ChatbotAPIStateContinue,
	}

	pages, _, _, _ := FeedQuestion(question, historyPage(), "en")
	if len(pages) != 2 {
		t.Fatalf("malformed item must not abort the batch, got %d pages", len(pages))
	}

	if got := Localize(pages[1].Header, "en"); got != "" {
		t.Errorf("header = %q, expected empty placeholder", got)
	}
}

func TestFeedQuestionUnknownItemTypeDefaults(t *testing.T) {
	question := &models.ChatbotAPIQuestion{
		Items: []models.ChatbotAPIItem{
			{Data: "whatever", Type: "query:text:unknown"},
		},
		ChatState: models.ChatbotAPIStateContinue,
	}

	pages, _, _, _ := FeedQuestion(question, historyPage(), "en")
	answer := pages[len(pages)-1].Answer
	if answer == nil {
		t.Fatal("expected a default answer")
	}

	if answer.Element != models.ChatbotElementText {
		t.Errorf("element = %s, expected %s", answer.Element, models.ChatbotElementText)
	}

	if answer.APIType != models.ChatbotAPIItemPlain {
		t.Errorf("apiType = %s, expected %s", answer.APIType, models.ChatbotAPIItemPlain)
	}

	if len(answer.Data) != 0 {
		t.Errorf("expected no options, got %d", len(answer.Data))
	}
}

func TestFeedQuestionFiltersAnswerEchoes(t *testing.T) {
	question := &models.ChatbotAPIQuestion{
		Items: []models.ChatbotAPIItem{
			{Data: `"John"`, Kind: models.ChatbotAPIItemKindInput, Type: models.ChatbotAPIItemAnswerPlain},
			plainItem(t, models.ChatbotLanguageValues{"en": "Next question"}),
		},
		ChatState: models.ChatbotAPIStateContinue,
	}

	pages, _, _, _ := FeedQuestion(question, historyPage(), "en")
	if len(pages) != 2 {
		t.Fatalf("expected exactly one new page, got %d", len(pages)-1)
	}

	if got := Localize(pages[1].Header, "en"); got != "Next question" {
		t.Errorf("header = %q", got)
	}
}

func TestUpdateAnswerMarksDirtyAndSelects(t *testing.T) {
	entry := models.ChatbotAPISelectionEntry{"key": "A", "text": map[string]interface{}{"en": "Option A"}}
	answer := &models.ChatbotAnswer{
		Element: models.ChatbotElementList,
		Data: []*models.ChatbotAnswerData{
			{Key: "A", APIElement: entry},
			{Key: "B", APIElement: models.ChatbotAPISelectionEntry{"key": "B"}},
		},
	}

	UpdateAnswer(answer, SelectionValue(answer.Data[0]))

	if !answer.HasChanged {
		t.Error("edit must mark the answer dirty")
	}

	if !answer.Data[0].IsSelected || answer.Data[1].IsSelected {
		t.Errorf("selection flags not reconciled: %v %v", answer.Data[0].IsSelected, answer.Data[1].IsSelected)
	}
}

func TestCreateAnswerEncoding(t *testing.T) {
	plain := &models.ChatbotAnswer{APIType: models.ChatbotAPIItemAnswerPlain, Value: "John"}
	payload := CreateAnswer(plain)
	if len(payload.Items) != 1 {
		t.Fatalf("expected one item, got %d", len(payload.Items))
	}

	if payload.Items[0].Data != `"John"` {
		t.Errorf("plain data = %s, expected quoted string", payload.Items[0].Data)
	}

	if payload.Items[0].Type != models.ChatbotAPIItemAnswerPlain {
		t.Errorf("type = %s", payload.Items[0].Type)
	}

	selection := &models.ChatbotAnswer{APIType: models.ChatbotAPIItemAnswerSelection, Value: `{"key":"A"}`}
	payload = CreateAnswer(selection)
	if payload.Items[0].Data != `{"key":"A"}` {
		t.Errorf("selection data = %s, expected pass-through", payload.Items[0].Data)
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshaling payload: %v", err)
	}

	if !strings.Contains(string(encoded), `"attributes":null`) {
		t.Errorf("payload = %s, expected null attributes", encoded)
	}
}

func TestIsEdit(t *testing.T) {
	if IsEdit(&models.ChatbotAnswer{}) {
		t.Error("never-sent answer is not an edit")
	}

	if !IsEdit(&models.ChatbotAnswer{Timestamp: 42}) {
		t.Error("sent answer must report an edit")
	}
}
