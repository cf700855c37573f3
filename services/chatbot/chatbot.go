// Package chatbot translates the conversational KYC protocol of the remote
// verification engine into a locally navigable, replayable, paginated
// interview with typed answer widgets.
package chatbot

import (
	"encoding/json"
	"strings"

	"github.com/DFXswiss/payment-sub000/models"
	log "github.com/sirupsen/logrus"
)

var (
	// logger is a global logger of the package
	logger = log.WithField("package", "chatbot")
)

const (
	// fallbackLanguage is the language every protocol-sourced text bundle
	// is guaranteed to contain.
	fallbackLanguage = "en"

	// dateFormatPattern is the reference date pattern embedded in question
	// labels. Only a parenthesized span of exactly this length is treated
	// as a date format.
	dateFormatPattern = "DD.MM.YYYY"

	// answerItemPrefix marks protocol items echoing a submitted answer.
	answerItemPrefix = "query:answer"
)

type (
	// listSelection is the payload of a dropdown/selection item.
	listSelection struct {
		Text      models.ChatbotLanguageValues      `json:"text"`
		Selection []models.ChatbotAPISelectionEntry `json:"selection"`
	}
)

// Localize resolves the translation of the given values for the given
// language. It falls back to English when the language is missing, and to the
// empty string when the values carry no usable entry at all.
func Localize(values models.ChatbotLanguageValues, language string) string {
	if len(values) == 0 {
		return ""
	}

	if value, ok := values[strings.ToLower(language)]; ok && value != "" {
		return value
	}

	return values[fallbackLanguage]
}

// UpdateAnswer records a local edit of the answer value and marks the answer
// dirty. For list answers the selection flags are reconciled with the new
// value.
func UpdateAnswer(answer *models.ChatbotAnswer, value string) {
	if answer == nil {
		return
	}

	answer.Value = value
	answer.HasChanged = true

	for _, option := range answer.Data {
		option.IsSelected = SelectionValue(option) == value
	}
}

// ShouldSendAnswer is the sole gate against duplicate and empty submissions.
// It returns false whenever the answer is unchanged, empty, or equal to the
// value last transmitted to the remote session.
func ShouldSendAnswer(answer *models.ChatbotAnswer) bool {
	if answer == nil || !answer.HasChanged {
		return false
	}

	if answer.Value == "" {
		return false
	}

	return answer.Value != answer.PreviousSentValue
}

// IsEdit reports whether the answer was already transmitted once, meaning a
// new submission re-answers a completed turn.
func IsEdit(answer *models.ChatbotAnswer) bool {
	return answer != nil && answer.Timestamp > 0
}

// CreateAnswer builds the outbound protocol payload for the given answer.
// Selection values already hold the JSON-encoded protocol element and are
// passed through verbatim; plain values are JSON-encoded.
func CreateAnswer(answer *models.ChatbotAnswer) *models.ChatbotAPIAnswer {
	data := answer.Value
	if !isEncodedJSON(data) {
		encoded, _ := json.Marshal(data)
		data = string(encoded)
	}

	return &models.ChatbotAPIAnswer{
		Items: []models.ChatbotAPIAnswerItem{{
			Type: answer.APIType,
			Data: data,
		}},
	}
}

// SelectionValue returns the answer value representing the given option: the
// JSON encoding of its protocol element.
func SelectionValue(option *models.ChatbotAnswerData) string {
	encoded, err := json.Marshal(option.APIElement)
	if err != nil {
		return ""
	}

	return string(encoded)
}

// FeedQuestion consumes one protocol turn and appends the resulting pages to
// the accumulated page list. The previous pages are never mutated; the
// returned slice is a fresh copy with controlled appends.
//
// It returns the updated page list, whether the conversation is finished, an
// optional help text (side-channel, no page is produced for it) and an
// optional auto-answer the caller must resubmit immediately instead of
// rendering the popped page.
func FeedQuestion(question *models.ChatbotAPIQuestion, previousPages []models.ChatbotPage, language string) ([]models.ChatbotPage, bool, string, *models.ChatbotAnswer) {
	pages := append([]models.ChatbotPage{}, previousPages...)
	if question == nil {
		return pages, false, "", nil
	}

	confirmations := question.Confirmations()

	// Answer echoes carry no new conversational content.
	items := []models.ChatbotAPIItem{}
	for _, item := range question.Items {
		if strings.HasPrefix(string(item.Type), answerItemPrefix) {
			continue
		}

		items = append(items, item)
	}

	questions := make([]models.ChatbotQuestion, 0, len(items))
	for index := range items {
		questions = append(questions, parseQuestion(&items[index], index))
	}

	shouldFinish := question.ChatState == models.ChatbotAPIStateFinish

	// The trailing parsed question becomes the prompt of the next answer;
	// a finishing turn keeps all questions as plain content.
	var prompt *models.ChatbotQuestion
	if !shouldFinish && len(questions) > 0 {
		prompt = &questions[len(questions)-1]
		questions = questions[:len(questions)-1]
	}

	if question.ChatState == models.ChatbotAPIStateHelp {
		help := ""
		if prompt != nil {
			help = Localize(prompt.Label, language)
		}

		return pages, false, help, nil
	}

	if len(questions) > 0 {
		var body models.ChatbotLanguageValues
		if len(questions) > 1 {
			body = joinLabels(questions[1:])
		}

		pages = append(pages, createPage(pages, confirmations, questions[0].Label, body, nil))
	}

	if prompt != nil && len(items) > 0 {
		answer := answerBasedOn(&items[len(items)-1], prompt.Label, language)

		header := prompt.Label
		if answer.DateFormat != "" {
			header = stripDateFormat(header)
		}

		pages = append(pages, createPage(pages, confirmations, header, nil, answer))
	}

	var autoAnswer *models.ChatbotAnswer
	if len(pages) > len(previousPages) {
		if rule, ok := shouldAutoAnswer(pages); ok {
			if answer := createAutoAnswer(rule, &pages[len(pages)-1]); answer != nil && answer.Value != "" {
				pages = pages[:len(pages)-1]
				autoAnswer = answer
			}
		}
	}

	return pages, shouldFinish, "", autoAnswer
}

// parseQuestion converts one raw protocol item into a question. It never
// mutates the item and has no side effects beyond logging.
func parseQuestion(item *models.ChatbotAPIItem, index int) models.ChatbotQuestion {
	question := models.ChatbotQuestion{Key: index}

	switch item.Type {
	case models.ChatbotAPIItemHelp, models.ChatbotAPIItemOutput, models.ChatbotAPIItemPlain:
		question.Label = parseLanguageValues(item.Data)
	case models.ChatbotAPIItemDropdown, models.ChatbotAPIItemSelection:
		selection, err := parseListSelection(item.Data)
		if err != nil {
			logger.WithError(err).WithField("type", item.Type).Warn("Replacing malformed selection item with an empty label")
			question.Label = models.ChatbotLanguageValues{}
			break
		}

		question.Label = selection.Text
	default:
		question.Label = models.ChatbotLanguageValues{fallbackLanguage: item.Data}
	}

	return question
}

// answerBasedOn synthesizes the answer-capture descriptor for the trailing
// unanswered item of a turn.
func answerBasedOn(item *models.ChatbotAPIItem, label models.ChatbotLanguageValues, language string) *models.ChatbotAnswer {
	answer := &models.ChatbotAnswer{
		APIType: models.ChatbotAPIItemPlain,
		Element: models.ChatbotElementText,
		Data:    []*models.ChatbotAnswerData{},
	}

	switch item.Type {
	case models.ChatbotAPIItemPlain:
		answer.APIType = models.ChatbotAPIItemAnswerPlain
		answer.Element = models.ChatbotElementTextbox

		if format, ok := extractDateFormat(Localize(label, language)); ok {
			answer.Element = models.ChatbotElementDate
			answer.DateFormat = format
		}
	case models.ChatbotAPIItemDropdown, models.ChatbotAPIItemSelection:
		answer.APIType = models.ChatbotAPIItemAnswerSelection
		answer.Element = models.ChatbotElementList

		selection, err := parseListSelection(item.Data)
		if err != nil {
			logger.WithError(err).Warn("Synthesizing list answer without options from malformed selection item")
			break
		}

		for _, entry := range selection.Selection {
			answer.Data = append(answer.Data, &models.ChatbotAnswerData{
				Key:        entry.Key(),
				Label:      entry.Text(),
				IsSelected: false,
				APIElement: entry.WithoutPrefix(),
			})
		}
	}

	return answer
}

// createPage assembles one interview page. The page list built so far is
// read-only context for the static page substitution; the header is split
// into header and body at the first line break when no body is given.
func createPage(previousPages []models.ChatbotPage, confirmations *models.ChatbotAPIConfirmations, header models.ChatbotLanguageValues, body models.ChatbotLanguageValues, answer *models.ChatbotAnswer) models.ChatbotPage {
	if id, ok := shouldExchangeWithStaticPage(previousPages, confirmations, answer); ok {
		return createStaticPage(id, answer)
	}

	if body == nil {
		header, body = splitHeader(header)
	}

	return models.ChatbotPage{
		Header: header,
		Body:   body,
		Answer: answer,
	}
}

// splitHeader splits a multi-line header into its first line and the
// remainder, per language. A header without line break passes through
// unchanged with no forced body.
func splitHeader(header models.ChatbotLanguageValues) (models.ChatbotLanguageValues, models.ChatbotLanguageValues) {
	first := models.ChatbotLanguageValues{}
	rest := models.ChatbotLanguageValues{}

	for language, text := range header {
		lines := strings.Split(strings.ReplaceAll(text, "<br>", "\n"), "\n")
		first[language] = lines[0]
		if len(lines) > 1 {
			rest[language] = strings.Join(lines[1:], "\n")
		}
	}

	if len(rest) == 0 {
		return header, nil
	}

	return first, rest
}

// joinLabels joins the labels of grouped secondary questions into one body,
// per language.
func joinLabels(questions []models.ChatbotQuestion) models.ChatbotLanguageValues {
	joined := models.ChatbotLanguageValues{}

	for _, question := range questions {
		for language, text := range question.Label {
			if current := joined[language]; current != "" {
				joined[language] = current + "\n" + text
			} else {
				joined[language] = text
			}
		}
	}

	if len(joined) == 0 {
		return nil
	}

	return joined
}

// extractDateFormat searches the text for a parenthesized date format token.
// Only a span whose interior is exactly as long as the reference pattern
// qualifies.
func extractDateFormat(text string) (string, bool) {
	open := strings.Index(text, "(")
	if open < 0 {
		return "", false
	}

	interior := strings.Index(text[open+1:], ")")
	if interior != len(dateFormatPattern) {
		return "", false
	}

	return text[open+1 : open+1+interior], true
}

// stripDateFormat removes the parenthesized date format token from every
// translation of the label.
func stripDateFormat(label models.ChatbotLanguageValues) models.ChatbotLanguageValues {
	stripped := models.ChatbotLanguageValues{}

	for language, text := range label {
		if open := strings.Index(text, "("); open >= 0 {
			if end := strings.Index(text[open:], ")"); end >= 0 {
				text = strings.TrimSpace(text[:open] + text[open+end+1:])
			}
		}

		stripped[language] = text
	}

	return stripped
}

// parseLanguageValues parses a JSON-encoded language map. A malformed payload
// yields an empty label instead of aborting the page assembly.
func parseLanguageValues(data string) models.ChatbotLanguageValues {
	values := models.ChatbotLanguageValues{}
	if err := json.Unmarshal([]byte(data), &values); err != nil {
		logger.WithError(err).Warn("Replacing malformed protocol item payload with an empty label")
		return models.ChatbotLanguageValues{}
	}

	return values
}

// parseListSelection parses a JSON-encoded dropdown/selection payload.
func parseListSelection(data string) (*listSelection, error) {
	selection := &listSelection{}
	if err := json.Unmarshal([]byte(data), selection); err != nil {
		return nil, err
	}

	return selection, nil
}

// isEncodedJSON reports whether the value already is a JSON-encoded structure
// and must not be encoded a second time.
func isEncodedJSON(value string) bool {
	trimmed := strings.TrimSpace(value)
	if !strings.HasPrefix(trimmed, "{") && !strings.HasPrefix(trimmed, "[") {
		return false
	}

	return json.Valid([]byte(trimmed))
}
