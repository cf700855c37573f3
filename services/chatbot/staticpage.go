package chatbot

import (
	"embed"
	"encoding/json"
	"strings"

	"github.com/DFXswiss/payment-sub000/models"
)

// Static pages replace specific compliance-confirmation turns, which the
// remote engine renders as free-form localized text, with the fixed,
// legally-reviewed wording bundled with the client. Only the displayed text
// is exchanged; the submission payload of the confirm option stays untouched.

type (
	// staticPageID identifies one hand-authored page in the bundle.
	staticPageID string

	// staticPageText is the bundle entry of one page in one language.
	staticPageText struct {
		Header      string `json:"header"`
		Body        string `json:"body"`
		Answer      string `json:"answer"`
		SupportLink bool   `json:"supportLink"`
	}
)

const (
	staticPageStart             staticPageID = "START"
	staticPageAllAnswersCorrect staticPageID = "ALL_ANSWERS_CORRECT"
	staticPageInformOfChange    staticPageID = "INFORM_OF_CHANGE_CONFIRMATION"
)

const (
	confirmationYes = "YES"
	confirmationNo  = "NO"
)

//go:embed i18n/*.json
var staticPageBundle embed.FS

// staticPages maps a language to the bundled pages of that language. New
// languages and pages are added by dropping a JSON file into i18n/, without
// touching the transformation logic.
var staticPages = mustLoadStaticPages()

func mustLoadStaticPages() map[string]map[staticPageID]staticPageText {
	entries, err := staticPageBundle.ReadDir("i18n")
	if err != nil {
		panic("chatbot: reading static page bundle: " + err.Error())
	}

	pages := map[string]map[staticPageID]staticPageText{}
	for _, entry := range entries {
		language := strings.TrimSuffix(entry.Name(), ".json")

		data, err := staticPageBundle.ReadFile("i18n/" + entry.Name())
		if err != nil {
			panic("chatbot: reading static page bundle: " + err.Error())
		}

		texts := map[staticPageID]staticPageText{}
		if err := json.Unmarshal(data, &texts); err != nil {
			panic("chatbot: parsing static page bundle " + entry.Name() + ": " + err.Error())
		}

		pages[language] = texts
	}

	return pages
}

// shouldExchangeWithStaticPage decides whether the page about to be assembled
// is replaced by a bundled page. Rules are evaluated in order, first match
// wins:
//   - no prior pages exist: the START page
//   - a single-option answer with confirmsForm=NO, informsOfChanges=NO:
//     the ALL_ANSWERS_CORRECT page
//   - a single-option answer with confirmsForm=YES, informsOfChanges=NO:
//     the INFORM_OF_CHANGE_CONFIRMATION page
func shouldExchangeWithStaticPage(previousPages []models.ChatbotPage, confirmations *models.ChatbotAPIConfirmations, answer *models.ChatbotAnswer) (staticPageID, bool) {
	if len(previousPages) == 0 {
		return staticPageStart, true
	}

	if answer == nil || len(answer.Data) != 1 || confirmations == nil {
		return "", false
	}

	switch {
	case confirmations.ConfirmsForm == confirmationNo && confirmations.InformsOfChanges == confirmationNo:
		return staticPageAllAnswersCorrect, true
	case confirmations.ConfirmsForm == confirmationYes && confirmations.InformsOfChanges == confirmationNo:
		return staticPageInformOfChange, true
	}

	return "", false
}

// createStaticPage builds the page from the bundle. When the original answer
// offers exactly one option, its displayed label is overwritten with the
// bundled confirmation string while its key and protocol element stay as
// received.
func createStaticPage(id staticPageID, answer *models.ChatbotAnswer) models.ChatbotPage {
	header := models.ChatbotLanguageValues{}
	body := models.ChatbotLanguageValues{}
	confirmation := models.ChatbotLanguageValues{}
	supportLink := false

	for language, texts := range staticPages {
		text, ok := texts[id]
		if !ok {
			continue
		}

		if text.Header != "" {
			header[language] = text.Header
		}

		if text.Body != "" {
			body[language] = text.Body
		}

		if text.Answer != "" {
			confirmation[language] = text.Answer
		}

		if language == fallbackLanguage {
			supportLink = text.SupportLink
		}
	}

	if len(body) == 0 {
		body = nil
	}

	if answer != nil && len(answer.Data) == 1 && len(confirmation) > 0 {
		answer.Data[0].Label = confirmation
	}

	return models.ChatbotPage{
		Header:             header,
		Body:               body,
		BodyHasSupportLink: supportLink,
		Answer:             answer,
	}
}
