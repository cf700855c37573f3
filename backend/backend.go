// Package backend drives the conversational KYC interview: it opens the
// remote chatbot session, replays the page history after SMS authentication
// and runs the answer submission loop against the verification engine.
package backend

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/DFXswiss/payment-sub000/capsule"
	"github.com/DFXswiss/payment-sub000/models"
	"github.com/DFXswiss/payment-sub000/services/api"
	"github.com/DFXswiss/payment-sub000/services/auth"
	"github.com/DFXswiss/payment-sub000/services/chatbot"
	"github.com/DFXswiss/payment-sub000/services/notification"
	"github.com/DFXswiss/payment-sub000/services/settings"
	"github.com/google/uuid"
	"github.com/juju/errors"
	log "github.com/sirupsen/logrus"
	yaml "gopkg.in/yaml.v2"
)

type (
	// Backend is the conversation driver. It owns the page list and the
	// embedded answers for the lifetime of one chatbot session; the
	// protocol is strictly request/response, so at most one submission is
	// in flight at any time.
	Backend struct {
		// config is the structured backend configuration.
		config *Config

		// api is the DFX backend client.
		api *api.API

		// session is the remote chatbot session, nil until opened.
		session *chatbot.Session

		// auth holds the credentials of the signed-in user.
		auth *auth.Service

		// settings holds the interview language.
		settings *settings.Service

		// notifications is the user-facing notification bus.
		notifications *notification.Service

		// capsuleInChan receives answers and commands from the frontend.
		capsuleInChan <-chan []byte

		// capsuleOutChan sends pages and prompts to the frontend.
		capsuleOutChan chan<- []byte

		// pages is the interview history built so far. It is read-only
		// except for controlled appends through the page assembler.
		pages []models.ChatbotPage

		// pageIndex is the page currently presented to the user.
		pageIndex int

		// lastHelp is the most recent help text of the engine.
		lastHelp string

		// finished is set once the engine reports the interview done.
		finished bool
	}

	// Config is the structured backend configuration.
	Config struct {
		// API is the DFX backend client configuration.
		API api.Config `yaml:"api"`

		// Chatbot optionally points directly at a remote session. When
		// empty, the session coordinates are fetched through the KYC
		// endpoint of the DFX backend.
		Chatbot chatbot.SessionConfig `yaml:"chatbot"`

		// Address and Signature are the sign-in credentials.
		Address   string `yaml:"address"`
		Signature string `yaml:"signature"`

		// Language is the preferred interview language.
		Language string `yaml:"language"`
	}
)

const (
	// configFile is the name of the environment variable
	// containing the configuration file path.
	configFile = "BACKEND_CONFIG_FILE"

	// defaultConfigFilePath is the default path of the configuration file
	// when the environment variable has not been initialized.
	defaultConfigFilePath = "backend/config.yaml"
)

var (
	// logger is a global logger of the package
	logger = log.WithField("package", "backend")
)

// New initializes the conversation driver. The remote session is opened
// lazily in Start so that construction stays free of network calls.
func New(authService *auth.Service, settingsService *settings.Service, notificationService *notification.Service, capsuleInChan <-chan []byte, capsuleOutChan chan<- []byte) (*Backend, error) {
	config, err := loadConfig()
	if err != nil {
		return nil, errors.Annotate(err, "initializing backend")
	}

	client, err := api.New(&config.API, authService)
	if err != nil {
		return nil, errors.Annotate(err, "initializing backend")
	}

	if config.Language != "" {
		settingsService.SetLanguage(config.Language)
	}

	return &Backend{
		config:         config,
		api:            client,
		auth:           authService,
		settings:       settingsService,
		notifications:  notificationService,
		capsuleInChan:  capsuleInChan,
		capsuleOutChan: capsuleOutChan,
		pages:          []models.ChatbotPage{},
	}, nil
}

// Start opens the remote session and runs the capsule listening loop until
// the inbound channel is closed.
func (b *Backend) Start(wg *sync.WaitGroup) {
	defer wg.Done()
	localLogger := logger.WithField("action", "listening")

	ctx := context.Background()
	if err := b.openSession(ctx); err != nil {
		localLogger.WithError(err).Error("Error occured while opening the chatbot session")
		b.notifications.Publish(notification.LevelError, "Could not open the verification session. Please try again later.")
	}

	localLogger.Info("Starting listening loop")
	for data := range b.capsuleInChan {
		received, err := b.unmarshalCapsule(data)
		if err != nil {
			localLogger.WithError(err).Error("Error occured while receiving a new capsule sent by frontend")
			continue
		}

		localLogger.Debugf("Capsule received from %s: %s", received.Provider, received.Kind)
		if err := b.handleCapsule(ctx, received); err != nil {
			localLogger.WithError(err).Error("Error occured while processing a capsule")
			b.notifications.Publish(notification.LevelError, "The verification service reported an error. Please retry.")
		}
	}

	localLogger.Info("Closing backend")
}

// openSession connects to the verification engine. When the session is not
// yet authenticated, an SMS code is requested and the frontend is asked for
// it; the interview continues once the code capsule arrives.
func (b *Backend) openSession(ctx context.Context) error {
	sessionConfig := b.config.Chatbot
	if sessionConfig.ID == "" {
		if err := b.api.SignIn(ctx, b.config.Address, b.config.Signature); err != nil {
			return errors.Annotate(err, "opening session")
		}

		result, err := b.api.RequestKyc(ctx)
		if err != nil {
			return errors.Annotate(err, "opening session")
		}

		if result.ChatbotExport == nil {
			return errors.NotProvisionedf("chatbot session (KYC status %s)", result.Status)
		}

		sessionConfig = chatbot.SessionConfig{
			URL:     result.ChatbotExport.URL,
			ID:      result.ChatbotExport.ID,
			Token:   result.ChatbotExport.Token,
			Timeout: b.config.Chatbot.Timeout,
		}
	}

	session, err := chatbot.NewSession(&sessionConfig)
	if err != nil {
		return errors.Annotate(err, "opening session")
	}

	b.session = session

	status, err := session.Status(ctx)
	if err != nil {
		return errors.Annotate(err, "opening session")
	}

	if status == chatbot.SessionStatusCompleted {
		return b.finish()
	}

	if status == chatbot.SessionStatusAuthenticated {
		question, err := session.NextStep(ctx, nil)
		if err != nil {
			return errors.Annotate(err, "opening session")
		}

		return b.feed(question)
	}

	return b.challenge(ctx)
}

// challenge requests a fresh SMS code and asks the frontend for it.
func (b *Backend) challenge(ctx context.Context) error {
	info, err := b.session.AuthenticationInfo(ctx)
	if err != nil {
		return errors.Annotate(err, "requesting SMS challenge")
	}

	if err := b.session.RequestSMSCode(ctx); err != nil {
		return errors.Annotate(err, "requesting SMS challenge")
	}

	return b.send(&capsule.Capsule{
		ID:      uuid.New(),
		Kind:    capsule.KindSMSChallenge,
		Content: info.Target,
	})
}

// handleCapsule dispatches one frontend capsule.
func (b *Backend) handleCapsule(ctx context.Context, received *capsule.Capsule) error {
	switch received.Kind {
	case capsule.KindSMSCode:
		return b.authenticate(ctx, received.Content)
	case capsule.KindAnswer:
		if b.finished {
			b.notifications.Publish(notification.LevelInfo, "The interview is already complete.")
			return nil
		}

		return b.answer(ctx, received.Content)
	case capsule.KindCommand:
		return b.command(ctx, received.Content)
	default:
		return errors.NotSupportedf("capsule kind %s", received.Kind)
	}
}

// authenticate submits the SMS code and rebuilds the interview history from
// the raw item log returned at session resume.
func (b *Backend) authenticate(ctx context.Context, code string) error {
	question, err := b.session.SubmitSMSCode(ctx, code)
	if err != nil {
		b.notifications.Publish(notification.LevelError, "The SMS code was not accepted.")
		return b.challenge(ctx)
	}

	b.pages = chatbot.RestorePages(question.Items, b.language())

	if question.ChatState == models.ChatbotAPIStateFinish {
		return b.finish()
	}

	if len(b.pages) == 0 {
		return b.feed(question)
	}

	b.pageIndex = len(b.pages) - 1
	return b.sendCurrentPage()
}

// answer applies the user input to the current page and submits it when the
// submission gate allows it.
func (b *Backend) answer(ctx context.Context, content string) error {
	page := b.currentPage()
	if page == nil || page.Answer == nil {
		b.notifications.Publish(notification.LevelInfo, "There is nothing to answer on this page.")
		return nil
	}

	answer := page.Answer

	value := content
	if answer.Element == models.ChatbotElementList {
		option := optionByKey(answer, content)
		if option == nil {
			b.notifications.Publish(notification.LevelError, "Unknown option: "+content)
			return b.sendCurrentPage()
		}

		value = chatbot.SelectionValue(option)
	}

	if chatbot.IsEdit(answer) {
		b.notifications.Publish(notification.LevelInfo, "Updating a previously submitted answer.")
	}

	chatbot.UpdateAnswer(answer, value)

	if !chatbot.ShouldSendAnswer(answer) {
		return b.sendCurrentPage()
	}

	return b.submit(ctx, answer)
}

// submit transmits the answer and feeds the returned turn through the page
// assembler. Auto-answers are resubmitted silently until a presentable page
// or the finish state arrives.
func (b *Backend) submit(ctx context.Context, answer *models.ChatbotAnswer) error {
	for answer != nil {
		if !chatbot.ShouldSendAnswer(answer) {
			break
		}

		question, err := b.session.NextStep(ctx, chatbot.CreateAnswer(answer))
		if err != nil {
			return errors.Annotate(err, "submitting answer")
		}

		answer.PreviousSentValue = answer.Value
		answer.Timestamp = time.Now().Unix()
		answer.HasChanged = false

		pages, finished, help, autoAnswer := chatbot.FeedQuestion(question, b.pages, b.language())
		b.pages = pages

		if help != "" {
			b.lastHelp = help
			return b.send(&capsule.Capsule{ID: uuid.New(), Kind: capsule.KindHelp, Content: help})
		}

		if finished {
			return b.finish()
		}

		answer = autoAnswer
	}

	b.pageIndex = len(b.pages) - 1
	return b.sendCurrentPage()
}

// command handles interview navigation.
func (b *Backend) command(ctx context.Context, name string) error {
	switch name {
	case capsule.CommandBack:
		if b.pageIndex > 0 {
			b.pageIndex--
		}

		return b.sendCurrentPage()
	case capsule.CommandNext:
		if b.pageIndex < len(b.pages)-1 {
			b.pageIndex++
		}

		return b.sendCurrentPage()
	case capsule.CommandSkip:
		if err := b.session.RequestSkip(ctx); err != nil {
			return errors.Annotate(err, "skipping question")
		}

		question, err := b.session.NextStep(ctx, nil)
		if err != nil {
			return errors.Annotate(err, "skipping question")
		}

		return b.feed(question)
	case capsule.CommandHelp:
		if b.lastHelp == "" {
			b.notifications.Publish(notification.LevelInfo, "No help is available for this question.")
			return nil
		}

		return b.send(&capsule.Capsule{ID: uuid.New(), Kind: capsule.KindHelp, Content: b.lastHelp})
	default:
		return errors.NotSupportedf("command %s", name)
	}
}

// feed runs one turn through the page assembler and presents the result.
func (b *Backend) feed(question *models.ChatbotAPIQuestion) error {
	pages, finished, help, autoAnswer := chatbot.FeedQuestion(question, b.pages, b.language())
	b.pages = pages

	if help != "" {
		b.lastHelp = help
		return b.send(&capsule.Capsule{ID: uuid.New(), Kind: capsule.KindHelp, Content: help})
	}

	if finished {
		return b.finish()
	}

	if autoAnswer != nil {
		return b.submit(context.Background(), autoAnswer)
	}

	b.pageIndex = len(b.pages) - 1
	return b.sendCurrentPage()
}

// finish marks the interview done and notifies the frontend.
func (b *Backend) finish() error {
	b.finished = true
	b.notifications.Publish(notification.LevelSuccess, "The verification interview is complete.")
	return b.send(&capsule.Capsule{ID: uuid.New(), Kind: capsule.KindFinished})
}

// currentPage returns the page at the navigation index, nil when the
// interview holds no pages yet.
func (b *Backend) currentPage() *models.ChatbotPage {
	if b.pageIndex < 0 || b.pageIndex >= len(b.pages) {
		return nil
	}

	return &b.pages[b.pageIndex]
}

// sendCurrentPage renders the page at the navigation index for the active
// language and sends it to the frontend.
func (b *Backend) sendCurrentPage() error {
	page := b.currentPage()
	if page == nil {
		return nil
	}

	return b.send(&capsule.Capsule{
		ID:   uuid.New(),
		Kind: capsule.KindPage,
		Page: b.pageView(page),
	})
}

// pageView localizes one page for the frontend.
func (b *Backend) pageView(page *models.ChatbotPage) *capsule.PageView {
	language := b.language()

	view := &capsule.PageView{
		Index:       b.pageIndex,
		Total:       len(b.pages),
		Header:      chatbot.Localize(page.Header, language),
		Body:        chatbot.Localize(page.Body, language),
		SupportLink: page.BodyHasSupportLink,
	}

	if answer := page.Answer; answer != nil {
		view.Element = answer.Element
		view.DateFormat = answer.DateFormat
		view.Value = answer.Value
		view.Answered = chatbot.IsEdit(answer)

		for _, option := range answer.Data {
			view.Options = append(view.Options, capsule.OptionView{
				Key:      option.Key,
				Label:    chatbot.Localize(option.Label, language),
				Selected: option.IsSelected,
			})
		}
	}

	return view
}

// send marshals a capsule and puts it on the frontend channel.
func (b *Backend) send(c *capsule.Capsule) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Annotate(err, "sending capsule to frontend")
	}

	b.capsuleOutChan <- data
	return nil
}

// unmarshalCapsule unmarshals a given slice of bytes to a structured capsule.
// It also verifies its validity.
func (b *Backend) unmarshalCapsule(data []byte) (*capsule.Capsule, error) {
	received := capsule.Capsule{}

	if err := yaml.Unmarshal(data, &received); err != nil {
		return nil, errors.Annotate(err, "unmarshaling capsule")
	}

	if received.Kind == "" {
		return nil, errors.NotAssignedf("capsule kind (capsule %s)", received.ID)
	}

	return &received, nil
}

// language returns the active interview language.
func (b *Backend) language() string {
	return b.settings.Language()
}

// optionByKey finds a selectable option by its protocol key.
func optionByKey(answer *models.ChatbotAnswer, key string) *models.ChatbotAnswerData {
	for _, option := range answer.Data {
		if option.Key == key {
			return option
		}
	}

	return nil
}

// loadConfig loads the backend configuration from the file defined in an
// environment variable.
func loadConfig() (*Config, error) {
	path := os.Getenv(configFile)
	if path == "" {
		path = defaultConfigFilePath
	}

	log.WithField("filename", path).Info("Parsing config file")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Annotate(err, "cannot read config file")
	}

	var config *Config
	if err = yaml.Unmarshal(data, &config); err != nil {
		return nil, errors.Annotate(err, "cannot unmarshal config file")
	}

	return config, nil
}
