// Package frontend manages the user-facing surfaces of the interview. It
// loads the activated providers, forwards their capsules to the conversation
// driver and dispatches pages, challenges and notifications back to them.
package frontend

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/DFXswiss/payment-sub000/capsule"
	"github.com/DFXswiss/payment-sub000/frontend/provider"
	"github.com/DFXswiss/payment-sub000/frontend/provider/console"
	"github.com/DFXswiss/payment-sub000/frontend/provider/telegram"
	"github.com/DFXswiss/payment-sub000/services/notification"
	"github.com/juju/errors"
	log "github.com/sirupsen/logrus"
	yaml "gopkg.in/yaml.v2"
)

type (
	// Frontend is the application frontend. It manages a list of activated
	// frontend providers such as the terminal and Telegram.
	Frontend struct {
		// activatedProviders is a slice containing all activated frontend providers.
		activatedProviders []provider.Provider

		// userInput is a only-read channel which receives local capsules sent by
		// the frontend providers.
		userInput chan *capsule.Capsule

		// capsuleInChan receives pages, challenges and help texts from the
		// conversation driver.
		capsuleInChan <-chan []byte

		// capsuleOutChan is a only-write channel which is used to send user
		// capsules to the conversation driver.
		capsuleOutChan chan<- []byte

		// notifications is the user-facing notification bus.
		notifications *notification.Service

		// wg is local wait group which handles all providers routines.
		wg *sync.WaitGroup
	}

	// ProviderConfig is a structured provider configuration.
	ProviderConfig struct {
		// Label is the provider label.
		Label string `json:"label" yaml:"label"`

		// IsActivated defines if the provider is activated or not.
		IsActivated bool `json:"isActivated" yaml:"isActivated"`

		// Token is the API provider token
		Token string `json:"token" yaml:"token"`

		// AuthorizedUsers is a slice containing all authorized users.
		// These users are authorized to use the frontend provider.
		AuthorizedUsers []*provider.User `json:"authorizedUsers" yaml:"authorizedUsers"`
	}
)

const (
	// configFile is the name of the environment variable
	// containing the configuration file path.
	configFile = "FRONTEND_CONFIG_FILE"

	// defaultConfigFilePath is the default path of the configuration file
	// when the environment variable has not been initialized.
	defaultConfigFilePath = "frontend/config.yaml"
)

var (
	// logger is a global logger of the package
	logger = log.WithField("package", "frontend")

	// providerCollection indexes all implemented providers.
	providerCollection map[string]provider.Provider = map[string]provider.Provider{
		"console":  &console.Console{},
		"telegram": &telegram.Telegram{},
	}
)

// New initializes a new frontend providers manager.
func New(notificationService *notification.Service, capsuleInChan <-chan []byte, capsuleOutChan chan<- []byte) (*Frontend, error) {
	providerConfig, err := loadConfig()
	if err != nil {
		return nil, errors.Annotate(err, "initializing frontend")
	}

	userInput := make(chan *capsule.Capsule)

	providers, err := loadProvider(providerConfig, userInput)
	if err != nil {
		return nil, errors.Annotate(err, "initializing frontend")
	}

	if len(providers) == 0 {
		return nil, errors.NotProvisionedf("activated frontend providers")
	}

	return &Frontend{
		activatedProviders: providers,
		userInput:          userInput,
		capsuleInChan:      capsuleInChan,
		capsuleOutChan:     capsuleOutChan,
		notifications:      notificationService,
		wg:                 &sync.WaitGroup{},
	}, nil
}

// Start starts frontend providers and user inputs listening.
func (f *Frontend) Start(wg *sync.WaitGroup) {
	defer wg.Done()

	localLogger := logger.WithField("action", "listening")

	for _, p := range f.activatedProviders {
		f.wg.Add(1)
		p := p
		go func() {
			defer f.wg.Done()
			p.Start()
		}()
	}

	notificationID, notifications := f.notifications.Subscribe()
	defer f.notifications.Unsubscribe(notificationID)

	stop := func(f *Frontend) {
		localLogger.Info("Closing frontend providers")
		f.stopProviders()
		f.wg.Wait()
	}

	localLogger.Info("Starting listening loop")
listeningLoop:
	for {
		select {
		case received, ok := <-f.userInput:
			if !ok {
				stop(f)
				break listeningLoop
			}

			localLogger.Debugf("Capsule received from %s: %s", received.Provider, received.Kind)
			if err := f.sendToBackend(received); err != nil {
				localLogger.WithError(err).Error("Error while sending capsule from frontend to backend.")
			}
		case data, ok := <-f.capsuleInChan:
			if !ok {
				stop(f)
				break listeningLoop
			}

			received := capsule.Capsule{}
			if err := yaml.Unmarshal(data, &received); err != nil {
				localLogger.WithError(err).Error("Cannot process capsule received from backend")
				continue
			}

			if err := f.dispatch(&received); err != nil {
				localLogger.WithError(err).Error("Cannot process capsule received from backend")
			}
		case event, ok := <-notifications:
			if !ok {
				notifications = nil
				continue
			}

			f.notify(string(event.Level), event.Message)
		}
	}
}

// dispatch presents one backend capsule on every activated provider.
func (f *Frontend) dispatch(received *capsule.Capsule) error {
	for _, p := range f.activatedProviders {
		var err error

		switch received.Kind {
		case capsule.KindPage:
			err = p.Render(received.Page)
		case capsule.KindSMSChallenge:
			err = p.Challenge(received.Content)
		case capsule.KindHelp:
			err = p.Notify(string(notification.LevelInfo), received.Content)
		case capsule.KindFinished:
			err = p.Notify(string(notification.LevelSuccess), "The verification interview is complete. You can close this window.")
		default:
			err = errors.NotSupportedf("capsule kind %s", received.Kind)
		}

		if err != nil {
			logger.WithError(err).WithField("provider", p.GetLabel()).Error("Error while presenting capsule")
		}
	}

	return nil
}

// notify fans a notification out to every activated provider.
func (f *Frontend) notify(level, message string) {
	for _, p := range f.activatedProviders {
		if err := p.Notify(level, message); err != nil {
			logger.WithError(err).WithField("provider", p.GetLabel()).Error("Error while sending notification")
		}
	}
}

// loadConfig loads the providers configuration from file defined in a environment variable.
// It returns an array of structured providers configuration.
func loadConfig() ([]*ProviderConfig, error) {
	path := os.Getenv(configFile)
	if path == "" {
		path = defaultConfigFilePath
	}

	log.WithField("filename", path).Info("Parsing config file")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Annotate(err, "cannot read config file")
	}

	var c []*ProviderConfig
	if err = yaml.Unmarshal(data, &c); err != nil {
		return nil, errors.Annotate(err, "cannot unmarshal config file")
	}

	// Formats label
	for _, p := range c {
		p.Label = strings.ToLower(p.Label)
	}

	return c, nil
}

// loadProvider loads the providers if they are declared as activated.
func loadProvider(providerConfig []*ProviderConfig, userInput chan<- *capsule.Capsule) ([]provider.Provider, error) {
	providers := []provider.Provider{}

	for _, pc := range providerConfig {
		p, ok := providerCollection[pc.Label]
		if !ok {
			return nil, errors.NotFoundf("provider called `%s`", pc.Label)
		}

		if !pc.IsActivated {
			continue
		}

		config := &provider.Config{
			Token:           pc.Token,
			AuthorizedUsers: pc.AuthorizedUsers,
			UserInput:       userInput,
		}

		p, err := p.Initialize(config)
		if err != nil {
			annotation := fmt.Sprintf("loading provider %s", pc.Label)
			return nil, errors.Annotate(err, annotation)
		}

		providers = append(providers, p)
	}

	return providers, nil
}

// sendToBackend sends a given capsule to the conversation driver using the
// capsule out channel.
func (f *Frontend) sendToBackend(received *capsule.Capsule) error {
	data, err := yaml.Marshal(received)
	if err != nil {
		return errors.Annotate(err, "sending capsule from frontend to backend")
	}

	f.capsuleOutChan <- data
	return nil
}

// stopProviders stops all running providers and closes the user input
// channel they write to.
func (f *Frontend) stopProviders() {
	for _, p := range f.activatedProviders {
		p.Stop()
	}
}
