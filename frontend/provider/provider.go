package provider

import (
	"github.com/DFXswiss/payment-sub000/capsule"
)

type (
	// Provider is the interface of a frontend provider. A provider renders
	// interview pages to the user and feeds answers, commands and SMS codes
	// back to the frontend manager through the user input channel.
	Provider interface {
		// Initialize initializes a provider with the given configuration
		// and user inputs write-only channel.
		Initialize(*Config) (Provider, error)

		// Start starts the provider handlers.
		Start()

		// Render presents one interview page to the user.
		Render(view *capsule.PageView) error

		// Challenge asks the user for the SMS code sent to the given
		// masked phone number.
		Challenge(target string) error

		// Notify shows a user-facing notification.
		Notify(level, message string) error

		// GetLabel returns the label of the provider.
		GetLabel() string

		// Stop closes the provider listener.
		Stop()
	}

	// Config is a structured configuration for providers.
	Config struct {
		// Token is the API provider token, when the provider needs one.
		Token string

		// AuthorizedUsers is a slice containing all authorized users.
		// These users are authorized to use the frontend provider.
		AuthorizedUsers []*User

		// UserInput is a only-write channel which is used to send local
		// capsules to the frontend manager.
		UserInput chan<- *capsule.Capsule
	}

	// User represents a user of the provider.
	User struct {
		// ID is the user ID, as issued by the provider platform.
		ID int64 `json:"id" yaml:"id"`

		// Name is the user name.
		Name string `json:"name" yaml:"name"`
	}
)

// Commands maps user-typed command names to interview commands. Providers
// share it so the command vocabulary stays identical across surfaces.
var Commands = map[string]string{
	"back": capsule.CommandBack,
	"next": capsule.CommandNext,
	"skip": capsule.CommandSkip,
	"help": capsule.CommandHelp,
}
