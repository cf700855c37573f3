package console

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/DFXswiss/payment-sub000/capsule"
	"github.com/DFXswiss/payment-sub000/frontend/provider"
	"github.com/DFXswiss/payment-sub000/models"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type (
	// Console renders the interview on the terminal and reads answers from
	// standard input. Lines starting with "/" are interpreted as commands.
	Console struct {
		// userInput is a channel connected to the frontend manager.
		userInput chan<- *capsule.Capsule

		// mu guards the expectingCode flag against the reader goroutine.
		mu sync.Mutex

		// expectingCode is set while an SMS challenge is pending; the next
		// input line is sent as the code.
		expectingCode bool

		// stopped signals the reader loop to exit.
		stopped chan struct{}
	}
)

const (
	// label is the provider label.
	label = "console"

	// commandPrefix marks an input line as a command.
	commandPrefix = "/"
)

var (
	// logger is a global logger of the package
	logger = log.WithFields(log.Fields{
		"package":  "frontend",
		"provider": label,
	})
)

// Initialize initializes the console provider with the given configuration
// and user inputs write-only channel.
func (c *Console) Initialize(config *provider.Config) (provider.Provider, error) {
	logger.Debugf("Initializing %s", label)

	return &Console{
		userInput: config.UserInput,
		stopped:   make(chan struct{}),
	}, nil
}

// Start reads user input lines until the provider is stopped.
func (c *Console) Start() {
	logger.Debugf("Starting %s", label)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		select {
		case <-c.stopped:
			return
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		c.userInput <- c.capsuleFor(line)
	}
}

// capsuleFor converts one input line into a capsule.
func (c *Console) capsuleFor(line string) *capsule.Capsule {
	out := &capsule.Capsule{
		ID:       uuid.New(),
		Provider: label,
		Kind:     capsule.KindAnswer,
		Content:  line,
	}

	c.mu.Lock()
	if c.expectingCode {
		c.expectingCode = false
		out.Kind = capsule.KindSMSCode
	}
	c.mu.Unlock()

	if strings.HasPrefix(line, commandPrefix) {
		name := strings.TrimPrefix(line, commandPrefix)
		if command, ok := provider.Commands[name]; ok {
			out.Kind = capsule.KindCommand
			out.Content = command
		}
	}

	return out
}

// Render presents one interview page on the terminal.
func (c *Console) Render(view *capsule.PageView) error {
	fmt.Printf("\n[%d/%d] %s\n", view.Index+1, view.Total, view.Header)

	if view.Body != "" {
		fmt.Println(view.Body)
	}

	if view.SupportLink {
		fmt.Println("Support: support@dfx.swiss")
	}

	for _, option := range view.Options {
		marker := " "
		if option.Selected {
			marker = "*"
		}

		fmt.Printf("  [%s] %s - %s\n", marker, option.Key, option.Label)
	}

	switch view.Element {
	case models.ChatbotElementList:
		fmt.Print("Select an option key: ")
	case models.ChatbotElementDate:
		fmt.Printf("Enter a date (%s): ", view.DateFormat)
	case models.ChatbotElementTextbox:
		fmt.Print("Your answer: ")
	}

	if view.Value != "" {
		fmt.Printf("(current: %s) ", view.Value)
	}

	return nil
}

// Challenge asks for the pending SMS code.
func (c *Console) Challenge(target string) error {
	c.mu.Lock()
	c.expectingCode = true
	c.mu.Unlock()

	fmt.Printf("\nAn SMS code was sent to %s. Enter the code: ", target)
	return nil
}

// Notify shows a user-facing notification.
func (c *Console) Notify(level, message string) error {
	fmt.Printf("\n[%s] %s\n", level, message)
	return nil
}

// GetLabel returns the label of the provider.
func (c *Console) GetLabel() string {
	return label
}

// Stop ends the reader loop. The user inputs channel is owned and closed by
// the frontend manager.
//
// A reader blocked inside scanner.Scan only observes the stop after the next
// input line: stdin reads cannot be interrupted portably, so shutdown may
// wait for one final keypress.
func (c *Console) Stop() {
	close(c.stopped)
}
