package main

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/DFXswiss/payment-sub000/backend"
	"github.com/DFXswiss/payment-sub000/frontend"
	"github.com/DFXswiss/payment-sub000/services/auth"
	"github.com/DFXswiss/payment-sub000/services/notification"
	"github.com/DFXswiss/payment-sub000/services/settings"
	log "github.com/sirupsen/logrus"
)

func init() {
	env := os.Getenv("ENVIRONMENT")

	if env == "" || env == "DEV" {
		// Log as the default ASCII formatter.
		log.SetFormatter(&log.TextFormatter{})

		// Output to stdout instead of the default stderr
		log.SetOutput(os.Stdout)

		// Log all messages.
		log.SetLevel(log.DebugLevel)
	} else if env == "PROD" {
		// Log as JSON instead of the default ASCII formatter.
		log.SetFormatter(&log.JSONFormatter{})

		// Output to stdout instead of the default stderr
		log.SetOutput(os.Stdout)

		// Only log the warning severity or above.
		log.SetLevel(log.WarnLevel)
	}
}

func main() {
	// Initializes the services which earlier clients held as global
	// singletons. They live from here to the graceful shutdown.
	authService := auth.New()
	settingsService := settings.New("")
	notificationService := notification.New()

	// pageChan carries pages, SMS challenges and help texts from the
	// conversation driver to the frontend.
	pageChan := make(chan []byte)

	// answerChan carries user answers, commands and SMS codes from the
	// frontend to the conversation driver.
	answerChan := make(chan []byte)

	// Initializes frontend manager
	front, err := frontend.New(notificationService, pageChan, answerChan)
	if err != nil {
		panic(err)
	}

	back, err := backend.New(authService, settingsService, notificationService, answerChan, pageChan)
	if err != nil {
		panic(err)
	}

	// Initializes a new WaitGroup.
	wg := sync.WaitGroup{}

	// Starts the interview loops.
	wg.Add(1)
	go front.Start(&wg)
	wg.Add(1)
	go back.Start(&wg)

	// Initializes channel which handles SIGTERM and SIGINT
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM)
	signal.Notify(quit, syscall.SIGINT)
	// Wait for a SIGTERM or SIGINT
	<-quit

	// Closes channels and disposes the services
	close(pageChan)
	close(answerChan)
	wg.Wait()

	notificationService.Close()
	settingsService.Close()
	authService.Close()

	log.Info("Graceful shutdown")
	os.Exit(0)
}
