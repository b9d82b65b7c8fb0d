package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/callbridge-ai/callbridge/pkg/outbound"
	"github.com/callbridge-ai/callbridge/pkg/promptstore"
	"github.com/callbridge-ai/callbridge/pkg/server"
)

// Config holds the application configuration.
type Config struct {
	// Server
	Port       string
	PublicHost string

	// OpenAI
	OpenAIAPIKey string
	Model        string
	Voice        string

	// Twilio
	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioPhoneNumber string
}

func main() {
	godotenv.Load()
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.Println("=== Call Bridge ===")

	config := loadConfig()
	validateConfig(config)

	prompts := promptstore.New()
	dialer := outbound.NewDialer(outbound.DialerConfig{
		AccountSID: config.TwilioAccountSID,
		AuthToken:  config.TwilioAuthToken,
		FromNumber: config.TwilioPhoneNumber,
	})
	scheduler := outbound.NewScheduler()

	mediaServer := server.New(server.Config{
		Address:      ":" + config.Port,
		PublicHost:   config.PublicHost,
		OpenAIAPIKey: config.OpenAIAPIKey,
		Model:        config.Model,
		Voice:        config.Voice,
	}, prompts, dialer, scheduler)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := mediaServer.Start(ctx); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	log.Printf("Server started on port %s", config.Port)
	if config.PublicHost != "" {
		log.Printf("Telephony webhook URL: https://%s/outbound-twiml", config.PublicHost)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down...")
	mediaServer.Stop()
	log.Println("Goodbye!")
}

func loadConfig() *Config {
	return &Config{
		Port:              getEnv("PORT", "5050"),
		PublicHost:        os.Getenv("PUBLIC_HOST"),
		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		Model:             getEnv("OPENAI_REALTIME_MODEL", "gpt-4o-mini-realtime-preview-2024-12-17"),
		Voice:             getEnv("VOICE", "alloy"),
		TwilioAccountSID:  os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:   os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioPhoneNumber: os.Getenv("TWILIO_PHONE_NUMBER"),
	}
}

func validateConfig(config *Config) {
	var missing []string

	if config.OpenAIAPIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	if config.TwilioAccountSID == "" {
		missing = append(missing, "TWILIO_ACCOUNT_SID")
	}
	if config.TwilioAuthToken == "" {
		missing = append(missing, "TWILIO_AUTH_TOKEN")
	}
	if config.TwilioPhoneNumber == "" {
		missing = append(missing, "TWILIO_PHONE_NUMBER")
	}

	if len(missing) > 0 {
		log.Fatalf("Missing required environment variables: %s", strings.Join(missing, ", "))
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
