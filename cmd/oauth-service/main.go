package main

import (
	"log"
	"os"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"

	oauth "github.com/mmgonzalezc/oauth-service"
	"github.com/mmgonzalezc/oauth-service/directory"
)

// envConfig implements oauth.Config from the process environment.
type envConfig struct {
	ClientID        string
	ClientSecret    string
	SigningKey      string
	DirectoryURL    string
	Port            string
	AccessTokenTTL  int
	RefreshTokenTTL int
}

func (c envConfig) GetClientID() string     { return c.ClientID }
func (c envConfig) GetClientSecret() string { return c.ClientSecret }
func (c envConfig) GetSigningKey() string   { return c.SigningKey }
func (c envConfig) GetAccessTokenTTL() int  { return c.AccessTokenTTL }
func (c envConfig) GetRefreshTokenTTL() int { return c.RefreshTokenTTL }

// Validate will run validation rules
func (c envConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.ClientID, validation.Required),
		validation.Field(&c.ClientSecret, validation.Required),
		validation.Field(&c.SigningKey, validation.Required),
		validation.Field(&c.DirectoryURL, validation.Required, is.URL),
		validation.Field(&c.Port, validation.Required, is.Port),
	)
}

func loadConfig() (envConfig, error) {
	cfg := envConfig{
		ClientID:        os.Getenv("OAUTH_CLIENT_ID"),
		ClientSecret:    os.Getenv("OAUTH_CLIENT_SECRET"),
		SigningKey:      os.Getenv("OAUTH_SIGNING_KEY"),
		DirectoryURL:    os.Getenv("DIRECTORY_URL"),
		Port:            envOrDefault("PORT", "9100"),
		AccessTokenTTL:  envIntOrDefault("ACCESS_TOKEN_TTL_SECONDS", 3600),
		RefreshTokenTTL: envIntOrDefault("REFRESH_TOKEN_TTL_SECONDS", 3600),
	}

	return cfg, cfg.Validate()
}

func main() {
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	users := directory.NewClient(cfg.DirectoryURL)

	server, err := oauth.NewServer(cfg, users)
	if err != nil {
		log.Fatalf("could not build authorization server: %v", err)
	}

	app := fiber.New(fiber.Config{
		AppName:               "oauth-service",
		DisableStartupMessage: true,
	})

	oauth.NewController(server).RegisterRoutes(app)

	log.Printf("oauth-service listening on :%s", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envIntOrDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
