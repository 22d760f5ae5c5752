package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"epub-reader/internal/domain"
)

// AppConfig implements the domain.Config interface
type AppConfig struct {
	ServerPort        string
	LogLevel          string
	StoreBackend      string
	DatabaseDriver    string
	DatabasePath      string
	DatabaseDSN       string
	SupabaseURL       string
	SupabaseKey       string
	AllowedOrigins    []string
	SelectionDebounce time.Duration
	MenuOffsetY       float64
	PreloadDocuments  []domain.Document
}

// NewConfig creates a new configuration instance with default values
func NewConfig() domain.Config {
	return &AppConfig{
		// PaaS platforms provide the listening port via PORT.
		ServerPort:     getEnvOrDefault("PORT", getEnvOrDefault("SERVER_PORT", "8080")),
		LogLevel:       getEnvOrDefault("LOG_LEVEL", "info"),
		StoreBackend:   strings.ToLower(getEnvOrDefault("STORE_BACKEND", "gorm")),
		DatabaseDriver: strings.ToLower(getEnvOrDefault("DB_DRIVER", "sqlite")),
		DatabasePath:   getEnvOrDefault("DATABASE_PATH", "./data/reader.db"),
		DatabaseDSN:    getEnvOrDefault("DATABASE_DSN", ""),
		SupabaseURL:    getEnvOrDefault("SUPABASE_URL", ""),
		SupabaseKey:    getEnvOrDefault("SUPABASE_ANON_KEY", ""),
		AllowedOrigins: getEnvListOrDefault("ALLOWED_ORIGINS", []string{
			"http://localhost:5173", // Vite dev server
			"http://localhost:4173", // Vite preview
			"http://localhost:3000",
		}),
		SelectionDebounce: time.Duration(getEnvInt64OrDefault("SELECTION_DEBOUNCE_MS", 200)) * time.Millisecond,
		MenuOffsetY:       getEnvFloatOrDefault("MENU_OFFSET_Y", 45),
		PreloadDocuments:  parseDocuments(getEnvOrDefault("PRELOAD_DOCUMENTS", "")),
	}
}

// GetServerPort returns the server port
func (c *AppConfig) GetServerPort() string {
	return c.ServerPort
}

// GetLogLevel returns the logging level
func (c *AppConfig) GetLogLevel() string {
	return c.LogLevel
}

// GetStoreBackend returns "gorm" or "supabase"
func (c *AppConfig) GetStoreBackend() string {
	return c.StoreBackend
}

// GetDatabaseDriver returns "sqlite" or "postgres"
func (c *AppConfig) GetDatabaseDriver() string {
	return c.DatabaseDriver
}

// GetDatabasePath returns the sqlite file path
func (c *AppConfig) GetDatabasePath() string {
	return c.DatabasePath
}

// GetDatabaseDSN returns the postgres connection string
func (c *AppConfig) GetDatabaseDSN() string {
	return c.DatabaseDSN
}

// GetSupabaseURL returns the Supabase URL
func (c *AppConfig) GetSupabaseURL() string {
	return c.SupabaseURL
}

// GetSupabaseKey returns the Supabase anon key
func (c *AppConfig) GetSupabaseKey() string {
	return c.SupabaseKey
}

// GetAllowedOrigins returns the CORS origin allow-list
func (c *AppConfig) GetAllowedOrigins() []string {
	return c.AllowedOrigins
}

// GetSelectionDebounce returns how long a deselection must persist before it is honored
func (c *AppConfig) GetSelectionDebounce() time.Duration {
	return c.SelectionDebounce
}

// GetMenuOffsetY returns the vertical offset applied to action menu anchors
func (c *AppConfig) GetMenuOffsetY() float64 {
	return c.MenuOffsetY
}

// GetPreloadDocuments returns the documents seeded on first start
func (c *AppConfig) GetPreloadDocuments() []domain.Document {
	return c.PreloadDocuments
}

// Helper functions for environment variable handling
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	out := make([]string, 0)
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseDocuments reads "id=Title;id2=Other Title" pairs.
func parseDocuments(value string) []domain.Document {
	docs := make([]domain.Document, 0)
	for _, pair := range strings.Split(value, ";") {
		id, title, ok := strings.Cut(pair, "=")
		id, title = strings.TrimSpace(id), strings.TrimSpace(title)
		if !ok || id == "" || title == "" {
			continue
		}
		docs = append(docs, domain.Document{ID: id, Title: title})
	}
	return docs
}
