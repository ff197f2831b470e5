package config

import "os"

type Config struct {
	ListenAddr      string
	DBPath          string
	AuthToken       string
	ServerURL       string
	UserID          string
	AnthropicAPIKey string
	AnthropicModel  string
	LogLevel        string
	LogFile         string
}

func Load() *Config {
	return &Config{
		ListenAddr:      getEnv("LISTEN_ADDR", ":8080"),
		DBPath:          getEnv("DB_PATH", "/data/freshcart.db"),
		AuthToken:       getEnv("AUTH_TOKEN", ""),
		ServerURL:       getEnv("SERVER_URL", "http://localhost:8080"),
		UserID:          getEnv("USER_ID", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel:  getEnv("ANTHROPIC_MODEL", "claude-3-5-haiku-20241022"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFile:         getEnv("LOG_FILE", ""),
	}
}

func getEnv(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return defaultVal
}
