package internal

import "os"

type Config struct {
	Port        string
	GeminiKey   string
	GeminiModel string
	GeminiURL   string
	AMQPURL     string
}

// ConfigFromEnv reads the relay configuration. GEMINI_API_KEY has no
// default on purpose: absence is reported per request, not at startup.
// An empty AMQP_URL disables the audit exchange entirely.
func ConfigFromEnv() Config {
	return Config{
		Port:        env("PORT", "8080"),
		GeminiKey:   env("GEMINI_API_KEY", ""),
		GeminiModel: env("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiURL:   env("GEMINI_API_URL", "https://generativelanguage.googleapis.com"),
		AMQPURL:     env("AMQP_URL", ""),
	}
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
