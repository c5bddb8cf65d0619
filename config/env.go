package config

import (
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"gitlab.com/tozd/go/errors"
)

// Environment variable names read by LoadEnv.
const (
	EnvAPIKey          = "REFACTORY_API_KEY"
	EnvOpenAIAPIKey    = "OPENAI_API_KEY"
	EnvBaseURL         = "REFACTORY_BASE_URL"
	EnvModel           = "REFACTORY_MODEL"
	EnvLogLevel        = "REFACTORY_LOG_LEVEL"
	EnvJournal         = "REFACTORY_JOURNAL"
	EnvLibSQLAuthToken = "REFACTORY_LIBSQL_AUTH_TOKEN"
)

// Env holds settings taken from the process environment.
type Env struct {
	APIKey          string
	BaseURL         string
	Model           string
	LogLevel        string
	Journal         string
	LibSQLAuthToken string
}

// LoadEnv loads the given dotenv files (".env" when none are named) without
// overriding variables that are already set, then reads the environment.
// Missing files are ignored.
func LoadEnv(files ...string) (*Env, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Errorf("loading %s: %w", file, err)
		}
	}

	env := &Env{
		APIKey:          os.Getenv(EnvAPIKey),
		BaseURL:         os.Getenv(EnvBaseURL),
		Model:           os.Getenv(EnvModel),
		LogLevel:        os.Getenv(EnvLogLevel),
		Journal:         os.Getenv(EnvJournal),
		LibSQLAuthToken: os.Getenv(EnvLibSQLAuthToken),
	}
	if env.APIKey == "" {
		env.APIKey = os.Getenv(EnvOpenAIAPIKey)
	}
	if env.LogLevel == "" {
		env.LogLevel = "info"
	}
	return env, nil
}
