package config

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
)

// LoadConfig resolves the application configuration: an optional dotenv
// file first, then the process environment. Variables already set in the
// environment win over the file. An empty envPath means "./.env"; a
// missing file is not an error.
func LoadConfig(envPath string) (AppConfig, error) {
	if err := loadEnvFile(envPath); err != nil {
		return AppConfig{}, err
	}

	envCfg, err := LoadFromEnv()
	if err != nil {
		return AppConfig{}, err
	}
	return envCfg.Normalize().ToAppConfig(), nil
}

func loadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
