package config

import (
	"os"

	"github.com/joho/godotenv"
)

// LoadEnv reads a .env file and sets environment variables that are not
// already set. Missing files are ignored to keep startup flexible.
func LoadEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}
