package bdxplot

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment variables providing defaults to command line flags.
const (
	EnvInputDir  = "BDX_INPUT_DIR"
	EnvOutputDir = "BDX_OUTPUT_DIR"
	EnvWorkers   = "BDX_WORKERS"
)

// LoadEnv loads the first of paths that exists into the environment.
// Variables already set are left untouched.
func LoadEnv(paths ...string) error {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		return godotenv.Load(path)
	}
	return nil
}

// EnvString returns the value of key, or def when it is unset or empty.
func EnvString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// EnvInt returns the integer value of key, or def when it is unset or not
// an integer.
func EnvInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}
