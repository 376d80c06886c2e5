package config

import (
	stderrs "errors"
	"io/fs"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads KEY=VALUE pairs from the given files (default ".env") into the
// process environment. Variables already set in the environment win. Missing
// files are not an error; malformed files are
func LoadDotEnv(files ...string) ([]string, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var loaded []string
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if stderrs.Is(err, fs.ErrNotExist) {
				continue
			}
			return loaded, err
		}
		loaded = append(loaded, f)
	}
	return loaded, nil
}
