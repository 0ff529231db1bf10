package configs

import (
	"flag"
	"log"
	"os"

	"github.com/hilthontt/tourchat/internal/infrastructure/env"
	"github.com/joho/godotenv"
)

// LoadDotEnv reads .env files into the process environment without overriding variables
// that are already set. A missing file is not an error.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			log.Printf("failed to load %s: %v", f, err)
		}
	}
}

// DetermineConfigPath resolves the config file from --config, TOURCHAT_CONFIG or a list of
// well known locations. An empty result means defaults and environment only.
func DetermineConfigPath() string {
	var configPath string

	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	if configPath == "" {
		configPath = env.GetString("TOURCHAT_CONFIG", "")
	}

	if configPath == "" {
		candidates := []string{
			"./config.yaml",
			"./config.yml",
			"./tmp/config.yaml",
			"../../config.yaml",
			"/etc/tourchat/config.yaml",
			"/app/config.yaml",
		}

		for _, p := range candidates {
			if _, err := os.Stat(p); err == nil {
				configPath = p
				break
			}
		}
	}

	if configPath == "" {
		log.Println("config file not found, using defaults and environment. Use --config or TOURCHAT_CONFIG to point at one")
	}

	return configPath
}
