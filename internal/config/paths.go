package config

import (
	"os"
	"path/filepath"
)

func configSearchPaths() []string {
	home, _ := os.UserHomeDir()
	return []string{
		filepath.Join(home, ".sitrep", "config.yaml"),
		"/etc/sitrep/config.yaml",
	}
}
