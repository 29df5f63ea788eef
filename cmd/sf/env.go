package main

import (
	"os"
	"path/filepath"

	"github.com/setupforge/setupforge/internal/envfile"
)

// Environment keys the CLI honors.
const (
	envInstallRoot = "SF_INSTALL_ROOT"
	envLang        = "SF_LANG"
	envStateDir    = "SF_STATE_DIR"
)

// sessionEnv merges an optional sf.env file beside the manifest with the
// process environment. Process variables win; only SF_-prefixed keys from the
// file are honored.
func sessionEnv(manifestPath string) (map[string]string, error) {
	env := map[string]string{}
	data, err := os.ReadFile(filepath.Join(filepath.Dir(manifestPath), "sf.env"))
	if err == nil {
		parsed, perr := envfile.Parse(string(data))
		if perr != nil {
			return nil, perr
		}
		for key, value := range envfile.FilterNamespace(parsed) {
			env[key] = value
		}
	}
	for _, key := range []string{envInstallRoot, envLang, envStateDir} {
		if value := os.Getenv(key); value != "" {
			env[key] = value
		}
	}
	return env, nil
}
