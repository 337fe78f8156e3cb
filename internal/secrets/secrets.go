// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads credentials from a directory of plain-text files and
// from an optional dotenv file. Each file in the directory is one secret:
// the filename is the key and the trimmed contents are the value.
//
// Known keys: patsnap-username, patsnap-password, patentsview-api-key,
// semantic-scholar-api-key, openai-api-key.
package secrets

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// Known secret keys.
const (
	PatSnapUsername       = "patsnap-username"
	PatSnapPassword       = "patsnap-password"
	PatentsViewAPIKey     = "patentsview-api-key"
	SemanticScholarAPIKey = "semantic-scholar-api-key"
	OpenAIAPIKey          = "openai-api-key"
)

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory is not an error; Load returns an empty map.
// Unreadable files are logged and skipped.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			slog.Warn("could not read secret", "component", "secrets", "name", name, "err", err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// LoadEnvFile reads a dotenv file and returns its entries under secret-key
// names: PATSNAP_USERNAME becomes patsnap-username. A missing file yields an
// empty map.
func LoadEnvFile(path string) (map[string]string, error) {
	env, err := godotenv.Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading env file %s: %w", path, err)
	}

	out := make(map[string]string, len(env))
	for k, v := range env {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out[KeyName(k)] = v
	}
	return out, nil
}

// LoadAll merges the dotenv file at envPath with the secrets directory dir.
// Directory files win over dotenv entries with the same key.
func LoadAll(dir, envPath string) (map[string]string, error) {
	merged, err := LoadEnvFile(envPath)
	if err != nil {
		return nil, err
	}
	fromDir, err := Load(dir)
	if err != nil {
		return nil, err
	}
	for k, v := range fromDir {
		merged[k] = v
	}
	return merged, nil
}

// KeyName converts an environment variable name to a secret key.
func KeyName(envVar string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(envVar)), "_", "-")
}
