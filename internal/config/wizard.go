package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard, saves the result to
// path and returns it.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to popup-studio! Let's configure your workspace.")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. Where widgets are stored.
	storePrompt := promptui.Select{
		Label: "Where should widgets be saved",
		Items: []string{
			"local:  SQLite store in this workspace",
			"remote: an existing popup-studio server",
		},
	}
	storeIdx, _, err := storePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("store selection: %w", err)
	}

	if storeIdx == 1 {
		urlPrompt := promptui.Prompt{
			Label:    "Server URL",
			Default:  "http://localhost:8080",
			Validate: validateURL,
		}
		cfg.APIURL, err = urlPrompt.Run()
		if err != nil {
			return nil, fmt.Errorf("server url: %w", err)
		}
	}

	// 2. Data directory.
	dataPrompt := promptui.Prompt{
		Label:   "Data directory",
		Default: cfg.DataDir,
	}
	cfg.DataDir, err = dataPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}

	// 3. Server port.
	portPrompt := promptui.Prompt{
		Label:    "Port for `popupstudio server`",
		Default:  strconv.Itoa(cfg.Port),
		Validate: validatePort,
	}
	portStr, err := portPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("port: %w", err)
	}
	cfg.Port, _ = strconv.Atoi(strings.TrimSpace(portStr))

	// 4. Log format.
	logPrompt := promptui.Select{
		Label: "Log format",
		Items: []string{string(LogFormatConsole), string(LogFormatJSON)},
	}
	_, logFormat, err := logPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("log format: %w", err)
	}
	cfg.LogFormat = LogFormat(logFormat)

	// 5. Which scene objects `popupstudio export` writes by default.
	includePrompt := promptui.Prompt{
		Label:   "Objects to export (comma-separated globs)",
		Default: strings.Join(cfg.Export.Include, ","),
	}
	includeStr, err := includePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("export patterns: %w", err)
	}
	if include := splitAndTrim(includeStr); len(include) > 0 {
		cfg.Export.Include = include
	}

	// A local server signs its own tokens.
	if !cfg.Remote() {
		cfg.JWTSecret, err = GenerateSecret()
		if err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Save(path); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", path)
	return cfg, nil
}

// GenerateSecret returns a random 256-bit hex string for signing tokens.
func GenerateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func validateURL(s string) error {
	return validate.Var(strings.TrimSpace(s), "required,http_url")
}

func validatePort(s string) error {
	return validate.Var(strings.TrimSpace(s), "required,numeric,port")
}

// splitAndTrim splits a comma-separated string and drops empty entries.
func splitAndTrim(s string) []string {
	var result []string
	for _, part := range strings.Split(s, ",") {
		if token := strings.TrimSpace(part); token != "" {
			result = append(result, token)
		}
	}
	return result
}
