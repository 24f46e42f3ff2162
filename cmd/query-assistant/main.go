// ABOUTME: Entry point for query-assistant: web page, one-shot questions, credential checks
// ABOUTME: Loads YAML config, sets up logging and dispatches subcommands

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/2389/query-assistant/internal/assistant"
	"github.com/2389/query-assistant/internal/config"
	"github.com/2389/query-assistant/internal/credentials"
	"github.com/2389/query-assistant/internal/render"
	"github.com/2389/query-assistant/internal/server"
	"github.com/2389/query-assistant/internal/weaviate"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                                                  _     _              _
  __ _ _   _  ___ _ __ _   _        __ _ ___ ___(_)___| |_ __ _ _ __ | |_
 / _' | | | |/ _ \ '__| | | |_____ / _' / __/ __| / __| __/ _' | '_ \| __|
| (_| | |_| |  __/ |  | |_| |_____| (_| \__ \__ \ \__ \ || (_| | | | | |_
 \__, |\__,_|\___|_|   \__, |      \__,_|___/___/_|___/\__\__,_|_| |_|\__|
    |_|                |___/
`

// getConfigPath returns the path to the config file.
// Priority: QUERY_ASSISTANT_CONFIG env var > XDG_CONFIG_HOME/query-assistant/config.yaml > ~/.config/query-assistant/config.yaml
func getConfigPath() string {
	if envPath := os.Getenv("QUERY_ASSISTANT_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "query-assistant", "config.yaml")
}

func usage() {
	fmt.Println("Usage: query-assistant <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                 Start the web page")
	fmt.Println("  ask QUESTION          Ask one question and print the answer")
	fmt.Println("  check [--connect]     Show which credentials would be used")
	fmt.Println("  health                Check a running server")
	fmt.Println("  init                  Write a config file with defaults")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "ask":
		err = runAsk(ctx, os.Args[2:], os.Stdout)
	case "check":
		err = runCheck(ctx, os.Args[2:], os.Stdout)
	case "health":
		err = runHealth(ctx)
	case "init":
		err = runInit(os.Args[2:], os.Stdout)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads the config file, falling back to defaults when it does not exist.
func loadConfig() (*config.Config, string, bool, error) {
	configPath := getConfigPath()
	cfg, found, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, configPath, false, fmt.Errorf("loading config: %w", err)
	}
	return cfg, configPath, found, nil
}

func runServe(ctx context.Context) error {
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, configPath, found, err := loadConfig()
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Logging, os.Stdout)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	if found {
		fmt.Printf("Config:     %s\n", configPath)
	} else {
		fmt.Printf("Config:     %s ", configPath)
		gray.Println("(not found, using defaults)")
	}
	green.Print("    ▶ ")
	fmt.Printf("HTTP:       http://%s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Collection: %s\n", cfg.Agent.Collection)
	green.Print("    ▶ ")
	fmt.Printf("Secrets:    %s, %s\n", cfg.Credentials.SecretsFile, cfg.Credentials.EnvFile)
	fmt.Println()

	logger.Info("starting query-assistant",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"collection", cfg.Agent.Collection,
	)

	srv, err := server.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	return srv.Run(ctx)
}

// runAsk answers one question. Logs go to stderr so out holds only the answer.
func runAsk(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New("usage: query-assistant ask QUESTION")
	}
	query := strings.Join(args, " ")

	cfg, _, _, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.Logging, os.Stderr)

	result, err := assistant.New(cfg, logger).Ask(ctx, query)
	if err != nil {
		var cfgErr *assistant.ConfigError
		if errors.As(err, &cfgErr) && len(cfgErr.Missing()) > 0 {
			return fmt.Errorf("%s (missing: %s)", assistant.UserMessage(err), strings.Join(cfgErr.Missing(), ", "))
		}
		return errors.New(assistant.UserMessage(err))
	}

	printView(out, result.View)
	return nil
}

func printView(w io.Writer, v render.View) {
	bold := color.New(color.Bold)
	gray := color.New(color.FgHiBlack)

	bold.Fprintln(w, "Final Answer")
	fmt.Fprintln(w, v.Answer)
	fmt.Fprintln(w)

	gray.Fprintln(w, "Details")
	for _, d := range v.Details() {
		bold.Fprintf(w, "  %s: ", d.Label)
		fmt.Fprintln(w, d.Value)
	}
}

// runCheck reports which credential source is in effect. With --connect it
// also opens and closes a cluster connection.
func runCheck(ctx context.Context, args []string, out io.Writer) error {
	connect := false
	for _, arg := range args {
		switch arg {
		case "--connect", "-c":
			connect = true
		default:
			return fmt.Errorf("unknown flag: %s", arg)
		}
	}

	cfg, configPath, _, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.Logging, os.Stderr)

	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	gray := color.New(color.FgHiBlack)

	fmt.Fprintf(out, "Config:  %s\n", configPath)

	creds, checkErr := assistant.New(cfg, logger).Check()
	source := string(creds.Source)
	switch creds.Source {
	case credentials.SourceSecrets:
		source += " (" + cfg.Credentials.SecretsFile + ")"
	case credentials.SourceEnv:
		source += " (" + cfg.Credentials.EnvFile + " + environment)"
	}
	fmt.Fprintf(out, "Source:  %s\n", source)
	printCredential(out, credentials.KeyURL, creds.URL, false)
	printCredential(out, credentials.KeyAPIKey, creds.APIKey, true)
	printCredential(out, credentials.KeyProviderKey, creds.ProviderKey, true)
	fmt.Fprintln(out)

	if checkErr != nil {
		red.Fprintln(out, assistant.UserMessage(checkErr))
		return errors.New("credentials incomplete")
	}
	green.Fprintln(out, "Credentials complete")

	if !connect {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client, err := weaviate.Connect(ctx, creds, weaviate.WithTimeout(cfg.Weaviate.Timeout), weaviate.WithLogger(logger))
	if err != nil {
		red.Fprintln(out, assistant.UserMessage(err))
		return errors.New("connection failed")
	}
	defer client.Close()

	green.Fprint(out, "Connected ")
	gray.Fprintf(out, "(%s, weaviate %s)\n", client.URL(), client.Meta().Version)
	return nil
}

func printCredential(out io.Writer, key, value string, secret bool) {
	fmt.Fprintf(out, "  %-17s ", key)
	switch {
	case value == "":
		color.New(color.FgRed).Fprintln(out, "missing")
	case secret:
		fmt.Fprintln(out, credentials.Mask(value))
	default:
		fmt.Fprintln(out, value)
	}
}

func runHealth(ctx context.Context) error {
	cfg, _, _, err := loadConfig()
	if err != nil {
		return err
	}

	for _, path := range []string{"/health", "/health/ready"} {
		url := fmt.Sprintf("http://%s%s", cfg.Server.HTTPAddr, path)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return fmt.Errorf("health check failed: %w", err)
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unhealthy: %s returned status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
		}
	}

	fmt.Println("healthy")
	return nil
}

// runInit writes the default configuration to the config path.
func runInit(args []string, out io.Writer) error {
	force := false
	for _, arg := range args {
		switch arg {
		case "--force", "-f":
			force = true
		default:
			return fmt.Errorf("unknown flag: %s", arg)
		}
	}

	configPath := getConfigPath()
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
	}

	data, err := defaultConfigYAML()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	fmt.Fprintf(out, "Config written to %s\n", configPath)
	fmt.Fprintln(out, "\nCredentials are read from the secrets file or .env, not from this file.")
	fmt.Fprintln(out, "To start the server:")
	fmt.Fprintln(out, "  query-assistant serve")
	return nil
}

func defaultConfigYAML() ([]byte, error) {
	cfg := config.Default()
	cfg.Weaviate.TimeoutRaw = "0s"
	cfg.Agent.TimeoutRaw = "0s"

	body, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	header := "# query-assistant configuration\n# Generated by query-assistant init\n\n"
	return append([]byte(header), body...), nil
}
