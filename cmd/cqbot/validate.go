package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/keepmind9/cqbot/internal/core"
	"github.com/spf13/cobra"
)

var (
	validateConfig string
	validateShow   bool
	validateJSON   bool
)

// errInvalidConfig makes the command exit non-zero after the report is printed
var errInvalidConfig = errors.New("configuration is invalid")

// ValidationResult represents the validation result
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Config   string   `json:"config"`
	Bots     int      `json:"bots"`
	Accounts int      `json:"accounts"`
	Webhook  string   `json:"webhook"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate cqbot configuration file",
	Long: `Validate the cqbot configuration file without starting the service.

This command checks:
  - YAML syntax and ${VAR} references
  - Gateway ports, path and action timeout
  - Bot accounts and listen ports
  - Reply triggers

Exit codes:
  0 - Configuration is valid
  1 - Configuration has errors`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		configFile := validateConfig
		if configFile == "" {
			configFile = findConfigFile()
		}
		if configFile == "" {
			fmt.Fprintln(out, "No configuration file found")
			fmt.Fprintln(out, "\nSpecify a config file with --config or ensure one exists at:")
			for _, loc := range defaultConfigLocations() {
				fmt.Fprintf(out, "  - %s\n", loc)
			}
			return errInvalidConfig
		}

		cfg, err := core.LoadConfig(configFile)
		if err != nil {
			outputValidationResult(out, ValidationResult{
				Valid:  false,
				Config: configFile,
				Errors: []string{err.Error()},
			}, validateJSON)
			return errInvalidConfig
		}

		result := ValidationResult{
			Valid:    true,
			Config:   configFile,
			Bots:     len(cfg.Bots),
			Accounts: countAccounts(cfg),
			Webhook:  webhookSummary(cfg),
			Warnings: validateConfigDetails(cfg),
		}

		if validateShow && !validateJSON {
			showConfig(out, cfg)
		}
		outputValidationResult(out, result, validateJSON)
		return nil
	},
}

func defaultConfigLocations() []string {
	return []string{
		"config.yaml",
		filepath.Join(os.Getenv("HOME"), ".config/cqbot/config.yaml"),
		"/etc/cqbot/config.yaml",
	}
}

func findConfigFile() string {
	for _, loc := range defaultConfigLocations() {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

func countAccounts(cfg *core.Config) int {
	seen := make(map[int64]struct{}, len(cfg.Bots))
	for _, bot := range cfg.Bots {
		seen[bot.Account] = struct{}{}
	}
	return len(seen)
}

func webhookSummary(cfg *core.Config) string {
	if cfg.Gateway.Port() == 0 {
		return "disabled"
	}
	return fmt.Sprintf("%s:%d/%s", cfg.Gateway.BindHost, cfg.Gateway.Port(), cfg.Gateway.PostPath)
}

func showConfig(out io.Writer, cfg *core.Config) {
	fmt.Fprintf(out, "Gateway: %s (webhook %s)\n", cfg.Gateway.Host, webhookSummary(cfg))
	fmt.Fprintf(out, "\nBots (%d):\n", len(cfg.Bots))
	for _, bot := range cfg.Bots {
		groups := make([]int64, 0, len(bot.GroupReplies))
		for g := range bot.GroupReplies {
			groups = append(groups, g)
		}
		sort.Slice(groups, func(i, j int) bool { return groups[i] < groups[j] })
		fmt.Fprintf(out, "  - %s: account %d -> port %d, %d private replies, groups %v\n",
			bot.Label(), bot.Account, bot.ListenPort, len(bot.PrivateReplies), groups)
	}
	fmt.Fprintln(out)
}

func outputValidationResult(out io.Writer, result ValidationResult, jsonFormat bool) {
	if jsonFormat {
		output, err := json.Marshal(result)
		if err != nil {
			fmt.Fprintf(out, "{\"error\": \"failed to marshal json: %v\"}\n", err)
			return
		}
		fmt.Fprintln(out, string(output))
		return
	}

	if result.Valid {
		fmt.Fprintln(out, "Configuration is valid")
		fmt.Fprintf(out, "  - Config: %s\n", result.Config)
		fmt.Fprintf(out, "  - Bots configured: %d\n", result.Bots)
		fmt.Fprintf(out, "  - Accounts: %d\n", result.Accounts)
		fmt.Fprintf(out, "  - Webhook: %s\n", result.Webhook)
		if len(result.Warnings) > 0 {
			fmt.Fprintln(out, "\nWarnings:")
			for _, warning := range result.Warnings {
				fmt.Fprintf(out, "  - %s\n", warning)
			}
		}
		return
	}

	fmt.Fprintln(out, "Configuration validation failed:")
	for _, errMsg := range result.Errors {
		fmt.Fprintf(out, "  - %s\n", errMsg)
	}
}

func validateConfigDetails(cfg *core.Config) []string {
	var warnings []string

	if cfg.Gateway.Port() == 0 {
		warnings = append(warnings, "gateway.post_port is 0 - no events will be received")
	}
	if cfg.Gateway.AccessToken == "" {
		warnings = append(warnings, "gateway.access_token is empty - actions are sent unauthenticated")
	}

	for _, bot := range cfg.Bots {
		if len(bot.PrivateReplies) == 0 && len(bot.GroupReplies) == 0 && !bot.BuiltinCommands {
			warnings = append(warnings, fmt.Sprintf("bot '%s' has no replies configured - it only logs events", bot.Label()))
		}
		if cfg.Gateway.Port() != 0 && bot.ListenPort == cfg.Gateway.Port() {
			warnings = append(warnings, fmt.Sprintf("bot '%s' listen_port equals gateway.post_port", bot.Label()))
		}
	}

	return warnings
}

func init() {
	validateCmd.Flags().StringVarP(&validateConfig, "config", "c", "", "Configuration file path")
	validateCmd.Flags().BoolVar(&validateShow, "show", false, "Show full configuration details")
	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "Output in JSON format")
}
