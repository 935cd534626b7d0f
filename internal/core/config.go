// Package core provides the engine that hosts the configured bots and the
// configuration it is built from.
//
// # Configuration
//
// Configuration is loaded from a YAML file with the following main sections:
//
//   - gateway: where the gateway HTTP API lives and where its reports are received
//   - security: who the configured replies answer
//   - bots: the gateway accounts to run a robot for
//   - logging: Log configuration
//
// ${VAR} references are expanded before parsing. CQBOT_HOST, CQBOT_POST_PORT,
// CQBOT_POST_PATH, CQBOT_BIND_HOST and CQBOT_ACCESS_TOKEN override the gateway
// section afterwards.
//
// # Example Configuration
//
//	gateway:
//	  host: "127.0.0.1"
//	  post_port: 5701
//	  access_token: "${CQ_TOKEN}"
//	bots:
//	  - account: 10001
//	    listen_port: 5700
//	    builtin_commands: true
//	    private_replies:
//	      ping: pong
//	    group_replies:
//	      233333333:
//	        hello: hi there
package core

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/caarlos0/env/v11"
	"github.com/keepmind9/cqbot/pkg/constants"
	"gopkg.in/yaml.v3"
)

const (
	DefaultLogLevel      = "info"
	DefaultLogMaxSize    = 100 // MB
	DefaultLogMaxBackups = 5
	DefaultLogMaxAge     = 30 // days

	DefaultActionTimeout = "20s"
	MaxActionTimeout     = 10 * time.Minute
)

var validLogLevels = map[string]struct{}{
	"debug": {}, "info": {}, "warn": {}, "warning": {}, "error": {},
}

// LoadConfig loads configuration from file, expands environment variables
// and applies CQBOT_* overrides
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return ParseConfig(data)
}

// ParseConfig builds a validated configuration from raw YAML
func ParseConfig(data []byte) (*Config, error) {
	expandedData, err := expandEnv(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to expand environment variables: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := env.Parse(&config.Gateway); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// expandEnv replaces ${VAR_NAME} patterns with environment variable values
func expandEnv(input string) (string, error) {
	var missingVars []string

	result := os.Expand(input, func(key string) string {
		if val := os.Getenv(key); val != "" {
			return val
		}
		missingVars = append(missingVars, key)
		return ""
	})

	if len(missingVars) > 0 {
		return "", fmt.Errorf("missing required environment variables: %s",
			strings.Join(missingVars, ", "))
	}

	return result, nil
}

// validateConfig fills defaults and rejects unusable settings
func validateConfig(config *Config) error {
	if err := validateGateway(&config.Gateway); err != nil {
		return err
	}

	applyLoggingDefaults(&config.Logging)
	if _, ok := validLogLevels[strings.ToLower(config.Logging.Level)]; !ok {
		return fmt.Errorf("invalid logging.level %q", config.Logging.Level)
	}

	if config.Security.WhitelistEnabled && len(config.Security.AllowedUsers) == 0 {
		return fmt.Errorf("security.allowed_users cannot be empty when whitelist is enabled")
	}

	if len(config.Bots) == 0 {
		return fmt.Errorf("at least one bot must be configured")
	}
	for i := range config.Bots {
		if err := validateBot(i, &config.Bots[i]); err != nil {
			return err
		}
	}

	return nil
}

func validateGateway(g *GatewayConfig) error {
	if g.Host == "" {
		g.Host = constants.DefaultHost
	}
	if g.BindHost == "" {
		g.BindHost = constants.DefaultBindHost
	}
	if g.PostPort == nil {
		port := constants.DefaultPostPort
		g.PostPort = &port
	}
	if port := *g.PostPort; port < 0 || port > 65535 {
		return fmt.Errorf("gateway.post_port must be between 0 and 65535 (got %d)", port)
	}
	g.PostPath = strings.Trim(g.PostPath, "/")
	if strings.IndexFunc(g.PostPath, unicode.IsSpace) >= 0 {
		return fmt.Errorf("gateway.post_path must not contain whitespace (got %q)", g.PostPath)
	}

	if g.ActionTimeout == "" {
		g.ActionTimeout = DefaultActionTimeout
	}
	timeout, err := time.ParseDuration(g.ActionTimeout)
	if err != nil {
		return fmt.Errorf("invalid gateway.action_timeout: %w", err)
	}
	if timeout <= 0 || timeout > MaxActionTimeout {
		return fmt.Errorf("gateway.action_timeout must be in (0, %v] (got %v)", MaxActionTimeout, timeout)
	}
	return nil
}

func validateBot(i int, bot *BotConfig) error {
	if bot.Account <= 0 {
		return fmt.Errorf("bots[%d].account must be a positive account id", i)
	}
	if bot.ListenPort == 0 {
		bot.ListenPort = constants.DefaultListenPort
	}
	if bot.ListenPort < 1 || bot.ListenPort > 65535 {
		return fmt.Errorf("bots[%d].listen_port must be between 1 and 65535 (got %d)", i, bot.ListenPort)
	}
	for trigger := range bot.PrivateReplies {
		if trigger == "" {
			return fmt.Errorf("bots[%d].private_replies has an empty trigger", i)
		}
	}
	for group, replies := range bot.GroupReplies {
		if group <= 0 {
			return fmt.Errorf("bots[%d].group_replies has an invalid group id %d", i, group)
		}
		for trigger := range replies {
			if trigger == "" {
				return fmt.Errorf("bots[%d].group_replies[%d] has an empty trigger", i, group)
			}
		}
	}
	return nil
}

func applyLoggingDefaults(l *LoggingConfig) {
	if l.Level == "" {
		l.Level = DefaultLogLevel
	}
	if l.MaxSize == 0 {
		l.MaxSize = DefaultLogMaxSize
	}
	if l.MaxBackups == 0 {
		l.MaxBackups = DefaultLogMaxBackups
	}
	if l.MaxAge == 0 {
		l.MaxAge = DefaultLogMaxAge
	}
	if l.File == "" {
		l.EnableStdout = true
	}
}

// ActionTimeout returns the parsed gateway.action_timeout
func (c *Config) ActionTimeout() time.Duration {
	d, err := time.ParseDuration(c.Gateway.ActionTimeout)
	if err != nil || d <= 0 {
		return constants.DefaultActionTimeout
	}
	return d
}

// GetBotConfig retrieves configuration for the bots bound to account
func (c *Config) GetBotConfig(account int64) ([]BotConfig, error) {
	var out []BotConfig
	for _, bot := range c.Bots {
		if bot.Account == account {
			out = append(out, bot)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("account %d not found in configuration", account)
	}
	return out, nil
}

// IsUserAuthorized checks if a user is in the whitelist
func (c *Config) IsUserAuthorized(userID int64) bool {
	if !c.Security.WhitelistEnabled {
		return true
	}
	return containsID(c.Security.AllowedUsers, userID) || c.IsAdmin(userID)
}

// IsAdmin checks if a user is an admin
func (c *Config) IsAdmin(userID int64) bool {
	return containsID(c.Security.Admins, userID)
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func formatAccount(account int64) string {
	return strconv.FormatInt(account, 10)
}
