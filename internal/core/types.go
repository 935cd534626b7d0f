package core

// Config represents the complete cqbot configuration structure
type Config struct {
	Gateway  GatewayConfig  `yaml:"gateway"`
	Security SecurityConfig `yaml:"security"`
	Bots     []BotConfig    `yaml:"bots"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// GatewayConfig describes the gateway shared by every bot
type GatewayConfig struct {
	Host string `yaml:"host" env:"CQBOT_HOST"`
	// PostPort is nil when omitted, so that an explicit 0 (webhook disabled)
	// can be told apart from the default
	PostPort      *int   `yaml:"post_port" env:"CQBOT_POST_PORT"`
	PostPath      string `yaml:"post_path" env:"CQBOT_POST_PATH"`
	BindHost      string `yaml:"bind_host" env:"CQBOT_BIND_HOST"`
	ActionTimeout string `yaml:"action_timeout"`
	AccessToken   string `yaml:"access_token" env:"CQBOT_ACCESS_TOKEN"`
	MentionAll    bool   `yaml:"mention_all"`
}

// Port returns the webhook port, 0 meaning disabled
func (g GatewayConfig) Port() int {
	if g.PostPort == nil {
		return 0
	}
	return *g.PostPort
}

// SecurityConfig restricts who the configured replies answer
type SecurityConfig struct {
	WhitelistEnabled bool    `yaml:"whitelist_enabled"`
	AllowedUsers     []int64 `yaml:"allowed_users"`
	Admins           []int64 `yaml:"admins"`
}

// BotConfig represents one robot bound to a gateway account
type BotConfig struct {
	Account    int64  `yaml:"account"`
	ListenPort int    `yaml:"listen_port"`
	Name       string `yaml:"name"`
	// BuiltinCommands enables help, whoami and status in private chat
	BuiltinCommands bool                        `yaml:"builtin_commands"`
	PrivateReplies  map[string]string           `yaml:"private_replies"` // trigger -> reply
	GroupReplies    map[int64]map[string]string `yaml:"group_replies"`   // group -> trigger -> reply
}

// Label names the bot in logs, falling back to its account
func (b BotConfig) Label() string {
	if b.Name != "" {
		return b.Name
	}
	return formatAccount(b.Account)
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`         // debug, info, warn, error
	File         string `yaml:"file"`          // Log file path
	MaxSize      int    `yaml:"max_size"`      // Single file max size in MB (default: 100)
	MaxBackups   int    `yaml:"max_backups"`   // Number of backups to keep (default: 5)
	MaxAge       int    `yaml:"max_age"`       // Maximum days to retain (default: 30)
	Compress     bool   `yaml:"compress"`      // Whether to compress old logs
	EnableStdout bool   `yaml:"enable_stdout"` // Also output to stdout (forced on without a file)
}
