package constants

import "time"

// Gateway defaults
const (
	// DefaultHost is the gateway host used for outbound actions
	DefaultHost = "127.0.0.1"
	// DefaultPostPort is the port the webhook listener binds when none is configured
	DefaultPostPort = 5701
	// DefaultPostPath is the webhook route path; empty means the root path
	DefaultPostPath = ""
	// DefaultBindHost is the interface the webhook listener binds to
	DefaultBindHost = "0.0.0.0"
	// DefaultListenPort is the gateway HTTP API port a bot sends actions to
	DefaultListenPort = 5700
)

// Timeouts
const (
	// DefaultActionTimeout is the client-side timeout of every outbound action call
	DefaultActionTimeout = 20 * time.Second
	// WebhookReadHeaderTimeout bounds how long an inbound call may take to send headers
	WebhookReadHeaderTimeout = 10 * time.Second
	// DefaultShutdownTimeout is how long serve waits for in-flight webhook calls
	DefaultShutdownTimeout = 5 * time.Second
)

// Event bus names fired into every robot
const (
	EventPrivate = "private"
	EventGroup   = "group"
	EventNotice  = "notice"
)

// Inbound payload discriminators (OneBot v11 post_type / message_type)
const (
	PostTypeMessage    = "message"
	PostTypeNotice     = "notice"
	MessageTypeGroup   = "group"
	MessageTypePrivate = "private"
)

// MentionAllTarget is the qq value of an "@everyone" mention
const MentionAllTarget = "all"

// ControlCharCeiling is the highest code point stripped from inbound payloads
// before they are parsed.
const ControlCharCeiling = 28

// MaxWebhookBodySize caps how much of an inbound body is read
const MaxWebhookBodySize = 4 << 20

// Secret masking
const (
	// MinSecretLengthForMasking is the minimum length before a secret is partially shown
	MinSecretLengthForMasking = 8
	// SecretMaskPrefixLength is the number of leading characters left visible
	SecretMaskPrefixLength = 4
	// SecretMaskSuffixLength is the number of trailing characters left visible
	SecretMaskSuffixLength = 4
)
