package models

import "time"

// Config represents the application configuration
type Config struct {
	Database   DatabaseConfig
	Server     ServerConfig
	Listener   ListenerConfig
	Settlement SettlementConfig
	Protocol   ProtocolDefaults
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

// ServerConfig holds the HTTP surface settings
type ServerConfig struct {
	ListenAddress string
	JwtSecret     string
	JwtIssuer     string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	EnableMetrics bool
	// TrustAttachedDeposit lets the request body state the attached deposit.
	// Only for hosts that verify payment before forwarding requests.
	TrustAttachedDeposit bool
}

// ListenerConfig holds funding listener settings
type ListenerConfig struct {
	Enabled           bool
	OracleAccount     string
	PollingInterval   time.Duration
	PageSize          int
	RotationBuffer    time.Duration
	IntentsApiBaseUrl string
	IntentsApiKey     string
	RequestsPerSecond float64
	RequestTimeout    time.Duration
	AssetsFile        string
}

// SettlementConfig holds settlement dispatcher settings
type SettlementConfig struct {
	QueueSize   int
	MaxAttempts int
	RetryDelay  time.Duration
}

// ProtocolDefaults are applied when the protocol is initialized from the setup tool
type ProtocolDefaults struct {
	Owner              string
	FeeRecipient       string
	PaymentMethodsFile string
}
