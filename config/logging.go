package config

import "go.uber.org/zap/zapcore"

// LogEncoder defines a log encoder kind.
type LogEncoder = string

const (
	defaultLoggingLevel = zapcore.InfoLevel
	// ConsoleLogEncoder represents logging with plain text.
	ConsoleLogEncoder LogEncoder = "console"
	// JSONLogEncoder represents logging with JSON.
	JSONLogEncoder LogEncoder = "json"
)

// LoggerConfig holds the logging level for each module.
type LoggerConfig struct {
	Encoder              LogEncoder    `mapstructure:"log-encoder"`
	AppLoggerLevel       zapcore.Level `mapstructure:"app"`
	P2PLoggerLevel       zapcore.Level `mapstructure:"p2p"`
	NodePropsLoggerLevel zapcore.Level `mapstructure:"nodeprops"`
	ExchangeLoggerLevel  zapcore.Level `mapstructure:"exchange"`
	LibP2PLoggerLevel    zapcore.Level `mapstructure:"libp2p"`
}

// DefaultLoggingConfig logs everything at info level, except libp2p internals.
func DefaultLoggingConfig() LoggerConfig {
	return LoggerConfig{
		Encoder:              ConsoleLogEncoder,
		AppLoggerLevel:       defaultLoggingLevel,
		P2PLoggerLevel:       defaultLoggingLevel,
		NodePropsLoggerLevel: defaultLoggingLevel,
		ExchangeLoggerLevel:  defaultLoggingLevel,
		LibP2PLoggerLevel:    zapcore.WarnLevel,
	}
}
