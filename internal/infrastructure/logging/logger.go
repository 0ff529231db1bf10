package logging

import (
	"github.com/hilthontt/tourchat/internal/infrastructure/env"
)

type Logger interface {
	Init()

	Debug(cat Category, sub SubCategory, msg string, extra map[ExtraKey]any)
	Debugf(template string, args ...any)

	Info(cat Category, sub SubCategory, msg string, extra map[ExtraKey]any)
	Infof(template string, args ...any)

	Warn(cat Category, sub SubCategory, msg string, extra map[ExtraKey]any)
	Warnf(template string, args ...any)

	Error(cat Category, sub SubCategory, msg string, extra map[ExtraKey]any)
	Errorf(template string, args ...any)

	Fatal(cat Category, sub SubCategory, msg string, extra map[ExtraKey]any)
	Fatalf(template string, args ...any)
}

type LoggerConfig struct {
	FilePath string `koanf:"file_path"`
	Encoding string `koanf:"encoding"`
	Level    string `koanf:"level"`
	Logger   string `koanf:"logger"`
}

func NewDefaultConfig() *LoggerConfig {
	return &LoggerConfig{
		FilePath: env.GetString("LOGGER_FILE_PATH", ""),
		Encoding: env.GetString("LOGGER_ENCODING", "json"),
		Level:    env.GetString("LOGGER_LEVEL", "info"),
		Logger:   env.GetString("LOGGER_LOGGER", "zap"),
	}
}

func NewLogger(cfg *LoggerConfig) Logger {
	var l Logger
	switch cfg.Logger {
	case "zap":
		l = newZapLogger(cfg)
	case "zerolog":
		l = newZeroLogger(cfg)
	case "nop":
		l = NewNop()
	default:
		panic("logger not supported: supported loggers: [zap, zerolog, nop]")
	}

	l.Init()
	return l
}
