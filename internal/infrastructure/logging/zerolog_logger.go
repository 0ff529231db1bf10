package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

var zeroLogLevelMapping = map[string]zerolog.Level{
	"debug": zerolog.DebugLevel,
	"info":  zerolog.InfoLevel,
	"warn":  zerolog.WarnLevel,
	"error": zerolog.ErrorLevel,
	"fatal": zerolog.FatalLevel,
}

type zeroLogger struct {
	cfg    *LoggerConfig
	logger *zerolog.Logger
}

func newZeroLogger(cfg *LoggerConfig) *zeroLogger {
	return &zeroLogger{cfg: cfg}
}

func (l *zeroLogger) level() zerolog.Level {
	if level, ok := zeroLogLevelMapping[l.cfg.Level]; ok {
		return level
	}
	return zerolog.DebugLevel
}

func (l *zeroLogger) Init() {
	var out io.Writer = os.Stdout
	if l.cfg.Encoding == "console" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	if l.cfg.FilePath != "" {
		out = zerolog.MultiLevelWriter(out, &lumberjack.Logger{
			Filename:   filepath.Join(l.cfg.FilePath, time.Now().Format("2006-01-02")+".log"),
			MaxSize:    1,
			MaxAge:     20,
			MaxBackups: 5,
			LocalTime:  true,
			Compress:   true,
		})
	}

	logger := zerolog.New(out).
		Level(l.level()).
		With().
		Timestamp().
		Str(string(AppName), "tourchat").
		Str(string(LoggerName), "zerolog").
		Logger()
	l.logger = &logger
}

func (l *zeroLogger) event(e *zerolog.Event, cat Category, sub SubCategory, extra map[ExtraKey]any) *zerolog.Event {
	return e.Str("Category", string(cat)).
		Str("SubCategory", string(sub)).
		Fields(logParamsToZeroParams(extra))
}

func (l *zeroLogger) Debug(cat Category, sub SubCategory, msg string, extra map[ExtraKey]any) {
	l.event(l.logger.Debug(), cat, sub, extra).Msg(msg)
}

func (l *zeroLogger) Debugf(template string, args ...any) {
	l.logger.Debug().Msgf(template, args...)
}

func (l *zeroLogger) Info(cat Category, sub SubCategory, msg string, extra map[ExtraKey]any) {
	l.event(l.logger.Info(), cat, sub, extra).Msg(msg)
}

func (l *zeroLogger) Infof(template string, args ...any) {
	l.logger.Info().Msgf(template, args...)
}

func (l *zeroLogger) Warn(cat Category, sub SubCategory, msg string, extra map[ExtraKey]any) {
	l.event(l.logger.Warn(), cat, sub, extra).Msg(msg)
}

func (l *zeroLogger) Warnf(template string, args ...any) {
	l.logger.Warn().Msgf(template, args...)
}

func (l *zeroLogger) Error(cat Category, sub SubCategory, msg string, extra map[ExtraKey]any) {
	l.event(l.logger.Error(), cat, sub, extra).Msg(msg)
}

func (l *zeroLogger) Errorf(template string, args ...any) {
	l.logger.Error().Msgf(template, args...)
}

func (l *zeroLogger) Fatal(cat Category, sub SubCategory, msg string, extra map[ExtraKey]any) {
	l.event(l.logger.Fatal(), cat, sub, extra).Msg(msg)
}

func (l *zeroLogger) Fatalf(template string, args ...any) {
	l.logger.Fatal().Msgf(template, args...)
}
