package logging

import (
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var zapLogLevelMapping = map[string]zapcore.Level{
	"debug": zapcore.DebugLevel,
	"info":  zapcore.InfoLevel,
	"warn":  zapcore.WarnLevel,
	"error": zapcore.ErrorLevel,
	"fatal": zapcore.FatalLevel,
}

type zapLogger struct {
	cfg    *LoggerConfig
	logger *zap.SugaredLogger
}

func newZapLogger(cfg *LoggerConfig) *zapLogger {
	return &zapLogger{cfg: cfg}
}

func (l *zapLogger) level() zapcore.Level {
	if level, ok := zapLogLevelMapping[l.cfg.Level]; ok {
		return level
	}
	return zapcore.DebugLevel
}

func (l *zapLogger) Init() {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if l.cfg.Encoding == "console" {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	sinks := []zapcore.WriteSyncer{zapcore.AddSync(os.Stdout)}
	if l.cfg.FilePath != "" {
		name := filepath.Join(l.cfg.FilePath, time.Now().Format("2006-01-02")+".log")
		sinks = append(sinks, zapcore.AddSync(&lumberjack.Logger{
			Filename:   name,
			MaxSize:    1,
			MaxAge:     20,
			MaxBackups: 5,
			LocalTime:  true,
			Compress:   true,
		}))
	}

	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(sinks...), l.level())
	l.logger = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.ErrorLevel)).
		Sugar().
		With(string(AppName), "tourchat", string(LoggerName), "zap")
}

func prepareZapLogKeys(extra map[ExtraKey]any, cat Category, sub SubCategory) []any {
	keys := make(map[ExtraKey]any, len(extra)+2)
	for k, v := range extra {
		keys[k] = v
	}
	keys["Category"] = cat
	keys["SubCategory"] = sub
	return logParamsToZapParams(keys)
}

func (l *zapLogger) Debug(cat Category, sub SubCategory, msg string, extra map[ExtraKey]any) {
	l.logger.Debugw(msg, prepareZapLogKeys(extra, cat, sub)...)
}

func (l *zapLogger) Debugf(template string, args ...any) {
	l.logger.Debugf(template, args...)
}

func (l *zapLogger) Info(cat Category, sub SubCategory, msg string, extra map[ExtraKey]any) {
	l.logger.Infow(msg, prepareZapLogKeys(extra, cat, sub)...)
}

func (l *zapLogger) Infof(template string, args ...any) {
	l.logger.Infof(template, args...)
}

func (l *zapLogger) Warn(cat Category, sub SubCategory, msg string, extra map[ExtraKey]any) {
	l.logger.Warnw(msg, prepareZapLogKeys(extra, cat, sub)...)
}

func (l *zapLogger) Warnf(template string, args ...any) {
	l.logger.Warnf(template, args...)
}

func (l *zapLogger) Error(cat Category, sub SubCategory, msg string, extra map[ExtraKey]any) {
	l.logger.Errorw(msg, prepareZapLogKeys(extra, cat, sub)...)
}

func (l *zapLogger) Errorf(template string, args ...any) {
	l.logger.Errorf(template, args...)
}

func (l *zapLogger) Fatal(cat Category, sub SubCategory, msg string, extra map[ExtraKey]any) {
	l.logger.Fatalw(msg, prepareZapLogKeys(extra, cat, sub)...)
}

func (l *zapLogger) Fatalf(template string, args ...any) {
	l.logger.Fatalf(template, args...)
}
