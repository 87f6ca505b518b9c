// Package hmmlog builds the loggers used by the command line programs.
package hmmlog

import (
	"os"
	"strings"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is a logging level.
type Level int

// LevelDebug, etc. are the logging levels.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[string]Level{
	"DEBUG": LevelDebug,
	"INFO":  LevelInfo,
	"WARN":  LevelWarn,
	"ERROR": LevelError,
}

// ParseLevel converts a level name such as "info" to a Level.
func ParseLevel(name string) (Level, error) {
	lev, ok := levelNames[strings.ToUpper(name)]
	if !ok {
		return LevelInfo, errors.Errorf("unknown log level '%s'", name)
	}
	return lev, nil
}

// Config describes where and how much to log.
type Config struct {

	// Log file prefix.  If empty, messages only go to the console.
	LogPath string

	Level Level

	// Hours between log file rotations
	RotationTime int

	// Days to keep rotated log files
	RotationMaxAge int

	// Also write to stderr
	LogInConsole bool

	ShowLine bool
}

// DefaultConfig returns the development settings if dev is true,
// otherwise the production settings.
func DefaultConfig(dev bool) *Config {

	if dev {
		return &Config{
			LogPath:        "",
			Level:          LevelDebug,
			RotationTime:   1,
			RotationMaxAge: 1,
			LogInConsole:   true,
			ShowLine:       true,
		}
	}

	return &Config{
		LogPath:        "cathmm",
		Level:          LevelInfo,
		RotationTime:   24,
		RotationMaxAge: 7,
		LogInConsole:   true,
		ShowLine:       false,
	}
}

// New returns a named logger configured by cfg.  If cfg is nil the
// development settings are used.
func New(name string, cfg *Config) (*zap.SugaredLogger, error) {

	if cfg == nil {
		cfg = DefaultConfig(true)
	}

	var zapLevel zapcore.Level
	switch cfg.Level {
	case LevelDebug:
		zapLevel = zap.DebugLevel
	case LevelInfo:
		zapLevel = zap.InfoLevel
	case LevelWarn:
		zapLevel = zap.WarnLevel
	case LevelError:
		zapLevel = zap.ErrorLevel
	default:
		zapLevel = zap.InfoLevel
	}
	priority := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= zapLevel
	})

	var syncers []zapcore.WriteSyncer
	if cfg.LogPath != "" {
		w, err := rotatelogs.New(
			cfg.LogPath+"_msg.log.%Y%m%d%H",
			rotatelogs.WithLinkName(cfg.LogPath+"_msg.log"),
			rotatelogs.WithRotationTime(time.Duration(cfg.RotationTime)*time.Hour),
			rotatelogs.WithMaxAge(time.Duration(cfg.RotationMaxAge)*24*time.Hour),
		)
		if err != nil {
			return nil, errors.Wrap(err, "creating rotating log")
		}
		syncers = append(syncers, zapcore.AddSync(w))
	}
	if cfg.LogInConsole || len(syncers) == 0 {
		syncers = append(syncers, zapcore.Lock(os.Stderr))
	}

	levelEncoder := func(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString("[" + level.CapitalString() + "]")
	}
	timeEncoder := func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.Format("2006-01-02 15:04:05.000"))
	}
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "line",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    levelEncoder,
		EncodeTime:     timeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.NewMultiWriteSyncer(syncers...), priority)

	var opts []zap.Option
	if cfg.ShowLine {
		opts = append(opts, zap.AddCaller())
	}

	return zap.New(core, opts...).Named(name).Sugar(), nil
}
