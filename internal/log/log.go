package log

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Level    string
	Encoding string // json | console
	File     string
}

var (
	mu   sync.RWMutex
	base = zap.NewNop()
)

// New builds a production-style zap logger. An empty File logs to stdout only.
func New(cfg Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.Set(cfg.Level); err != nil {
			return nil, err
		}
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.EncoderConfig.TimeKey = "ts"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if cfg.Encoding == "console" {
		zc.Encoding = "console"
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zc.OutputPaths = []string{"stdout"}
	if cfg.File != "" {
		zc.OutputPaths = append(zc.OutputPaths, cfg.File)
	}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build()
}

// SetLogger replaces the process logger and returns a func restoring the old one.
func SetLogger(l *zap.Logger) (restore func()) {
	mu.Lock()
	prev := base
	base = l
	mu.Unlock()
	return func() {
		mu.Lock()
		base = prev
		mu.Unlock()
	}
}

func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

func Named(name string) *zap.Logger { return L().Named(name) }

func Sync() { _ = L().Sync() }

func fieldsFor(c *fiber.Ctx, action string, err error, extra map[string]any) []zap.Field {
	fs := make([]zap.Field, 0, 8+len(extra))
	fs = append(fs, zap.String("action", action))
	if c != nil {
		fs = append(fs,
			zap.String("ip", c.IP()),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().StatusCode()),
		)
		if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
			fs = append(fs, zap.String("req_id", rid))
		}
		if uid, ok := c.Locals("user_id").(int64); ok && uid > 0 {
			fs = append(fs, zap.Int64("user_id", uid))
		}
	}
	if err != nil {
		fs = append(fs, zap.Error(err))
	}
	if len(extra) > 0 {
		fs = append(fs, zap.Any("fields", extra))
	}
	return fs
}

func Info(c *fiber.Ctx, action string, fields map[string]any) {
	L().Info(action, fieldsFor(c, action, nil, fields)...)
}

// Audit records business events (checkout, payment transitions, stock edits).
func Audit(c *fiber.Ctx, action string, fields map[string]any) {
	L().Info(action, append(fieldsFor(c, action, nil, fields), zap.Bool("audit", true))...)
}

func Security(c *fiber.Ctx, action string, fields map[string]any) {
	L().Warn(action, fieldsFor(c, action, nil, fields)...)
}

func Error(c *fiber.Ctx, action string, err error, fields map[string]any) {
	L().Error(action, fieldsFor(c, action, err, fields)...)
}
