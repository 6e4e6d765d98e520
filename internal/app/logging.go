package app

import (
	"io"
	stdslog "log/slog"
	"strings"

	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/unkn0wn-root/tiercache"
	"github.com/unkn0wn-root/tiercache/config"
	tclogrus "github.com/unkn0wn-root/tiercache/log/logrus"
	tcslog "github.com/unkn0wn-root/tiercache/log/slog"
	tczap "github.com/unkn0wn-root/tiercache/log/zap"
)

// NewLogger builds a structured logger from the logging section.
func NewLogger(cfg config.Logging, w io.Writer) *stdslog.Logger {
	opts := &stdslog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if cfg.Format == "text" {
		return stdslog.New(stdslog.NewTextHandler(w, opts))
	}
	return stdslog.New(stdslog.NewJSONHandler(w, opts))
}

func parseLevel(s string) stdslog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return stdslog.LevelDebug
	case "warn":
		return stdslog.LevelWarn
	case "error":
		return stdslog.LevelError
	default:
		return stdslog.LevelInfo
	}
}

// engineLogger returns the adapter the registry logs through. zap and logrus
// write to w with the same level and format as the slog logger. The returned
// func flushes buffered output.
func engineLogger(cfg config.Logging, w io.Writer, fallback *stdslog.Logger) (tiercache.Logger, func() error) {
	switch cfg.Backend {
	case "zap":
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		enc := zapcore.NewJSONEncoder(encCfg)
		if cfg.Format == "text" {
			enc = zapcore.NewConsoleEncoder(encCfg)
		}
		lvl := zapcore.InfoLevel
		_ = lvl.Set(strings.ToLower(cfg.Level))
		zl := zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), lvl))
		// Sync on a terminal fd reports EINVAL; nothing is lost, so drop it.
		return tczap.New(zl), func() error { _ = zl.Sync(); return nil }
	case "logrus":
		ll := logrus.New()
		ll.SetOutput(w)
		if lvl, err := logrus.ParseLevel(cfg.Level); err == nil {
			ll.SetLevel(lvl)
		}
		if cfg.Format == "text" {
			ll.SetFormatter(&logrus.TextFormatter{DisableColors: true})
		} else {
			ll.SetFormatter(&logrus.JSONFormatter{})
		}
		return tclogrus.New(ll), func() error { return nil }
	default:
		return tcslog.New(fallback), func() error { return nil }
	}
}
