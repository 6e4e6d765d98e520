package tiercache

// Fields is a minimal structured field map for logs.
type Fields map[string]any

// Logger is the leveled logger the engine writes to. Adapters for zap,
// logrus and slog live under log/. A nil Logger in Options disables logging.
type Logger interface {
	Debug(msg string, f Fields)
	Info(msg string, f Fields)
	Warn(msg string, f Fields)
	Error(msg string, f Fields)
}

type NopLogger struct{}

func (NopLogger) Debug(string, Fields) {}
func (NopLogger) Info(string, Fields)  {}
func (NopLogger) Warn(string, Fields)  {}
func (NopLogger) Error(string, Fields) {}

// withFields decorates l so every record carries base.
type withFields struct {
	l    Logger
	base Fields
}

// WithFields returns a Logger that adds base to every record.
// Per-call fields win on key collision.
func WithFields(l Logger, base Fields) Logger {
	if _, ok := l.(NopLogger); ok || len(base) == 0 {
		return l
	}
	return withFields{l: l, base: base}
}

func (w withFields) merge(f Fields) Fields {
	out := make(Fields, len(w.base)+len(f))
	for k, v := range w.base {
		out[k] = v
	}
	for k, v := range f {
		out[k] = v
	}
	return out
}

func (w withFields) Debug(msg string, f Fields) { w.l.Debug(msg, w.merge(f)) }
func (w withFields) Info(msg string, f Fields)  { w.l.Info(msg, w.merge(f)) }
func (w withFields) Warn(msg string, f Fields)  { w.l.Warn(msg, w.merge(f)) }
func (w withFields) Error(msg string, f Fields) { w.l.Error(msg, w.merge(f)) }
