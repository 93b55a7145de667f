package core

type (
	// Logger is the application logger.
	// expected args fmt: error, map[string]interface{}, session profile
	Logger interface {
		Debug(msg string, args ...interface{})
		Info(msg string, args ...interface{})
		Warn(msg string, args ...interface{})
		Error(msg string, args ...interface{})
		Fatal(msg string, args ...interface{})
	}

	// Notifier surfaces the outcome of user-facing operations as transient notifications (toasts).
	Notifier interface {
		Success(msg string)
		Error(msg string)
		Info(msg string)
	}
)

// NopLogger discards everything except Fatal, which panics.
type NopLogger struct{}

var _ Logger = NopLogger{}

func (NopLogger) Debug(string, ...interface{}) {}
func (NopLogger) Info(string, ...interface{})  {}
func (NopLogger) Warn(string, ...interface{})  {}
func (NopLogger) Error(string, ...interface{}) {}
func (NopLogger) Fatal(msg string, _ ...interface{}) {
	panic(msg)
}
