package logsvc

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/core"
	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/core/session"
)

func setup(t *testing.T) (*RollbarLogger, *observer.ObservedLogs) {
	zc, logs := observer.New(zapcore.DebugLevel)
	l := NewRollbarLogger(zap.New(zc), &core.Config{Env: "TEST", Build: "test"})
	l.Enable(false)
	return l, logs
}

func TestRollbarLogger_levels(t *testing.T) {
	l, logs := setup(t)

	l.Debug("d")
	l.Info("i")
	l.Warn("w")
	l.Error("e")

	entries := logs.AllUntimed()
	require.Len(t, entries, 4)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[3].Level)
	assert.Equal(t, "e", entries[3].Message)
}

func TestRollbarLogger_fields(t *testing.T) {
	l, logs := setup(t)

	l.Error("login failed",
		errors.New("boom"),
		map[string]interface{}{"path": "/admin/login"},
		session.Profile{ID: "7", DisplayName: "Jane"},
		nil,
		42,
	)

	entries := logs.AllUntimed()
	require.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "boom", ctx["error"])
	assert.Equal(t, "/admin/login", ctx["path"])
	assert.Equal(t, "7", ctx["user"])
	assert.EqualValues(t, 42, ctx["arg4"])
}

func TestRollbarLogger_prepare(t *testing.T) {
	l, _ := setup(t)
	p := &session.Profile{ID: "7"}
	args := l.prepare("msg", []interface{}{errors.New("x"), p, session.Profile{ID: "8"}, nil})
	require.Len(t, args, 2)
	assert.Equal(t, "msg", args[0])
}
