package log

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

// Тесты меняют slog.Default(), поэтому без t.Parallel().

func bufLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, nil)), &buf
}

func withDefault(t *testing.T) *slog.Logger {
	t.Helper()

	old := slog.Default()
	t.Cleanup(func() { slog.SetDefault(old) })

	def, _ := bufLogger()
	slog.SetDefault(def)

	return def
}

func TestFrom_FallsBackToDefault(t *testing.T) {
	def := withDefault(t)

	var nilLogger *slog.Logger
	cases := map[string]context.Context{
		"empty":      context.Background(),
		"wrong_type": context.WithValue(context.Background(), ctxKey{}, "not-a-logger"),
		"nil_logger": context.WithValue(context.Background(), ctxKey{}, nilLogger),
	}

	for name, ctx := range cases {
		t.Run(name, func(t *testing.T) {
			require.Same(t, def, From(ctx))
		})
	}
}

func TestInto_ChildShadowsParent(t *testing.T) {
	withDefault(t)

	parentL, _ := bufLogger()
	childL, _ := bufLogger()

	type otherKey struct{}
	base := context.WithValue(context.Background(), otherKey{}, "v")

	parent := Into(base, parentL)
	child := Into(parent, childL)

	require.Same(t, parentL, From(parent))
	require.Same(t, childL, From(child))
	require.Equal(t, "v", child.Value(otherKey{}))
}

func TestInto_KeepsCancellation(t *testing.T) {
	l, _ := bufLogger()

	parent, cancel := context.WithCancel(context.Background())
	ctx := Into(parent, l)

	cancel()
	<-ctx.Done()
	require.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestWith_AddsAttributes(t *testing.T) {
	base, buf := bufLogger()

	parent := Into(context.Background(), base)
	child := With(parent, slog.String("request_id", "req-1"))

	From(child).Info("refresh_rotated")
	require.Contains(t, buf.String(), "request_id=req-1")
	require.Contains(t, buf.String(), "msg=refresh_rotated")

	buf.Reset()
	From(parent).Info("plain")
	require.NotContains(t, buf.String(), "request_id")

	require.Equal(t, parent, With(parent))
}
