package log

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithRequest(t *testing.T) {
	ctx, id := WithRequest(context.Background())
	assert.Len(t, id, 36)
	assert.Equal(t, id, RequestID(ctx))

	// an existing id is kept
	again, same := WithRequest(ctx)
	assert.Equal(t, id, same)
	assert.Equal(t, id, RequestID(again))

	assert.Empty(t, RequestID(context.Background()))
	assert.Equal(t, "abc", RequestID(NewContext(context.Background(), "abc")))
}

func TestHelpers(t *testing.T) {
	var buf bytes.Buffer
	l := Init(Options{Level: "debug"})
	l.SetOutput(&buf)
	assert.Same(t, l, Logger())

	With(Fields{RequestIDKey: "req-7"}).Info("hello")
	assert.Contains(t, buf.String(), "hello")
	assert.Contains(t, buf.String(), "req-7")

	Debug(Fields{"stage": "detect"}, "detail")
	Warn(Fields{"faces": 3}, "capped")
	Error(Fields{"error": "boom"}, "failed")
	Info(Fields{}, "done")
	for _, msg := range []string{"detail", "capped", "failed", "done"} {
		assert.Contains(t, buf.String(), msg)
	}
}
