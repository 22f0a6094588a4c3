package tracing

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/bookpipeline/pkg/logger"
)

func TestStart_NestsUnderParent(t *testing.T) {
	ctx := logger.WithRequestID(context.Background(), "req-1")

	ctx, root := Start(ctx, "search")
	_, lookup := Start(ctx, "lookup")
	lookup.SetAttr("terms", 2)
	lookup.End()
	root.End()

	assert.Equal(t, "req-1", root.TraceID)
	assert.Equal(t, "req-1", lookup.TraceID)
	require.Len(t, root.Children(), 1)
	assert.Same(t, lookup, root.Children()[0])
	assert.Same(t, root, FromContext(ctx))
}

func TestFromContext_Empty(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))
}

func TestLog_WritesTreeAtDebug(t *testing.T) {
	ctx, root := Start(context.Background(), "index_book")
	_, child := Start(ctx, "store")
	child.End()
	root.End()

	var buf bytes.Buffer
	root.Log(logger.New(&buf, "debug", "text"))
	out := buf.String()
	assert.Equal(t, 2, strings.Count(out, "msg=span"))
	assert.Contains(t, out, "span=index_book")
	assert.Contains(t, out, "span=store")
	assert.Contains(t, out, "depth=1")

	buf.Reset()
	root.Log(logger.New(&buf, "info", "text"))
	assert.Empty(t, buf.String())
}
