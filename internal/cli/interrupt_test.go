package cli

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer provides thread-safe access to a bytes.Buffer.
type syncBuffer struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

func (s *syncBuffer) Write(p []byte) (n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func TestNewInterruptHandler_NilWriter(t *testing.T) {
	h := NewInterruptHandler(nil)
	assert.NotNil(t, h.writer)
	assert.False(t, h.WasInterrupted())
}

func TestInterrupt_CancelsAndReportsOnce(t *testing.T) {
	out := &syncBuffer{}
	h := NewInterruptHandler(out)

	parent, stop := context.WithCancel(context.Background())
	defer stop()
	ctx := h.HandleInterrupts(parent, "pending rows are written as Pending")

	h.Interrupt()
	h.Interrupt()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		require.FailNow(t, "context not canceled")
	}

	assert.True(t, h.WasInterrupted())
	assert.Equal(t, 1, bytes.Count([]byte(out.String()), []byte("Interrupted")))
	assert.Contains(t, out.String(), "pending rows are written as Pending")
}

func TestHandleInterrupts_ParentCancel(t *testing.T) {
	out := &syncBuffer{}
	h := NewInterruptHandler(out)

	parent, stop := context.WithCancel(context.Background())
	ctx := h.HandleInterrupts(parent, "")
	stop()

	<-ctx.Done()
	assert.False(t, h.WasInterrupted())
	assert.Empty(t, out.String())
}
