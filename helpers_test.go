package rxcore

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// recorder 线程安全地记录收到的信号
type recorder struct {
	mu    sync.Mutex
	items []Item
	done  chan struct{}
	once  sync.Once

	// valueTerminates Maybe/Single的值即是终止信号
	valueTerminates bool
}

func newRecorder() *recorder {
	return &recorder{done: make(chan struct{})}
}

func newSingleValueRecorder() *recorder {
	r := newRecorder()
	r.valueTerminates = true
	return r
}

func (r *recorder) observer() Observer {
	return func(item Item) {
		r.mu.Lock()
		r.items = append(r.items, item)
		r.mu.Unlock()
		if item.IsTerminal() || r.valueTerminates {
			r.once.Do(func() { close(r.done) })
		}
	}
}

func (r *recorder) values() []interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	values := []interface{}{}
	for _, item := range r.items {
		if item.Kind == SignalNext {
			values = append(values, item.Value)
		}
	}
	return values
}

func (r *recorder) snapshot() []Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Item(nil), r.items...)
}

func (r *recorder) terminals() []Item {
	var terminals []Item
	for _, item := range r.snapshot() {
		if item.IsTerminal() {
			terminals = append(terminals, item)
		}
	}
	return terminals
}

func (r *recorder) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
		t.Fatal("等待终止信号超时")
	}
}

func (r *recorder) isDone() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// syncBuffer 可并发写入的日志缓冲区
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// captureLogs 测试期间把包级日志写入缓冲区
func captureLogs(t *testing.T, level string) *syncBuffer {
	t.Helper()
	previous := *Logger()
	buf := &syncBuffer{}
	SetLogger(NewLogger(LogConfig{Level: level, Format: LogFormatJSON}, buf))
	t.Cleanup(func() { SetLogger(previous) })
	return buf
}

// captureUnhandled 测试期间收集未处理错误
func captureUnhandled(t *testing.T) func() []error {
	t.Helper()
	var mu sync.Mutex
	var errs []error
	previous := SetErrorHandler(func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	})
	t.Cleanup(func() { SetErrorHandler(previous) })
	return func() []error {
		mu.Lock()
		defer mu.Unlock()
		return append([]error(nil), errs...)
	}
}

// silenceLogs 丢弃测试期间的日志
func silenceLogs(t *testing.T) {
	t.Helper()
	previous := *Logger()
	SetLogger(zerolog.Nop())
	t.Cleanup(func() { SetLogger(previous) })
}

func countLines(out, substr string) int {
	n := 0
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, substr) {
			n++
		}
	}
	return n
}
