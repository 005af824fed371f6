// Scheduler tests for rxcore
package rxcore

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/petermattis/goid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// 立即调度器测试
// ============================================================================

func TestImmediateScheduler(t *testing.T) {
	s := NewImmediateScheduler()

	t.Run("同步执行", func(t *testing.T) {
		var ran bool
		callerID := goid.Get()
		var taskID int64
		s.Schedule(func() {
			ran = true
			taskID = goid.Get()
		})
		assert.True(t, ran)
		assert.Equal(t, callerID, taskID)
	})

	t.Run("延迟执行阻塞调用者", func(t *testing.T) {
		start := time.Now()
		var ran bool
		s.ScheduleWithDelay(func() { ran = true }, 20*time.Millisecond)
		assert.True(t, ran)
		assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	})

	t.Run("任务panic不会传播", func(t *testing.T) {
		silenceLogs(t)
		unhandled := captureUnhandled(t)
		assert.NotPanics(t, func() {
			s.Schedule(func() { panic("boom") })
		})
		require.Len(t, unhandled(), 1)
	})
}

// ============================================================================
// 蹦床调度器测试
// ============================================================================

func TestTrampolineScheduler(t *testing.T) {
	t.Run("嵌套任务在外层返回后按FIFO执行", func(t *testing.T) {
		s := NewTrampolineScheduler()
		var order []string
		s.Schedule(func() {
			order = append(order, "outer-start")
			s.Schedule(func() { order = append(order, "inner-1") })
			s.Schedule(func() { order = append(order, "inner-2") })
			order = append(order, "outer-end")
		})
		assert.Equal(t, []string{"outer-start", "outer-end", "inner-1", "inner-2"}, order)
	})

	t.Run("取消排队中的任务", func(t *testing.T) {
		s := NewTrampolineScheduler()
		var ran bool
		s.Schedule(func() {
			d := s.Schedule(func() { ran = true })
			d.Dispose()
		})
		assert.False(t, ran)
	})

	t.Run("不同goroutine互不影响", func(t *testing.T) {
		s := NewTrampolineScheduler()
		var wg sync.WaitGroup
		var total int32
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.Schedule(func() {
					s.Schedule(func() { atomic.AddInt32(&total, 1) })
					atomic.AddInt32(&total, 1)
				})
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(20), atomic.LoadInt32(&total))
	})
}

// ============================================================================
// 新线程与IO调度器测试
// ============================================================================

func TestNewThreadScheduler(t *testing.T) {
	t.Run("在其他goroutine执行", func(t *testing.T) {
		s := NewNewThreadScheduler()
		callerID := goid.Get()
		ids := make(chan int64, 1)
		s.Schedule(func() { ids <- goid.Get() })
		select {
		case id := <-ids:
			assert.NotEqual(t, callerID, id)
		case <-time.After(time.Second):
			t.Fatal("任务没有执行")
		}
	})

	t.Run("取消延迟任务", func(t *testing.T) {
		s := NewNewThreadScheduler()
		var ran int32
		d := s.ScheduleWithDelay(func() { atomic.StoreInt32(&ran, 1) }, 50*time.Millisecond)
		d.Dispose()
		time.Sleep(100 * time.Millisecond)
		assert.Equal(t, int32(0), atomic.LoadInt32(&ran))
	})

	t.Run("IO调度器限制并发", func(t *testing.T) {
		s := NewIOScheduler(2)
		var active, peak int32
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			s.Schedule(func() {
				defer wg.Done()
				n := atomic.AddInt32(&active, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				atomic.AddInt32(&active, -1)
			})
		}
		wg.Wait()
		assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
	})
}

// ============================================================================
// 线程池调度器测试
// ============================================================================

func TestPoolScheduler(t *testing.T) {
	t.Run("调度从不阻塞调用者", func(t *testing.T) {
		s := NewPoolScheduler(1)
		defer s.(*poolScheduler).Shutdown()

		release := make(chan struct{})
		var done sync.WaitGroup
		start := time.Now()
		for i := 0; i < 10; i++ {
			done.Add(1)
			s.Schedule(func() {
				defer done.Done()
				<-release
			})
		}
		assert.Less(t, time.Since(start), 100*time.Millisecond)
		close(release)
		done.Wait()
	})

	t.Run("并发数不超过workers", func(t *testing.T) {
		s := NewPoolScheduler(3)
		defer s.(*poolScheduler).Shutdown()
		assert.Equal(t, 3, s.(*poolScheduler).Workers())

		var active, peak int32
		var wg sync.WaitGroup
		for i := 0; i < 12; i++ {
			wg.Add(1)
			s.Schedule(func() {
				defer wg.Done()
				n := atomic.AddInt32(&active, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&active, -1)
			})
		}
		wg.Wait()
		assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
	})

	t.Run("关闭后返回已释放的Disposable", func(t *testing.T) {
		s := NewPoolScheduler(2)
		s.(*poolScheduler).Shutdown()
		assert.True(t, isShutdown(s))

		var ran int32
		d := s.Schedule(func() { atomic.StoreInt32(&ran, 1) })
		assert.True(t, d.IsDisposed())
		time.Sleep(20 * time.Millisecond)
		assert.Equal(t, int32(0), atomic.LoadInt32(&ran))
	})

	t.Run("任务panic不影响后续任务", func(t *testing.T) {
		silenceLogs(t)
		unhandled := captureUnhandled(t)
		s := NewPoolScheduler(1)
		defer s.(*poolScheduler).Shutdown()

		s.Schedule(func() { panic("boom") })
		done := make(chan struct{})
		s.Schedule(func() { close(done) })

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("后续任务没有执行")
		}
		require.Eventually(t, func() bool { return len(unhandled()) == 1 }, time.Second, 5*time.Millisecond)
	})

	t.Run("在池中任务内关闭不会死锁", func(t *testing.T) {
		s := NewPoolScheduler(2)
		done := make(chan struct{})
		s.Schedule(func() {
			s.(*poolScheduler).Shutdown()
			close(done)
		})

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("池中任务调用Shutdown没有返回")
		}
		assert.True(t, isShutdown(s))
	})

	t.Run("并发调度与关闭", func(t *testing.T) {
		s := NewPoolScheduler(2)
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 50; j++ {
					s.Schedule(func() {})
				}
			}()
		}
		s.(*poolScheduler).Shutdown()
		wg.Wait()
		assert.True(t, s.Schedule(func() {}).IsDisposed())
	})

	t.Run("关闭时排队中的任务收到通知", func(t *testing.T) {
		s := NewPoolScheduler(1)
		started, release := make(chan struct{}), make(chan struct{})
		s.Schedule(func() {
			close(started)
			<-release
		})
		<-started

		var ran, aborted int32
		d := scheduleOrAbort(s, func() { atomic.StoreInt32(&ran, 1) }, func() { atomic.StoreInt32(&aborted, 1) })

		shutdown := make(chan struct{})
		go func() {
			s.(*poolScheduler).Shutdown()
			close(shutdown)
		}()
		require.Eventually(t, func() bool { return atomic.LoadInt32(&aborted) == 1 }, time.Second, 5*time.Millisecond)
		close(release)
		<-shutdown

		assert.True(t, d.IsDisposed())
		assert.Equal(t, int32(0), atomic.LoadInt32(&ran))
	})

	t.Run("关闭之后调度立即通知", func(t *testing.T) {
		s := NewPoolScheduler(1)
		s.(*poolScheduler).Shutdown()
		var aborted int32
		d := scheduleOrAbort(s, func() {}, func() { atomic.AddInt32(&aborted, 1) })
		assert.True(t, d.IsDisposed())
		assert.Equal(t, int32(1), atomic.LoadInt32(&aborted))
	})
}

// ============================================================================
// 单线程调度器测试
// ============================================================================

func TestSingleThreadScheduler(t *testing.T) {
	t.Run("按提交顺序在同一个worker执行", func(t *testing.T) {
		s := NewSingleThreadScheduler()
		defer s.Shutdown()

		var mu sync.Mutex
		var order []int
		var onWorker int32 = 1
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			i := i
			wg.Add(1)
			s.Schedule(func() {
				defer wg.Done()
				if !s.IsWorkerGoroutine() {
					atomic.StoreInt32(&onWorker, 0)
				}
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
			})
		}
		wg.Wait()

		assert.Equal(t, int32(1), atomic.LoadInt32(&onWorker))
		require.Len(t, order, 50)
		for i, v := range order {
			assert.Equal(t, i, v)
		}
		assert.False(t, s.IsWorkerGoroutine())
	})

	t.Run("关闭后不再执行", func(t *testing.T) {
		s := NewSingleThreadScheduler()
		s.Shutdown()
		assert.True(t, s.IsShutdown())
		assert.True(t, s.Schedule(func() {}).IsDisposed())
	})

	t.Run("关闭时丢弃的任务收到通知", func(t *testing.T) {
		s := NewSingleThreadScheduler()
		started, release := make(chan struct{}), make(chan struct{})
		s.Schedule(func() {
			close(started)
			<-release
		})
		<-started

		var aborted int32
		scheduleOrAbort(s, func() {}, func() { atomic.AddInt32(&aborted, 1) })
		s.Shutdown()
		close(release)
		assert.Equal(t, int32(1), atomic.LoadInt32(&aborted))
	})
}

// ============================================================================
// 周期与上下文调度测试
// ============================================================================

func TestSchedulePeriodic(t *testing.T) {
	t.Run("按周期执行直到取消", func(t *testing.T) {
		s := NewNewThreadScheduler()
		var runs int32
		d := s.SchedulePeriodic(func() { atomic.AddInt32(&runs, 1) }, 0, 10*time.Millisecond)
		require.Eventually(t, func() bool { return atomic.LoadInt32(&runs) >= 3 }, time.Second, 5*time.Millisecond)

		d.Dispose()
		time.Sleep(20 * time.Millisecond)
		stopped := atomic.LoadInt32(&runs)
		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, stopped, atomic.LoadInt32(&runs))
	})

	t.Run("同步调度器上由handle停止", func(t *testing.T) {
		s := NewTrampolineScheduler()
		var runs int
		d := startPeriodic(s, func(handle Disposable) {
			runs++
			if runs == 3 {
				handle.Dispose()
			}
		}, 0, time.Millisecond)
		assert.Equal(t, 3, runs)
		assert.True(t, d.IsDisposed())
	})
}

func TestScheduleWithContext(t *testing.T) {
	t.Run("ctx已取消时不执行", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		var ran bool
		d := NewImmediateScheduler().ScheduleWithContext(ctx, func() { ran = true })
		assert.False(t, ran)
		assert.True(t, d.IsDisposed())
	})

	t.Run("ctx取消时取消排队的任务", func(t *testing.T) {
		ts := NewTestScheduler()
		ctx, cancel := context.WithCancel(context.Background())
		var ran bool
		ts.ScheduleWithContext(ctx, func() { ran = true })
		cancel()
		require.Eventually(t, func() bool { return ts.Pending() == 0 }, time.Second, time.Millisecond)
		ts.TriggerActions()
		assert.False(t, ran)
	})
}
