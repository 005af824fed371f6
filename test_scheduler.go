// Virtual time scheduler for rxcore
// 用于测试的调度器，可以手动控制时间
package rxcore

import (
	"context"
	"sort"
	"sync"
	"time"
)

// TestScheduler 虚拟时钟调度器，任务只在推进时间时执行
type TestScheduler struct {
	mu    sync.Mutex
	clock time.Duration
	seq   int64
	queue []*virtualTask
}

// virtualTask 调度的动作
type virtualTask struct {
	*scheduledTask
	due time.Duration
	seq int64
}

// NewTestScheduler 创建测试调度器
func NewTestScheduler() *TestScheduler {
	return &TestScheduler{}
}

// Schedule 在当前虚拟时刻调度任务
func (s *TestScheduler) Schedule(action func()) Disposable {
	return s.ScheduleWithDelay(action, 0)
}

// ScheduleWithDelay 延迟调度任务
func (s *TestScheduler) ScheduleWithDelay(action func(), delay time.Duration) Disposable {
	if delay < 0 {
		delay = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	task := &virtualTask{scheduledTask: newTask(action), due: s.clock + delay, seq: s.seq}

	// 按到期时间插入，同一时刻按提交顺序
	i := sort.Search(len(s.queue), func(i int) bool {
		q := s.queue[i]
		return q.due > task.due || (q.due == task.due && q.seq > task.seq)
	})
	s.queue = append(s.queue, nil)
	copy(s.queue[i+1:], s.queue[i:])
	s.queue[i] = task

	return task
}

// SchedulePeriodic 周期调度任务
func (s *TestScheduler) SchedulePeriodic(action func(), initialDelay, period time.Duration) Disposable {
	return schedulePeriodic(s, action, initialDelay, period)
}

// ScheduleWithContext 带上下文调度任务
func (s *TestScheduler) ScheduleWithContext(ctx context.Context, action func()) Disposable {
	return scheduleWithContext(s, ctx, action)
}

// Now 虚拟时钟对应的时间，以Unix纪元为起点
func (s *TestScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Unix(0, 0).Add(s.clock)
}

// Clock 当前虚拟时钟
func (s *TestScheduler) Clock() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock
}

// AdvanceTimeBy 推进时间
func (s *TestScheduler) AdvanceTimeBy(d time.Duration) {
	s.AdvanceTimeTo(s.Clock() + d)
}

// AdvanceTimeTo 推进时间到指定时刻，执行期间新调度且已到期的任务也会执行
func (s *TestScheduler) AdvanceTimeTo(target time.Duration) {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 || s.queue[0].due > target {
			if target > s.clock {
				s.clock = target
			}
			s.mu.Unlock()
			return
		}
		task := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		if task.due > s.clock {
			s.clock = task.due
		}
		s.mu.Unlock()

		task.run()
	}
}

// TriggerActions 执行当前时刻已到期的任务
func (s *TestScheduler) TriggerActions() {
	s.AdvanceTimeTo(s.Clock())
}

// Pending 尚未执行且未取消的任务数
func (s *TestScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.queue {
		if !t.IsDisposed() {
			n++
		}
	}
	return n
}
