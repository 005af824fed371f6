// Scheduler implementations for rxcore
// 实现调度器系统，支持立即、蹦床、新线程、线程池、单线程等执行策略
package rxcore

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/petermattis/goid"
	"golang.org/x/sync/semaphore"
)

// Scheduler 调度器接口，控制任务执行时机和方式
type Scheduler interface {
	// Schedule 调度一个任务
	Schedule(action func()) Disposable
	// ScheduleWithDelay 延迟调度一个任务
	ScheduleWithDelay(action func(), delay time.Duration) Disposable
	// SchedulePeriodic 周期调度，前一次执行结束后才会安排下一次
	SchedulePeriodic(action func(), initialDelay, period time.Duration) Disposable
	// ScheduleWithContext 带上下文的调度，ctx取消时任务随之取消
	ScheduleWithContext(ctx context.Context, action func()) Disposable
	// Now 调度器的当前时间
	Now() time.Time
}

// shutdowner 可关闭的调度器
type shutdowner interface {
	Shutdown()
	IsShutdown() bool
}

func isShutdown(s Scheduler) bool {
	if sd, ok := s.(shutdowner); ok {
		return sd.IsShutdown()
	}
	return false
}

// ============================================================================
// 任务
// ============================================================================

// scheduledTask 可取消的任务。onShutdown在调度器关闭导致任务被丢弃时调用
type scheduledTask struct {
	action     func()
	disposed   int32
	onCancel   func()
	onShutdown func()
}

func newTask(action func()) *scheduledTask {
	return &scheduledTask{action: action}
}

func (t *scheduledTask) run() {
	if atomic.LoadInt32(&t.disposed) == 1 {
		return
	}
	runSafely(t.action)
}

// Dispose 取消任务
func (t *scheduledTask) Dispose() {
	if atomic.CompareAndSwapInt32(&t.disposed, 0, 1) && t.onCancel != nil {
		t.onCancel()
	}
}

// IsDisposed 检查是否已取消
func (t *scheduledTask) IsDisposed() bool {
	return atomic.LoadInt32(&t.disposed) == 1
}

// abort 调度器关闭时丢弃尚未执行的任务
func (t *scheduledTask) abort() {
	if !atomic.CompareAndSwapInt32(&t.disposed, 0, 1) {
		return
	}
	if t.onCancel != nil {
		t.onCancel()
	}
	if t.onShutdown != nil {
		runSafely(t.onShutdown)
	}
}

// shutdownAware 任务因关闭被丢弃时能够通知调用者的调度器
type shutdownAware interface {
	scheduleOrAbort(action func(), onShutdown func()) Disposable
}

// scheduleOrAbort 调度action，调度器已关闭或关闭时任务仍在排队则调用onShutdown
func scheduleOrAbort(s Scheduler, action func(), onShutdown func()) Disposable {
	if sa, ok := s.(shutdownAware); ok {
		return sa.scheduleOrAbort(action, onShutdown)
	}
	if isShutdown(s) {
		onShutdown()
		return Disposed()
	}
	d := s.Schedule(action)
	if d.IsDisposed() && isShutdown(s) {
		onShutdown()
	}
	return d
}

// runSafely 执行任务，panic交给未处理错误钩子，调度器不会因此退出
func runSafely(action func()) {
	defer func() {
		if r := recover(); r != nil {
			err := NewPanicError(r)
			Logger().Error().Err(err).Msg("scheduled action panicked")
			ReportUnhandled(err)
		}
	}()
	action()
}

// scheduleWithContext 通用的上下文调度实现
func scheduleWithContext(s Scheduler, ctx context.Context, action func()) Disposable {
	if ctx.Err() != nil {
		return Disposed()
	}
	task := s.Schedule(func() {
		if ctx.Err() != nil {
			return
		}
		action()
	})
	stop := context.AfterFunc(ctx, task.Dispose)
	return NewDisposable(func() {
		stop()
		task.Dispose()
	})
}

// ============================================================================
// 周期任务
// ============================================================================

// periodicTask 以固定速率重复执行，按调度器时钟补偿漂移
type periodicTask struct {
	scheduler Scheduler
	action    func(handle Disposable)
	period    time.Duration
	start     time.Time
	runs      int64

	mu     sync.Mutex
	latest int64
	serial *SerialDisposable
}

func schedulePeriodic(s Scheduler, action func(), initialDelay, period time.Duration) Disposable {
	return startPeriodic(s, func(Disposable) { action() }, initialDelay, period)
}

// startPeriodic 只依赖ScheduleWithDelay与Now，action可通过handle在执行中停止后续调度
func startPeriodic(s Scheduler, action func(handle Disposable), initialDelay, period time.Duration) Disposable {
	if initialDelay < 0 {
		initialDelay = 0
	}
	p := &periodicTask{
		scheduler: s,
		action:    action,
		period:    period,
		start:     s.Now().Add(initialDelay),
		latest:    -1,
		serial:    NewSerialDisposable(),
	}
	p.track(0, s.ScheduleWithDelay(p.run, initialDelay))
	return p.serial
}

// track 同步调度器上后续的调度可能先于前一次返回，只保留最新的一次
func (p *periodicTask) track(seq int64, d Disposable) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if seq < p.latest {
		return
	}
	p.latest = seq
	p.serial.Set(d)
}

func (p *periodicTask) run() {
	if p.serial.IsDisposed() {
		return
	}
	p.action(p.serial)
	if p.serial.IsDisposed() {
		return
	}

	p.runs++
	seq := p.runs
	next := p.start.Add(time.Duration(seq) * p.period)
	delay := next.Sub(p.scheduler.Now())
	if delay < 0 {
		delay = 0
	}
	p.track(seq, p.scheduler.ScheduleWithDelay(p.run, delay))
}

// ============================================================================
// 立即调度器 - Immediate Scheduler
// ============================================================================

// immediateScheduler 在调用者的goroutine中同步执行任务，延迟任务会阻塞等待
type immediateScheduler struct{}

// NewImmediateScheduler 创建立即调度器
func NewImmediateScheduler() Scheduler {
	return &immediateScheduler{}
}

// Schedule 立即执行任务
func (s *immediateScheduler) Schedule(action func()) Disposable {
	task := newTask(action)
	task.run()
	return task
}

// ScheduleWithDelay 阻塞delay后执行任务
func (s *immediateScheduler) ScheduleWithDelay(action func(), delay time.Duration) Disposable {
	if delay > 0 {
		time.Sleep(delay)
	}
	return s.Schedule(action)
}

// SchedulePeriodic 周期执行
func (s *immediateScheduler) SchedulePeriodic(action func(), initialDelay, period time.Duration) Disposable {
	return schedulePeriodic(s, action, initialDelay, period)
}

// ScheduleWithContext 带上下文执行任务
func (s *immediateScheduler) ScheduleWithContext(ctx context.Context, action func()) Disposable {
	return scheduleWithContext(s, ctx, action)
}

// Now 当前时间
func (s *immediateScheduler) Now() time.Time {
	return time.Now()
}

// ============================================================================
// 蹦床调度器 - Trampoline Scheduler
// ============================================================================

// trampolineScheduler 在当前goroutine执行任务。运行中嵌套调度的任务排队，
// 外层任务返回后按FIFO执行
type trampolineScheduler struct {
	mu     sync.Mutex
	queues map[int64]*[]*scheduledTask
}

// NewTrampolineScheduler 创建蹦床调度器
func NewTrampolineScheduler() Scheduler {
	return &trampolineScheduler{queues: make(map[int64]*[]*scheduledTask)}
}

// Schedule 在当前goroutine调度任务
func (s *trampolineScheduler) Schedule(action func()) Disposable {
	task := newTask(action)
	gid := goid.Get()

	s.mu.Lock()
	if queue, running := s.queues[gid]; running {
		*queue = append(*queue, task)
		s.mu.Unlock()
		return task
	}
	queue := make([]*scheduledTask, 0)
	s.queues[gid] = &queue
	s.mu.Unlock()

	task.run()
	for {
		s.mu.Lock()
		pending := s.queues[gid]
		if len(*pending) == 0 {
			delete(s.queues, gid)
			s.mu.Unlock()
			return task
		}
		next := (*pending)[0]
		*pending = (*pending)[1:]
		s.mu.Unlock()

		next.run()
	}
}

// ScheduleWithDelay 阻塞delay后调度任务
func (s *trampolineScheduler) ScheduleWithDelay(action func(), delay time.Duration) Disposable {
	return s.Schedule(func() {
		if delay > 0 {
			time.Sleep(delay)
		}
		action()
	})
}

// SchedulePeriodic 周期执行
func (s *trampolineScheduler) SchedulePeriodic(action func(), initialDelay, period time.Duration) Disposable {
	return schedulePeriodic(s, action, initialDelay, period)
}

// ScheduleWithContext 带上下文调度任务
func (s *trampolineScheduler) ScheduleWithContext(ctx context.Context, action func()) Disposable {
	return scheduleWithContext(s, ctx, action)
}

// Now 当前时间
func (s *trampolineScheduler) Now() time.Time {
	return time.Now()
}

// ============================================================================
// 新线程调度器 - New Thread Scheduler
// ============================================================================

// newThreadScheduler 为每个任务创建新的goroutine，maxGoroutines>0时限制并发
type newThreadScheduler struct {
	sem *semaphore.Weighted
}

// NewNewThreadScheduler 创建不限并发的新线程调度器
func NewNewThreadScheduler() Scheduler {
	return &newThreadScheduler{}
}

// NewIOScheduler 创建IO调度器，maxGoroutines<=0表示不限制
func NewIOScheduler(maxGoroutines int) Scheduler {
	s := &newThreadScheduler{}
	if maxGoroutines > 0 {
		s.sem = semaphore.NewWeighted(int64(maxGoroutines))
	}
	return s
}

// Schedule 在新goroutine中执行任务
func (s *newThreadScheduler) Schedule(action func()) Disposable {
	task := newTask(action)
	go s.run(task)
	return task
}

func (s *newThreadScheduler) run(task *scheduledTask) {
	if s.sem != nil {
		if err := s.sem.Acquire(context.Background(), 1); err != nil {
			return
		}
		defer s.sem.Release(1)
	}
	task.run()
}

// ScheduleWithDelay 延迟在新goroutine中执行任务
func (s *newThreadScheduler) ScheduleWithDelay(action func(), delay time.Duration) Disposable {
	if delay <= 0 {
		return s.Schedule(action)
	}
	task := newTask(action)
	timer := time.AfterFunc(delay, func() { s.run(task) })
	task.onCancel = func() { timer.Stop() }
	return task
}

// SchedulePeriodic 周期执行
func (s *newThreadScheduler) SchedulePeriodic(action func(), initialDelay, period time.Duration) Disposable {
	return schedulePeriodic(s, action, initialDelay, period)
}

// ScheduleWithContext 带上下文在新goroutine中执行任务
func (s *newThreadScheduler) ScheduleWithContext(ctx context.Context, action func()) Disposable {
	return scheduleWithContext(s, ctx, action)
}

// Now 当前时间
func (s *newThreadScheduler) Now() time.Time {
	return time.Now()
}

// ============================================================================
// 线程池调度器 - Computation Scheduler
// ============================================================================

// poolScheduler 固定并发数的调度器。调度本身从不阻塞调用者，
// 超出并发数的任务在信号量上排队，执行顺序不做保证
type poolScheduler struct {
	workers int
	sem     *semaphore.Weighted
	ctx     context.Context
	cancel  context.CancelFunc

	// mu 保证stopped置位之后不再有wg.Add
	mu      sync.Mutex
	wg      sync.WaitGroup
	stopped int32

	// running 正在执行任务的goroutine
	running sync.Map
}

// NewPoolScheduler 创建固定并发数的调度器，workers<=0时使用CPU核数
func NewPoolScheduler(workers int) Scheduler {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &poolScheduler{
		workers: workers,
		sem:     semaphore.NewWeighted(int64(workers)),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Schedule 在池中执行任务
func (s *poolScheduler) Schedule(action func()) Disposable {
	return s.scheduleOrAbort(action, nil)
}

func (s *poolScheduler) scheduleOrAbort(action func(), onShutdown func()) Disposable {
	task := newTask(action)
	task.onShutdown = onShutdown
	s.submit(task)
	return task
}

// submit 关闭之后提交或仍在信号量上排队的任务被丢弃
func (s *poolScheduler) submit(task *scheduledTask) {
	s.mu.Lock()
	if s.IsShutdown() {
		s.mu.Unlock()
		task.abort()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		if err := s.sem.Acquire(s.ctx, 1); err != nil {
			task.abort()
			return
		}
		defer s.sem.Release(1)
		if s.IsShutdown() {
			task.abort()
			return
		}

		gid := goid.Get()
		s.running.Store(gid, struct{}{})
		defer s.running.Delete(gid)
		task.run()
	}()
}

// ScheduleWithDelay 延迟在池中执行任务
func (s *poolScheduler) ScheduleWithDelay(action func(), delay time.Duration) Disposable {
	if delay <= 0 {
		return s.Schedule(action)
	}
	task := newTask(action)
	if s.IsShutdown() {
		task.abort()
		return task
	}
	timer := time.AfterFunc(delay, func() { s.submit(task) })
	task.onCancel = func() { timer.Stop() }
	return task
}

// SchedulePeriodic 周期执行
func (s *poolScheduler) SchedulePeriodic(action func(), initialDelay, period time.Duration) Disposable {
	return schedulePeriodic(s, action, initialDelay, period)
}

// ScheduleWithContext 带上下文在池中执行任务
func (s *poolScheduler) ScheduleWithContext(ctx context.Context, action func()) Disposable {
	return scheduleWithContext(s, ctx, action)
}

// Now 当前时间
func (s *poolScheduler) Now() time.Time {
	return time.Now()
}

// Workers 并发数
func (s *poolScheduler) Workers() int {
	return s.workers
}

// Shutdown 关闭调度器，排队中的任务不再执行。从池中任务调用时不等待正在执行的任务
func (s *poolScheduler) Shutdown() {
	s.mu.Lock()
	if !atomic.CompareAndSwapInt32(&s.stopped, 0, 1) {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.cancel()
	if !s.isWorkerGoroutine() {
		s.wg.Wait()
	}
	Logger().Debug().Int("workers", s.workers).Msg("pool scheduler shut down")
}

func (s *poolScheduler) isWorkerGoroutine() bool {
	_, ok := s.running.Load(goid.Get())
	return ok
}

// IsShutdown 检查是否已关闭
func (s *poolScheduler) IsShutdown() bool {
	return atomic.LoadInt32(&s.stopped) == 1
}

// ============================================================================
// 单线程调度器 - Single Thread Scheduler
// ============================================================================

// SingleThreadScheduler 由一个worker goroutine按提交顺序执行任务
type SingleThreadScheduler struct {
	mu       sync.Mutex
	queue    []*scheduledTask
	signal   chan struct{}
	done     chan struct{}
	stopped  int32
	workerID int64
}

// NewSingleThreadScheduler 创建单线程调度器并启动worker
func NewSingleThreadScheduler() *SingleThreadScheduler {
	s := &SingleThreadScheduler{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	started := make(chan struct{})
	go s.worker(started)
	<-started
	return s
}

func (s *SingleThreadScheduler) worker(started chan<- struct{}) {
	atomic.StoreInt64(&s.workerID, goid.Get())
	close(started)

	for {
		select {
		case <-s.done:
			return
		case <-s.signal:
		}

		for {
			s.mu.Lock()
			if len(s.queue) == 0 {
				s.mu.Unlock()
				break
			}
			task := s.queue[0]
			s.queue[0] = nil
			s.queue = s.queue[1:]
			s.mu.Unlock()

			select {
			case <-s.done:
				task.abort()
				return
			default:
			}
			task.run()
		}
	}
}

func (s *SingleThreadScheduler) enqueue(task *scheduledTask) {
	s.mu.Lock()
	if s.IsShutdown() {
		s.mu.Unlock()
		task.abort()
		return
	}
	s.queue = append(s.queue, task)
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

// Schedule 按提交顺序执行任务
func (s *SingleThreadScheduler) Schedule(action func()) Disposable {
	return s.scheduleOrAbort(action, nil)
}

func (s *SingleThreadScheduler) scheduleOrAbort(action func(), onShutdown func()) Disposable {
	task := newTask(action)
	task.onShutdown = onShutdown
	s.enqueue(task)
	return task
}

// ScheduleWithDelay 延迟到期后进入队列
func (s *SingleThreadScheduler) ScheduleWithDelay(action func(), delay time.Duration) Disposable {
	if delay <= 0 {
		return s.Schedule(action)
	}
	task := newTask(action)
	if s.IsShutdown() {
		task.abort()
		return task
	}
	timer := time.AfterFunc(delay, func() { s.enqueue(task) })
	task.onCancel = func() { timer.Stop() }
	return task
}

// SchedulePeriodic 周期执行
func (s *SingleThreadScheduler) SchedulePeriodic(action func(), initialDelay, period time.Duration) Disposable {
	return schedulePeriodic(s, action, initialDelay, period)
}

// ScheduleWithContext 带上下文调度任务
func (s *SingleThreadScheduler) ScheduleWithContext(ctx context.Context, action func()) Disposable {
	return scheduleWithContext(s, ctx, action)
}

// Now 当前时间
func (s *SingleThreadScheduler) Now() time.Time {
	return time.Now()
}

// IsWorkerGoroutine 调用者是否运行在worker上
func (s *SingleThreadScheduler) IsWorkerGoroutine() bool {
	return goid.Get() == atomic.LoadInt64(&s.workerID)
}

// Shutdown 停止worker，队列中剩余任务被丢弃
func (s *SingleThreadScheduler) Shutdown() {
	s.mu.Lock()
	if !atomic.CompareAndSwapInt32(&s.stopped, 0, 1) {
		s.mu.Unlock()
		return
	}
	close(s.done)
	pending := s.queue
	s.queue = nil
	s.mu.Unlock()

	for _, task := range pending {
		task.abort()
	}
	Logger().Debug().Int64("worker", atomic.LoadInt64(&s.workerID)).Msg("single scheduler shut down")
}

// IsShutdown 检查是否已关闭
func (s *SingleThreadScheduler) IsShutdown() bool {
	return atomic.LoadInt32(&s.stopped) == 1
}
