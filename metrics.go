// Scheduler metrics for rxcore
// 带OpenTelemetry指标的调度器包装器
package rxcore

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// instrumentationName 指标的instrumentation scope
const instrumentationName = "github.com/xinjiayu/rxcore"

// MonitoredScheduler 记录调度、完成、失败次数与执行耗时
type MonitoredScheduler struct {
	scheduler Scheduler
	attrs     metric.MeasurementOption

	scheduled metric.Int64Counter
	completed metric.Int64Counter
	failed    metric.Int64Counter
	duration  metric.Float64Histogram
}

// NewMonitoredScheduler 包装调度器，meter为nil时使用全局MeterProvider
func NewMonitoredScheduler(scheduler Scheduler, name string, meter metric.Meter) (*MonitoredScheduler, error) {
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}

	scheduled, err := meter.Int64Counter("rxcore.scheduler.tasks.scheduled",
		metric.WithDescription("Number of actions submitted to the scheduler"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating scheduled counter: %w", err)
	}
	completed, err := meter.Int64Counter("rxcore.scheduler.tasks.completed",
		metric.WithDescription("Number of actions that returned normally"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating completed counter: %w", err)
	}
	failed, err := meter.Int64Counter("rxcore.scheduler.tasks.failed",
		metric.WithDescription("Number of actions that panicked"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating failed counter: %w", err)
	}
	duration, err := meter.Float64Histogram("rxcore.scheduler.task.duration",
		metric.WithDescription("Execution time of scheduled actions"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}

	return &MonitoredScheduler{
		scheduler: scheduler,
		attrs:     metric.WithAttributes(attribute.String("scheduler", name)),
		scheduled: scheduled,
		completed: completed,
		failed:    failed,
		duration:  duration,
	}, nil
}

// wrap 记录一次执行，panic计数后继续向内层调度器传播
func (s *MonitoredScheduler) wrap(action func()) func() {
	ctx := context.Background()
	s.scheduled.Add(ctx, 1, s.attrs)
	return func() {
		start := time.Now()
		defer func() {
			s.duration.Record(ctx, time.Since(start).Seconds(), s.attrs)
			if r := recover(); r != nil {
				s.failed.Add(ctx, 1, s.attrs)
				panic(r)
			}
			s.completed.Add(ctx, 1, s.attrs)
		}()
		action()
	}
}

// Schedule 调度任务并记录指标
func (s *MonitoredScheduler) Schedule(action func()) Disposable {
	return s.scheduler.Schedule(s.wrap(action))
}

func (s *MonitoredScheduler) scheduleOrAbort(action func(), onShutdown func()) Disposable {
	return scheduleOrAbort(s.scheduler, s.wrap(action), onShutdown)
}

// ScheduleWithDelay 延迟调度任务并记录指标
func (s *MonitoredScheduler) ScheduleWithDelay(action func(), delay time.Duration) Disposable {
	return s.scheduler.ScheduleWithDelay(s.wrap(action), delay)
}

// SchedulePeriodic 每次周期执行都单独记录
func (s *MonitoredScheduler) SchedulePeriodic(action func(), initialDelay, period time.Duration) Disposable {
	return schedulePeriodic(s, action, initialDelay, period)
}

// ScheduleWithContext 带上下文调度任务并记录指标
func (s *MonitoredScheduler) ScheduleWithContext(ctx context.Context, action func()) Disposable {
	return scheduleWithContext(s, ctx, action)
}

// Now 内层调度器的时间
func (s *MonitoredScheduler) Now() time.Time {
	return s.scheduler.Now()
}

// Shutdown 关闭内层调度器
func (s *MonitoredScheduler) Shutdown() {
	if sd, ok := s.scheduler.(shutdowner); ok {
		sd.Shutdown()
	}
}

// IsShutdown 内层调度器是否已关闭
func (s *MonitoredScheduler) IsShutdown() bool {
	return isShutdown(s.scheduler)
}
