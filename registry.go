// Scheduler registry for rxcore
// 显式的调度器注册表：命名预设可覆盖，不存在隐藏的全局单例
package rxcore

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

// SchedulerName 预设调度器名称
type SchedulerName string

const (
	// SchedulerIO 不限并发的IO调度器
	SchedulerIO SchedulerName = "io"
	// SchedulerComputation 固定并发的计算调度器
	SchedulerComputation SchedulerName = "computation"
	// SchedulerImmediate 同步执行的调度器
	SchedulerImmediate SchedulerName = "immediate"
	// SchedulerSingle 单线程FIFO调度器
	SchedulerSingle SchedulerName = "single"
	// SchedulerTrampoline 当前goroutine排队执行的调度器
	SchedulerTrampoline SchedulerName = "trampoline"
)

// SchedulerRegistry 命名调度器集合
type SchedulerRegistry struct {
	mu         sync.RWMutex
	schedulers map[SchedulerName]Scheduler
}

// NewSchedulerRegistry 按配置创建全部预设
func NewSchedulerRegistry(cfg *Config) *SchedulerRegistry {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	r := &SchedulerRegistry{
		schedulers: map[SchedulerName]Scheduler{
			SchedulerIO:          NewIOScheduler(cfg.IOMaxGoroutines),
			SchedulerComputation: NewPoolScheduler(cfg.ComputationWorkers),
			SchedulerImmediate:   NewImmediateScheduler(),
			SchedulerSingle:      NewSingleThreadScheduler(),
			SchedulerTrampoline:  NewTrampolineScheduler(),
		},
	}
	Logger().Debug().
		Int("computation_workers", cfg.ComputationWorkers).
		Int("io_max_goroutines", cfg.IOMaxGoroutines).
		Msg("scheduler registry created")
	return r
}

// Get 按名称查找调度器
func (r *SchedulerRegistry) Get(name SchedulerName) (Scheduler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schedulers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownScheduler, name)
	}
	return s, nil
}

// Override 替换或注册调度器，返回被替换的调度器
func (r *SchedulerRegistry) Override(name SchedulerName, s Scheduler) Scheduler {
	r.mu.Lock()
	defer r.mu.Unlock()
	previous := r.schedulers[name]
	r.schedulers[name] = s
	return previous
}

// Names 已注册的名称，按字母排序
func (r *SchedulerRegistry) Names() []SchedulerName {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]SchedulerName, 0, len(r.schedulers))
	for name := range r.schedulers {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

func (r *SchedulerRegistry) must(name SchedulerName) Scheduler {
	s, err := r.Get(name)
	if err != nil {
		panic(err)
	}
	return s
}

// IO 返回IO调度器
func (r *SchedulerRegistry) IO() Scheduler { return r.must(SchedulerIO) }

// Computation 返回计算调度器
func (r *SchedulerRegistry) Computation() Scheduler { return r.must(SchedulerComputation) }

// Immediate 返回立即调度器
func (r *SchedulerRegistry) Immediate() Scheduler { return r.must(SchedulerImmediate) }

// Single 返回单线程调度器
func (r *SchedulerRegistry) Single() Scheduler { return r.must(SchedulerSingle) }

// Trampoline 返回蹦床调度器
func (r *SchedulerRegistry) Trampoline() Scheduler { return r.must(SchedulerTrampoline) }

// Shutdown 关闭所有可关闭的调度器
func (r *SchedulerRegistry) Shutdown() {
	r.mu.RLock()
	schedulers := make([]Scheduler, 0, len(r.schedulers))
	for _, s := range r.schedulers {
		schedulers = append(schedulers, s)
	}
	r.mu.RUnlock()

	for _, s := range schedulers {
		if sd, ok := s.(shutdowner); ok {
			sd.Shutdown()
		}
	}
}

// ============================================================================
// 默认注册表
// ============================================================================

var defaultRegistry atomic.Pointer[SchedulerRegistry]

// DefaultRegistry 返回默认注册表，首次使用时按DefaultConfig创建
func DefaultRegistry() *SchedulerRegistry {
	if r := defaultRegistry.Load(); r != nil {
		return r
	}
	r := NewSchedulerRegistry(DefaultConfig())
	if defaultRegistry.CompareAndSwap(nil, r) {
		return r
	}
	r.Shutdown()
	return defaultRegistry.Load()
}

// SetDefaultRegistry 替换默认注册表，返回之前的注册表（可能为nil）
func SetDefaultRegistry(r *SchedulerRegistry) *SchedulerRegistry {
	return defaultRegistry.Swap(r)
}
