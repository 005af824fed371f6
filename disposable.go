// Disposable implementations for rxcore
// 资源释放：单个句柄、组合句柄、可替换句柄
package rxcore

import (
	"sync"
	"sync/atomic"
)

// Disposable 可释放资源的接口
type Disposable interface {
	// Dispose 释放资源，重复调用无副作用
	Dispose()
	// IsDisposed 检查是否已释放
	IsDisposed() bool
}

// ============================================================================
// 基础Disposable
// ============================================================================

// baseDisposable 基础可释放资源实现
type baseDisposable struct {
	disposed int32
	action   func()
}

// NewDisposable 创建释放时执行action的Disposable
func NewDisposable(action func()) Disposable {
	return &baseDisposable{action: action}
}

// Disposed 返回一个已经释放的Disposable
func Disposed() Disposable {
	return &baseDisposable{disposed: 1}
}

// Dispose 释放资源
func (d *baseDisposable) Dispose() {
	if atomic.CompareAndSwapInt32(&d.disposed, 0, 1) {
		if d.action != nil {
			d.action()
		}
	}
}

// IsDisposed 检查是否已释放
func (d *baseDisposable) IsDisposed() bool {
	return atomic.LoadInt32(&d.disposed) == 1
}

// ============================================================================
// CompositeDisposable
// ============================================================================

// CompositeDisposable 组合式资源管理器
type CompositeDisposable struct {
	mu        sync.Mutex
	disposed  bool
	resources []Disposable
}

// NewCompositeDisposable 创建组合式资源管理器
func NewCompositeDisposable(disposables ...Disposable) *CompositeDisposable {
	cd := &CompositeDisposable{}
	for _, d := range disposables {
		cd.Add(d)
	}
	return cd
}

// Add 添加可释放资源，已释放的组合会立即释放新成员。返回是否已加入
func (cd *CompositeDisposable) Add(disposable Disposable) bool {
	if disposable == nil {
		return false
	}

	cd.mu.Lock()
	if cd.disposed {
		cd.mu.Unlock()
		disposable.Dispose()
		return false
	}
	cd.resources = append(cd.resources, disposable)
	cd.mu.Unlock()
	return true
}

// Remove 移除并释放成员
func (cd *CompositeDisposable) Remove(disposable Disposable) bool {
	if cd.Delete(disposable) {
		disposable.Dispose()
		return true
	}
	return false
}

// Delete 移除成员但不释放
func (cd *CompositeDisposable) Delete(disposable Disposable) bool {
	cd.mu.Lock()
	defer cd.mu.Unlock()

	for i, r := range cd.resources {
		if r == disposable {
			cd.resources = append(cd.resources[:i], cd.resources[i+1:]...)
			return true
		}
	}
	return false
}

// Clear 释放并移除所有成员，组合本身仍可继续使用
func (cd *CompositeDisposable) Clear() {
	cd.mu.Lock()
	resources := cd.resources
	cd.resources = nil
	cd.mu.Unlock()

	for _, r := range resources {
		r.Dispose()
	}
}

// Dispose 释放所有资源并永久标记为已释放
func (cd *CompositeDisposable) Dispose() {
	cd.mu.Lock()
	if cd.disposed {
		cd.mu.Unlock()
		return
	}
	cd.disposed = true
	resources := cd.resources
	cd.resources = nil
	cd.mu.Unlock()

	for _, r := range resources {
		r.Dispose()
	}
}

// IsDisposed 检查是否已释放
func (cd *CompositeDisposable) IsDisposed() bool {
	cd.mu.Lock()
	defer cd.mu.Unlock()
	return cd.disposed
}

// Size 当前成员数量
func (cd *CompositeDisposable) Size() int {
	cd.mu.Lock()
	defer cd.mu.Unlock()
	return len(cd.resources)
}

// ============================================================================
// SerialDisposable
// ============================================================================

// SerialDisposable 持有一个可替换的成员，替换时释放旧成员
type SerialDisposable struct {
	mu       sync.Mutex
	disposed bool
	current  Disposable
}

// NewSerialDisposable 创建可替换的Disposable
func NewSerialDisposable() *SerialDisposable {
	return &SerialDisposable{}
}

// Set 替换当前成员
func (sd *SerialDisposable) Set(disposable Disposable) {
	sd.mu.Lock()
	if sd.disposed {
		sd.mu.Unlock()
		if disposable != nil {
			disposable.Dispose()
		}
		return
	}
	previous := sd.current
	sd.current = disposable
	sd.mu.Unlock()

	if previous != nil {
		previous.Dispose()
	}
}

// Dispose 释放当前成员
func (sd *SerialDisposable) Dispose() {
	sd.mu.Lock()
	if sd.disposed {
		sd.mu.Unlock()
		return
	}
	sd.disposed = true
	current := sd.current
	sd.current = nil
	sd.mu.Unlock()

	if current != nil {
		current.Dispose()
	}
}

// IsDisposed 检查是否已释放
func (sd *SerialDisposable) IsDisposed() bool {
	sd.mu.Lock()
	defer sd.mu.Unlock()
	return sd.disposed
}
