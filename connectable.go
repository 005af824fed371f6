// Connectable observable for rxcore
// 可连接的Observable：订阅只注册观察者，Connect时才订阅上游
package rxcore

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// ConnectableObservable 通过PublishSubject把一个上游订阅共享给多个观察者。
// 连接之前的信号不会被缓冲
type ConnectableObservable struct {
	source *Observable

	mu         sync.Mutex
	subject    *PublishSubject
	connection *connection
}

// connection 一次连接，上游终止或被释放时结束
type connection struct {
	id       uuid.UUID
	upstream *SerialDisposable
	handle   Disposable
}

// Publish 把冷流转换为可连接流
func (o *Observable) Publish() *ConnectableObservable {
	return &ConnectableObservable{source: o, subject: NewPublishSubject()}
}

// Share 相当于Publish().RefCount()
func (o *Observable) Share() *Observable {
	return o.Publish().RefCount()
}

// Subscribe 注册观察者，不会触发连接
func (c *ConnectableObservable) Subscribe(observer Observer) Disposable {
	if observer == nil {
		observer = callbackObserver(nil, nil, nil)
	}
	e := newEmitter(kindObservable, observer)
	c.add(e)
	return e
}

// SubscribeWithCallbacks 使用回调注册观察者
func (c *ConnectableObservable) SubscribeWithCallbacks(onNext OnNext, onError OnError, onComplete OnComplete) Disposable {
	return c.Subscribe(callbackObserver(onNext, onError, onComplete))
}

func (c *ConnectableObservable) add(e *emitter) {
	c.mu.Lock()
	subject := c.subject
	c.mu.Unlock()
	subject.add(e)
}

// AsObservable 只暴露订阅能力的Observable
func (c *ConnectableObservable) AsObservable() *Observable {
	return newObservable(c.add)
}

// Connect 订阅上游。已连接时返回当前连接，上一次连接已终止时使用新的主题
func (c *ConnectableObservable) Connect() Disposable {
	c.mu.Lock()
	if c.connection != nil {
		handle := c.connection.handle
		c.mu.Unlock()
		return handle
	}
	c.renew()
	subject := c.subject
	conn := &connection{id: uuid.New(), upstream: NewSerialDisposable()}
	conn.handle = NewDisposable(func() {
		c.disconnect(conn)
		conn.upstream.Dispose()
	})
	c.connection = conn
	c.mu.Unlock()

	Logger().Debug().Str("connection", conn.id.String()).Int("observers", subject.ObserverCount()).Msg("connectable connected")

	conn.upstream.Set(c.source.Subscribe(func(item Item) {
		if item.IsTerminal() {
			c.disconnect(conn)
		}
		subject.Emit(item)
	}))
	return conn.handle
}

// renew 未连接且主题已终止时换用新的主题，调用者持有锁
func (c *ConnectableObservable) renew() {
	if c.connection == nil && c.subject.IsTerminated() {
		c.subject = NewPublishSubject()
	}
}

func (c *ConnectableObservable) disconnect(conn *connection) {
	c.mu.Lock()
	current := c.connection == conn
	if current {
		c.connection = nil
	}
	c.mu.Unlock()

	if current {
		Logger().Debug().Str("connection", conn.id.String()).Msg("connectable disconnected")
	}
}

// IsConnected 是否存在活动的连接
func (c *ConnectableObservable) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connection != nil
}

// AutoConnect 第n个观察者订阅时自动连接，n<=0时立即连接
func (c *ConnectableObservable) AutoConnect(n int) *Observable {
	if n <= 0 {
		c.Connect()
		return c.AsObservable()
	}
	var subscribers int32
	return newObservable(func(e *emitter) {
		c.add(e)
		if atomic.AddInt32(&subscribers, 1) == int32(n) {
			c.Connect()
		}
	})
}

// RefCount 第一个观察者订阅时连接，最后一个取消时断开
func (c *ConnectableObservable) RefCount() *Observable {
	var (
		mu          sync.Mutex
		subscribers int
		handle      Disposable
	)
	return newObservable(func(e *emitter) {
		mu.Lock()
		subscribers++
		first := subscribers == 1
		mu.Unlock()

		if first {
			c.mu.Lock()
			c.renew()
			c.mu.Unlock()
		}
		c.add(e)

		e.SetDisposable(NewDisposable(func() {
			mu.Lock()
			subscribers--
			var d Disposable
			if subscribers == 0 {
				d = handle
				handle = nil
			}
			mu.Unlock()
			if d != nil {
				d.Dispose()
			}
		}))

		if !first {
			return
		}
		d := c.Connect()
		mu.Lock()
		orphaned := subscribers == 0
		if !orphaned && handle == nil {
			handle = d
		}
		mu.Unlock()
		if orphaned {
			d.Dispose()
		}
	})
}
