// Maybe tests for rxcore
package rxcore

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaybe(t *testing.T) {
	t.Run("MaybeJust", func(t *testing.T) {
		var got interface{}
		var completed bool
		MaybeJust(42).SubscribeWithCallbacks(
			func(v interface{}) { got = v },
			nil,
			func() { completed = true },
		)
		assert.Equal(t, 42, got)
		assert.False(t, completed)
	})

	t.Run("MaybeEmpty", func(t *testing.T) {
		var completed bool
		MaybeEmpty().SubscribeWithCallbacks(func(interface{}) {
			t.Error("不应该收到值")
		}, nil, func() { completed = true })
		assert.True(t, completed)
	})

	t.Run("多次终止调用只有第一次生效", func(t *testing.T) {
		silenceLogs(t)
		rec := newSingleValueRecorder()
		MaybeCreate(func(e MaybeEmitter) {
			e.OnComplete()
			e.OnSuccess(1)
			e.OnError(errors.New("late"))
		}).Subscribe(rec.observer())

		items := rec.snapshot()
		require.Len(t, items, 1)
		assert.True(t, items[0].IsComplete())
	})

	t.Run("Map与Filter", func(t *testing.T) {
		rec := newSingleValueRecorder()
		MaybeJust(2).Map(double).Subscribe(rec.observer())
		assert.Equal(t, []interface{}{4}, rec.values())

		filtered := newSingleValueRecorder()
		MaybeJust(3).Filter(func(v interface{}) bool { return v.(int) > 5 }).Subscribe(filtered.observer())
		require.Len(t, filtered.terminals(), 1)
		assert.True(t, filtered.terminals()[0].IsComplete())
	})

	t.Run("DefaultIfEmpty", func(t *testing.T) {
		rec := newSingleValueRecorder()
		MaybeEmpty().DefaultIfEmpty("fallback").Subscribe(rec.observer())
		assert.Equal(t, []interface{}{"fallback"}, rec.values())

		rec = newSingleValueRecorder()
		MaybeJust("value").DefaultIfEmpty("fallback").Subscribe(rec.observer())
		assert.Equal(t, []interface{}{"value"}, rec.values())
	})

	t.Run("ToObservable补发完成", func(t *testing.T) {
		rec := newRecorder()
		MaybeJust(1).ToObservable().Subscribe(rec.observer())
		items := rec.snapshot()
		require.Len(t, items, 2)
		assert.True(t, items[1].IsComplete())
	})

	t.Run("MaybeError", func(t *testing.T) {
		boom := errors.New("boom")
		var got error
		MaybeError(boom).SubscribeWithCallbacks(nil, func(err error) { got = err }, nil)
		assert.ErrorIs(t, got, boom)
	})

	t.Run("ObserveOn与Compose", func(t *testing.T) {
		s := NewTestScheduler()
		rec := newSingleValueRecorder()
		MaybeJust(1).Compose(func(m *Maybe) *Maybe { return m.ObserveOn(s) }).Subscribe(rec.observer())
		assert.Empty(t, rec.values())
		s.TriggerActions()
		assert.Equal(t, []interface{}{1}, rec.values())
	})
}
