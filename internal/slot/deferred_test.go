package slot

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLazy_ComputesOnFirstRead(t *testing.T) {
	calls := 0
	l := NewLazy(func() ([]string, error) {
		calls++
		return []string{"Data1", "Data2", "Data3"}, nil
	})

	assert.False(t, l.Initialized())
	assert.Equal(t, 0, calls)

	v, err := l.Get()
	require.NoError(t, err)
	assert.Equal(t, []string{"Data1", "Data2", "Data3"}, v)
	v, _ = l.Get()
	assert.Equal(t, []string{"Data1", "Data2", "Data3"}, v)
	assert.Equal(t, 1, calls)
	assert.True(t, l.Initialized())
}

func TestLazy_ConcurrentFirstReads(t *testing.T) {
	var calls atomic.Int32
	l := NewLazy(func() (int, error) {
		calls.Add(1)
		return 42, nil
	})

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := l.Get()
			assert.NoError(t, err)
			assert.Equal(t, 42, v)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestLazy_FailureIsRetried(t *testing.T) {
	fail := true
	calls := 0
	l := NewLazy(func() (string, error) {
		calls++
		if fail {
			return "", errors.New("not ready")
		}
		return "ready", nil
	})

	_, err := l.Get()
	require.Error(t, err)
	assert.False(t, l.Initialized())

	fail = false
	v, err := l.Get()
	require.NoError(t, err)
	assert.Equal(t, "ready", v)
	assert.Equal(t, 2, calls)
}

func TestBindLate_ReadBeforeWriteFails(t *testing.T) {
	h := MustHost("activity",
		Bind("title", "home", Plain[string]()),
		BindLate("database", Plain[string]()),
	)

	_, err := Get[string](h, "database")
	require.Error(t, err)
	assert.True(t, IsUninitialized(err))
	assert.Contains(t, err.Error(), "host=activity, slot=database")

	s, err := Lookup[string](h, "database")
	require.NoError(t, err)
	assert.False(t, s.Initialized())
	assert.Equal(t, "", s.Read(), "Read of an unset slot is the zero value")
	assert.Equal(t, map[string]any{"title": "home"}, h.Values())
}

func TestBindLate_FirstWriteInitializes(t *testing.T) {
	var seen []string
	h := MustHost("activity",
		BindLate("textView", Observable(func(_ string, old, new string) {
			seen = append(seen, old+"->"+new)
		})),
	)

	c, err := Set(h, "textView", "initialized")
	require.NoError(t, err)
	assert.True(t, c.Accepted)
	assert.Equal(t, "", c.Old)

	v, err := Get[string](h, "textView")
	require.NoError(t, err)
	assert.Equal(t, "initialized", v)
	assert.Equal(t, []string{"->initialized"}, seen)
}

func TestBindLate_RejectedWriteLeavesSlotUnset(t *testing.T) {
	h := MustHost("activity",
		BindLate("port", Vetoable(func(_ string, _, v int) bool { return v > 0 })),
	)

	c, err := Set(h, "port", -1)
	require.NoError(t, err)
	assert.False(t, c.Accepted)

	_, err = Get[int](h, "port")
	assert.True(t, IsUninitialized(err))
}

func rectangle(t *testing.T) *Host {
	t.Helper()
	h, err := NewHost("rectangle",
		Bind("width", 10, Plain[int]()),
		Bind("height", 5, Plain[int]()),
		BindComputed("area", func(h *Host) (int, error) {
			w, err := Get[int](h, "width")
			if err != nil {
				return 0, err
			}
			ht, err := Get[int](h, "height")
			if err != nil {
				return 0, err
			}
			return w * ht, nil
		}, Plain[int]()),
	)
	require.NoError(t, err)
	return h
}

func TestBindComputed_DerivesOnEveryRead(t *testing.T) {
	h := rectangle(t)

	area, err := Get[int](h, "area")
	require.NoError(t, err)
	assert.Equal(t, 50, area)

	_, err = Set(h, "width", 20)
	require.NoError(t, err)
	area, _ = Get[int](h, "area")
	assert.Equal(t, 100, area)
	assert.Equal(t, 100, h.Values()["area"])
}

func TestBindComputed_IsReadOnly(t *testing.T) {
	h := rectangle(t)

	_, err := Set(h, "area", 7)
	require.Error(t, err)
	assert.True(t, IsReadOnly(err))

	s, err := Lookup[int](h, "area")
	require.NoError(t, err)
	assert.True(t, s.ReadOnly())
	c := s.Write(7)
	assert.False(t, c.Accepted)
	assert.Equal(t, 50, c.New)
}

func TestBindComputed_PresentingPolicyFormats(t *testing.T) {
	h := MustHost("rectangle",
		Bind("width", 3, Plain[int]()),
		BindComputed("label", func(h *Host) (string, error) {
			w, err := Get[int](h, "width")
			return string(rune('0' + w)), err
		}, Presenting(func(s string) string { return "w=" + s })),
	)

	label, err := Get[string](h, "label")
	require.NoError(t, err)
	assert.Equal(t, "w=3", label)
}

func TestBindComputed_PropagatesSiblingError(t *testing.T) {
	h := MustHost("profile",
		BindLate("first", Plain[string]()),
		BindComputed("greeting", func(h *Host) (string, error) {
			f, err := Get[string](h, "first")
			return "hello " + f, err
		}, Plain[string]()),
	)

	_, err := Get[string](h, "greeting")
	assert.True(t, IsUninitialized(err))

	_, _ = Set(h, "first", "Ada")
	g, err := Get[string](h, "greeting")
	require.NoError(t, err)
	assert.Equal(t, "hello Ada", g)
}

func TestBindLazy_CachesFirstValue(t *testing.T) {
	calls := 0
	h := MustHost("report",
		Bind("rows", 3, Plain[int]()),
		BindLazy("summary", func(h *Host) (int, error) {
			calls++
			return Get[int](h, "rows")
		}, Plain[int]()),
	)
	assert.Equal(t, 0, calls, "nothing computed at construction")

	v, err := Get[int](h, "summary")
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	_, _ = Set(h, "rows", 9)
	v, _ = Get[int](h, "summary")
	assert.Equal(t, 3, v, "lazy value is computed once")
	assert.Equal(t, 1, calls)

	_, err = Set(h, "summary", 1)
	assert.True(t, IsReadOnly(err))
}

func TestBindComputed_NilPolicy(t *testing.T) {
	_, err := NewHost("h", BindComputed[int]("x", func(*Host) (int, error) { return 0, nil }, nil))
	assert.Equal(t, ErrCodeNilPolicy, CodeOf(err))

	_, err = NewHost("h", BindLate[int]("y", nil))
	assert.Equal(t, ErrCodeNilPolicy, CodeOf(err))
}
