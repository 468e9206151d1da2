package debounce_test

import (
	"sync"
	"testing"
	"time"

	"github.com/straye-as/salesdesk/internal/debounce"
	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recorder struct {
	mu     sync.Mutex
	values []string
}

func (r *recorder) emit(v string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, v)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.values...)
}

func TestDebouncer_BurstEmitsOnceWithLastValue(t *testing.T) {
	rec := &recorder{}
	d := debounce.New(60*time.Millisecond, rec.emit)
	defer d.Close()

	for _, v := range []string{"a", "ac", "acm", "acme"} {
		d.Push(v)
		time.Sleep(5 * time.Millisecond)
	}
	assert.True(t, d.Pending())

	assert.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(120 * time.Millisecond)

	assert.Equal(t, []string{"acme"}, rec.snapshot())
	assert.False(t, d.Pending())
}

func TestDebouncer_SeparatedPushesEmitEach(t *testing.T) {
	rec := &recorder{}
	d := debounce.New(20*time.Millisecond, rec.emit)
	defer d.Close()

	d.Push("first")
	assert.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	d.Push("second")
	assert.Eventually(t, func() bool { return len(rec.snapshot()) == 2 }, time.Second, 5*time.Millisecond)

	assert.Equal(t, []string{"first", "second"}, rec.snapshot())
}

func TestDebouncer_CancelDropsPending(t *testing.T) {
	rec := &recorder{}
	d := debounce.New(20*time.Millisecond, rec.emit)
	defer d.Close()

	d.Push("draft")
	d.Cancel()
	time.Sleep(60 * time.Millisecond)

	assert.Empty(t, rec.snapshot())
	assert.False(t, d.Pending())
}

func TestDebouncer_FlushEmitsImmediately(t *testing.T) {
	rec := &recorder{}
	d := debounce.New(time.Hour, rec.emit)
	defer d.Close()

	d.Flush()
	assert.Empty(t, rec.snapshot(), "nothing pending, nothing emitted")

	d.Push("now")
	d.Flush()

	assert.Equal(t, []string{"now"}, rec.snapshot())
	assert.False(t, d.Pending())
}

func TestDebouncer_CloseIgnoresLaterPushes(t *testing.T) {
	rec := &recorder{}
	d := debounce.New(10*time.Millisecond, rec.emit)

	d.Close()
	d.Push("late")
	time.Sleep(40 * time.Millisecond)

	assert.Empty(t, rec.snapshot())
	assert.False(t, d.Pending())
}
