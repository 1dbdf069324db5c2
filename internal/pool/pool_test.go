package pool

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kargones/nwrfc/internal/adapter/nwrfc"
	"github.com/Kargones/nwrfc/internal/adapter/nwrfc/nwrfctest"
	"github.com/Kargones/nwrfc/internal/conn"
	"github.com/Kargones/nwrfc/internal/pkg/apperrors"
	"github.com/Kargones/nwrfc/internal/rfc"
)

var testParams = nwrfc.ConnectionParams{
	"ashost": "10.0.0.1",
	"sysnr":  "00",
	"client": "100",
	"user":   "demo",
	"passwd": "secret",
	"lang":   "EN",
}

func newTestPool(t *testing.T, sys *nwrfctest.System, mutate ...func(*Options)) *Pool {
	t.Helper()
	o := Options{
		MaxSize:        2,
		AcquireTimeout: 2 * time.Second,
		Conn:           conn.Options{Params: testParams},
	}
	for _, fn := range mutate {
		fn(&o)
	}
	p, err := New(sys, o)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func echo(text string) rfc.Params {
	return rfc.Params{"REQUTEXT": rfc.Text(text)}
}

func TestLease_CallTwice(t *testing.T) {
	sys := nwrfctest.NewSystem(nwrfctest.WithStrictAffinity())
	p := newTestPool(t, sys)

	lease, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defer lease.Release()

	for _, text := range []string{"first", "second"} {
		res, err := lease.Call(context.Background(), "STFC_CONNECTION", echo(text))
		require.NoError(t, err)
		assert.Equal(t, rfc.Text(text), res["ECHOTEXT"])
	}
	assert.Equal(t, "NPL", lease.Attributes().SysID)
	assert.Equal(t, 1, sys.Opens())
	assert.Equal(t, 0, sys.AffinityViolations(), "все операции в потоке, открывшем соединение")
}

func TestPool_Capacity(t *testing.T) {
	sys := nwrfctest.NewSystem()
	p := newTestPool(t, sys, func(o *Options) { o.AcquireTimeout = 50 * time.Millisecond })

	first, err := p.Acquire(context.Background())
	require.NoError(t, err)
	second, err := p.Acquire(context.Background())
	require.NoError(t, err)

	_, err = p.Acquire(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrPoolExhausted))
	assert.LessOrEqual(t, sys.MaxLive(), 2)

	first.Release()
	third, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.ConnID(), third.ConnID(), "освобождённое соединение переиспользуется")
	assert.Equal(t, 2, sys.Opens())

	second.Release()
	third.Release()
	assert.Equal(t, Stats{MaxSize: 2, Live: 2, Idle: 2, InUse: 0}, waitStats(t, p, func(s Stats) bool { return s.Idle == 2 }))
}

func TestPool_BrokenNotReused(t *testing.T) {
	sys := nwrfctest.NewSystem()
	p := newTestPool(t, sys, func(o *Options) { o.MaxSize = 1 })

	lease, err := p.Acquire(context.Background())
	require.NoError(t, err)
	sys.FailNextInvoke(nwrfctest.CommunicationFailure("connection reset by peer"))
	_, err = lease.Call(context.Background(), "STFC_CONNECTION", echo("x"))
	require.True(t, apperrors.IsRetryable(err))
	brokenID := lease.ConnID()
	lease.Release()

	lease, err = p.Acquire(context.Background())
	require.NoError(t, err)
	defer lease.Release()
	assert.NotEqual(t, brokenID, lease.ConnID())
	assert.Equal(t, 2, sys.Opens())
	assert.Equal(t, 1, sys.Live())

	_, err = lease.Call(context.Background(), "STFC_CONNECTION", echo("retry"))
	assert.NoError(t, err)
}

func TestPool_AbapExceptionKeepsConnection(t *testing.T) {
	sys := nwrfctest.NewSystem()
	p := newTestPool(t, sys, func(o *Options) { o.MaxSize = 1 })

	_, err := p.Call(context.Background(), "RFC_RAISE_ERROR", rfc.Params{"MESSAGETYPE": rfc.Text("")})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrAbapException))
	_, err = p.Call(context.Background(), "STFC_CONNECTION", echo("x"))
	require.NoError(t, err)
	assert.Equal(t, 1, sys.Opens())
}

func TestPool_CanceledConsumesNoSlot(t *testing.T) {
	sys := nwrfctest.NewSystem()
	p := newTestPool(t, sys, func(o *Options) { o.MaxSize = 1 })

	held, err := p.Acquire(context.Background())
	require.NoError(t, err)

	t.Run("отмена во время ожидания", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := p.Acquire(ctx)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCanceled))
	})

	t.Run("контекст уже отменён", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := p.Acquire(ctx)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCanceled))
	})

	held.Release()
	lease, err := p.Acquire(context.Background())
	require.NoError(t, err)
	lease.Release()
	assert.Equal(t, 1, sys.Opens())
}

func TestPool_AbandonedAsyncAcquire(t *testing.T) {
	sys := nwrfctest.NewSystem()
	p := newTestPool(t, sys, func(o *Options) { o.MaxSize = 1 })

	t.Run("ожидание прервано до выдачи", func(t *testing.T) {
		held, err := p.Acquire(context.Background())
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err = p.AcquireAsync(context.Background()).Wait(ctx)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCanceled))

		held.Release()
		lease, err := p.Acquire(context.Background())
		require.NoError(t, err, "брошенное ожидание не занимает место")
		lease.Release()
		waitStats(t, p, func(s Stats) bool { return s.InUse == 0 && s.Idle == 1 })
	})

	t.Run("аренда выдана одновременно с отменой", func(t *testing.T) {
		held, err := p.Acquire(context.Background())
		require.NoError(t, err)

		f := p.AcquireAsync(context.Background())
		ctx, cancel := context.WithCancel(context.Background())
		held.Release()
		cancel()
		if lease, err := f.Wait(ctx); err == nil {
			lease.Release()
		} else {
			assert.True(t, apperrors.HasCode(err, apperrors.ErrCanceled))
		}

		waitStats(t, p, func(s Stats) bool { return s.InUse == 0 && s.Idle == 1 })
		lease, err := p.Acquire(context.Background())
		require.NoError(t, err)
		lease.Release()
	})

	t.Run("готовая аренда возвращается при отменённом ctx", func(t *testing.T) {
		f := p.AcquireAsync(context.Background())
		<-f.Done()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		lease, err := f.Wait(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, p.Stats().InUse)
		lease.Release()
		waitStats(t, p, func(s Stats) bool { return s.InUse == 0 })
	})

	assert.Equal(t, 1, sys.Opens())
}

func TestLease_FIFO(t *testing.T) {
	sys := nwrfctest.NewSystem(nwrfctest.WithStrictAffinity())
	var (
		mu    sync.Mutex
		order []string
	)
	desc := nwrfctest.ConnectionDesc()
	desc.Name = "Z_ORDER"
	sys.Register(desc, func(f *nwrfctest.Frame) error {
		text, err := f.Text("REQUTEXT")
		mu.Lock()
		order = append(order, text)
		mu.Unlock()
		return err
	})
	p := newTestPool(t, sys)

	lease, err := p.Acquire(context.Background())
	require.NoError(t, err)

	var futures []*Future[rfc.Result]
	var want []string
	for i := 0; i < 10; i++ {
		text := fmt.Sprintf("call-%d", i)
		want = append(want, text)
		futures = append(futures, lease.CallAsync(context.Background(), "Z_ORDER", echo(text)))
	}
	lease.Release()

	for _, f := range futures {
		_, err := f.Result()
		require.NoError(t, err, "вызовы до Release выполняются")
	}
	mu.Lock()
	assert.Equal(t, want, order)
	mu.Unlock()
	assert.Equal(t, 0, sys.AffinityViolations())
}

func TestLease_ReleaseQueuedBehindCall(t *testing.T) {
	sys := nwrfctest.NewSystem()
	started := make(chan struct{})
	unblock := make(chan struct{})
	desc := nwrfctest.ConnectionDesc()
	desc.Name = "Z_SLOW"
	sys.Register(desc, func(*nwrfctest.Frame) error {
		close(started)
		<-unblock
		return nil
	})
	p := newTestPool(t, sys, func(o *Options) { o.MaxSize = 1 })

	lease, err := p.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	fut := lease.CallAsync(ctx, "Z_SLOW", echo("x"))
	<-started
	cancel()
	_, err = fut.Wait(ctx)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCanceled))
	lease.Release()

	next := p.AcquireAsync(context.Background())
	select {
	case <-next.Done():
		t.Fatal("соединение выдано до завершения нативного вызова")
	case <-time.After(50 * time.Millisecond):
	}

	close(unblock)
	_, err = fut.Result()
	assert.NoError(t, err, "брошенный вызов доработал")

	reused, err := next.Result()
	require.NoError(t, err)
	assert.Equal(t, lease.ConnID(), reused.ConnID())
	reused.Release()
}

func TestLease_Released(t *testing.T) {
	sys := nwrfctest.NewSystem()
	p := newTestPool(t, sys)

	lease, err := p.Acquire(context.Background())
	require.NoError(t, err)
	lease.Release()
	lease.Release()

	_, err = lease.Call(context.Background(), "STFC_CONNECTION", echo("x"))
	assert.True(t, apperrors.HasCode(err, apperrors.ErrConnUnusable))
	assert.True(t, apperrors.HasCode(lease.Ping(context.Background()), apperrors.ErrConnUnusable))
	assert.Equal(t, 0, waitStats(t, p, func(s Stats) bool { return s.InUse == 0 }).InUse)
}

func TestLease_DescribeAndPing(t *testing.T) {
	sys := nwrfctest.NewSystem(nwrfctest.WithStrictAffinity())
	p := newTestPool(t, sys)

	err := p.Do(context.Background(), func(ctx context.Context, lease *Lease) error {
		d, err := lease.Describe(ctx, "STFC_STRUCTURE")
		if err != nil {
			return err
		}
		assert.Len(t, d.Params, 4)
		return lease.Ping(ctx)
	})
	require.NoError(t, err)

	_, ok := p.Cache().Get("NPL", "STFC_STRUCTURE")
	assert.True(t, ok, "кэш описаний общий для пула")
	assert.Equal(t, 1, sys.Pings())
	assert.Equal(t, 0, sys.AffinityViolations())
}

func TestPool_OpenFailure(t *testing.T) {
	sys := nwrfctest.NewSystem()
	p := newTestPool(t, sys)

	sys.FailNextOpen(nwrfctest.LogonFailure())
	_, err := p.Acquire(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrConnect))
	assert.Equal(t, 0, p.Stats().Live)

	_, err = p.Call(context.Background(), "STFC_CONNECTION", echo("x"))
	assert.NoError(t, err)
}

func TestPool_AbandonedOpenAdopted(t *testing.T) {
	sys := nwrfctest.NewSystem()
	gate := make(chan struct{})
	sys.BeforeOpen(func(nwrfc.ConnectionParams) { <-gate })
	p := newTestPool(t, sys, func(o *Options) {
		o.MaxSize = 1
		o.AcquireTimeout = 30 * time.Millisecond
	})

	_, err := p.Acquire(context.Background())
	assert.True(t, apperrors.HasCode(err, apperrors.ErrConnect), "медленный логон при свободном месте не исчерпание пула")
	assert.False(t, apperrors.HasCode(err, apperrors.ErrPoolExhausted))

	close(gate)
	waitStats(t, p, func(s Stats) bool { return s.Idle == 1 })

	lease, err := p.Acquire(context.Background())
	require.NoError(t, err)
	lease.Release()
	assert.Equal(t, 1, sys.Opens(), "позднее соединение не теряется")
}

func TestPool_MinIdle(t *testing.T) {
	sys := nwrfctest.NewSystem()
	p := newTestPool(t, sys, func(o *Options) {
		o.MaxSize = 3
		o.MinIdle = 2
	})

	waitStats(t, p, func(s Stats) bool { return s.Idle == 2 })
	assert.Equal(t, 2, sys.Opens())

	lease, err := p.Acquire(context.Background())
	require.NoError(t, err)
	sys.FailNextInvoke(nwrfctest.RuntimeFailure("MESSAGE_TYPE_X", "dump"))
	_, err = lease.Call(context.Background(), "STFC_CONNECTION", echo("x"))
	assert.True(t, apperrors.HasCode(err, apperrors.ErrAbapRuntime))
	lease.Release()

	s := waitStats(t, p, func(s Stats) bool { return s.Idle == 2 })
	assert.Equal(t, 2, s.Live, "сломанное соединение заменено")
	assert.Equal(t, 3, sys.Opens())
}

func TestPool_IdleReaping(t *testing.T) {
	sys := nwrfctest.NewSystem()
	clk := testclock.NewClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	p := newTestPool(t, sys, func(o *Options) {
		o.Clock = clk
		o.IdleTimeout = time.Minute
	})

	a, err := p.Acquire(context.Background())
	require.NoError(t, err)
	b, err := p.Acquire(context.Background())
	require.NoError(t, err)
	a.Release()
	b.Release()
	waitStats(t, p, func(s Stats) bool { return s.Idle == 2 })

	require.NoError(t, clk.WaitAdvance(time.Minute, time.Second, 1))
	waitStats(t, p, func(s Stats) bool { return s.Live == 0 })
	assert.Equal(t, 0, sys.Live())
	assert.Equal(t, 2, sys.Closes())
}

func TestPool_IdleReapingKeepsMinIdle(t *testing.T) {
	sys := nwrfctest.NewSystem()
	clk := testclock.NewClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	p := newTestPool(t, sys, func(o *Options) {
		o.Clock = clk
		o.IdleTimeout = time.Minute
		o.MinIdle = 1
	})
	waitStats(t, p, func(s Stats) bool { return s.Idle == 1 })

	a, err := p.Acquire(context.Background())
	require.NoError(t, err)
	b, err := p.Acquire(context.Background())
	require.NoError(t, err)
	a.Release()
	b.Release()
	waitStats(t, p, func(s Stats) bool { return s.Idle == 2 })

	require.NoError(t, clk.WaitAdvance(time.Minute, time.Second, 1))
	waitStats(t, p, func(s Stats) bool { return s.Live == 1 })
	assert.Equal(t, 1, sys.Live())
}

func TestPool_HealthCheck(t *testing.T) {
	sys := nwrfctest.NewSystem(nwrfctest.WithStrictAffinity())
	clk := testclock.NewClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	p := newTestPool(t, sys, func(o *Options) {
		o.Clock = clk
		o.HealthCheckAfter = 10 * time.Second
	})

	lease, err := p.Acquire(context.Background())
	require.NoError(t, err)
	staleID := lease.ConnID()
	lease.Release()
	waitStats(t, p, func(s Stats) bool { return s.Idle == 1 })

	sys.SetDown(true)
	sys.SetDown(false)
	clk.Advance(11 * time.Second)

	lease, err = p.Acquire(context.Background())
	require.NoError(t, err)
	defer lease.Release()
	assert.NotEqual(t, staleID, lease.ConnID(), "разорванное соединение отсеяно пингом")
	assert.Equal(t, 1, sys.Pings())
	assert.Equal(t, 2, sys.Opens())
	assert.Equal(t, 0, sys.AffinityViolations())
}

func TestPool_Close(t *testing.T) {
	sys := nwrfctest.NewSystem()
	p, err := New(sys, Options{MaxSize: 2, AcquireTimeout: time.Second, Conn: conn.Options{Params: testParams}})
	require.NoError(t, err)

	idle, err := p.Acquire(context.Background())
	require.NoError(t, err)
	held, err := p.Acquire(context.Background())
	require.NoError(t, err)
	idle.Release()
	waitStats(t, p, func(s Stats) bool { return s.Idle == 1 })

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.Equal(t, 1, sys.Live(), "арендованное соединение живо до освобождения")

	_, err = p.Acquire(context.Background())
	assert.True(t, apperrors.HasCode(err, apperrors.ErrPoolClosed))

	held.Release()
	waitStats(t, p, func(s Stats) bool { return s.Live == 0 })
	assert.Equal(t, 0, sys.Live())
}

func TestPool_ConcurrentCalls(t *testing.T) {
	sys := nwrfctest.NewSystem(nwrfctest.WithStrictAffinity())
	p := newTestPool(t, sys, func(o *Options) {
		o.MaxSize = 3
		o.AcquireTimeout = 5 * time.Second
	})

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				text := fmt.Sprintf("%d-%d", i, j)
				res, err := p.Call(context.Background(), "STFC_CONNECTION", echo(text))
				if err != nil {
					errs <- err
					return
				}
				if res["ECHOTEXT"] != rfc.Text(text) {
					errs <- fmt.Errorf("ECHOTEXT %v, ожидалось %s", res["ECHOTEXT"], text)
					return
				}
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	assert.LessOrEqual(t, sys.MaxLive(), 3)
	assert.Equal(t, 0, sys.AffinityViolations())
	assert.Equal(t, 160, sys.Invokes())
}

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr error
	}{
		{"валидные", Options{MaxSize: 2, MinIdle: 1, AcquireTimeout: time.Second}, nil},
		{"нулевой размер", Options{AcquireTimeout: time.Second}, ErrInvalidMaxSize},
		{"min idle больше max", Options{MaxSize: 1, MinIdle: 2, AcquireTimeout: time.Second}, ErrInvalidMinIdle},
		{"нет таймаута", Options{MaxSize: 1}, ErrInvalidAcquireTimeout},
		{"отрицательный простой", Options{MaxSize: 1, AcquireTimeout: time.Second, IdleTimeout: -time.Second}, ErrInvalidIdleTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.opts.Validate(), tt.wantErr)
		})
	}

	_, err := New(nwrfctest.NewSystem(), Options{MaxSize: -1})
	assert.ErrorIs(t, err, ErrInvalidMaxSize)
}

func waitStats(t *testing.T, p *Pool, cond func(Stats) bool) Stats {
	t.Helper()
	var s Stats
	require.Eventually(t, func() bool {
		s = p.Stats()
		return cond(s)
	}, 2*time.Second, 5*time.Millisecond, "последнее состояние: %+v", s)
	return s
}
