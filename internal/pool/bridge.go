package pool

import (
	"runtime"
	"sync"
)

// Pinned — закреплённый контекст исполнения. Задачи выполняются
// последовательно в порядке постановки, все в одном потоке ОС.
type Pinned interface {
	// Submit ставит задачу в очередь. Возвращает false после Close.
	Submit(fn func()) bool
	// Close запрещает новые задачи; уже поставленные будут выполнены.
	// Не блокирует и может вызываться из самой задачи.
	Close()
	// Done закрывается после выполнения последней задачи.
	Done() <-chan struct{}
}

// Bridge создаёт закреплённые контексты исполнения.
type Bridge interface {
	NewPinned() Pinned
}

// ThreadBridge закрепляет каждый контекст за отдельной горутиной,
// привязанной к потоку ОС через runtime.LockOSThread.
type ThreadBridge struct{}

// NewPinned запускает новый рабочий поток.
func (ThreadBridge) NewPinned() Pinned {
	p := &threadPinned{done: make(chan struct{})}
	p.cond = sync.NewCond(&p.mu)
	go p.run()
	return p
}

type threadPinned struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool
	done   chan struct{}
}

// run не снимает привязку к потоку: поток завершается вместе с горутиной
// и не возвращается в планировщик с состоянием нативной библиотеки.
func (p *threadPinned) run() {
	runtime.LockOSThread()
	defer close(p.done)
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.queue) == 0 {
			p.mu.Unlock()
			return
		}
		fn := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]
		p.mu.Unlock()

		fn()
	}
}

func (p *threadPinned) Submit(fn func()) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.queue = append(p.queue, fn)
	p.cond.Signal()
	return true
}

func (p *threadPinned) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.cond.Signal()
}

func (p *threadPinned) Done() <-chan struct{} { return p.done }
