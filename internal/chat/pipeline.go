package chat

import "sync"

// Executor 在逻辑 goroutine 上执行 fn
type Executor interface {
	Execute(fn func())
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(fn func())

func (f ExecutorFunc) Execute(fn func()) { f(fn) }

// Pipeline runs one session's chat work strictly in submission order. Each
// task's slow part runs on the pipeline goroutine; its apply step runs on
// the logic goroutine, and the next task waits for that apply to finish.
type Pipeline struct {
	exec Executor

	mu     sync.Mutex
	queue  []func()
	closed bool

	wake chan struct{}
	done chan struct{}
	once sync.Once
}

func NewPipeline(exec Executor) *Pipeline {
	p := &Pipeline{
		exec: exec,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go p.run()
	return p
}

// Append 排队一个任务, 不会阻塞. 管道关闭后返回 false.
func Append[T any](p *Pipeline, async func() (T, error), apply func(T, error)) bool {
	task := func() {
		v, err := async()
		applied := make(chan struct{})
		p.exec.Execute(func() {
			defer close(applied)
			apply(v, err)
		})
		select {
		case <-applied:
		case <-p.done:
		}
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return false
	}
	p.queue = append(p.queue, task)
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
	return true
}

func (p *Pipeline) run() {
	for {
		p.mu.Lock()
		if len(p.queue) == 0 {
			p.mu.Unlock()
			select {
			case <-p.wake:
				continue
			case <-p.done:
				return
			}
		}
		task := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]
		p.mu.Unlock()

		select {
		case <-p.done:
			return
		default:
		}
		task()
	}
}

// Close 丢弃排队的任务, 可以重复调用
func (p *Pipeline) Close() {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.queue = nil
		p.mu.Unlock()
		close(p.done)
	})
}
