// Package notify pushes settlement events to chat webhooks. It sits
// behind the feed as one more sink: delivery is best-effort with bounded
// retries, and a full queue drops rather than blocks the engine.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"wagerhouse/internal/feed"
)

type Target struct {
	Platform string
	Endpoint string
	Secret   string
}

type Options struct {
	QueueSize   int
	RetryMax    int
	RetryBase   time.Duration
	SendTimeout time.Duration
}

func defaultOptions(o Options) Options {
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.RetryMax <= 0 {
		o.RetryMax = 3
	}
	if o.RetryBase <= 0 {
		o.RetryBase = time.Second
	}
	if o.SendTimeout <= 0 {
		o.SendTimeout = 5 * time.Second
	}
	return o
}

type job struct {
	target  Target
	msg     Message
	attempt int
}

// Notifier fans settlement events out to its targets. It implements
// feed.Sink.
type Notifier struct {
	opts     Options
	targets  []Target
	adapters map[string]Adapter

	jobs chan job
	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

func New(targets []Target, opts Options) *Notifier {
	opts = defaultOptions(opts)
	n := &Notifier{
		opts:    opts,
		targets: targets,
		adapters: map[string]Adapter{
			"discord": NewDiscordAdapter(opts.SendTimeout),
			"feishu":  NewFeishuAdapter(opts.SendTimeout),
		},
		jobs: make(chan job, opts.QueueSize),
		done: make(chan struct{}),
	}
	n.wg.Add(1)
	go n.worker()
	return n
}

// Publish enqueues one delivery per target. A full queue drops the event.
func (n *Notifier) Publish(e feed.Event) {
	msg := Format(e)
	for _, target := range n.targets {
		select {
		case n.jobs <- job{target: target, msg: msg}:
		default:
			log.Warn().Str("platform", target.Platform).Str("event_id", e.ID).Msg("notify queue full, dropping")
		}
	}
}

// Close stops the worker; queued jobs are abandoned.
func (n *Notifier) Close() {
	n.once.Do(func() { close(n.done) })
	n.wg.Wait()
}

func (n *Notifier) worker() {
	defer n.wg.Done()
	for {
		select {
		case <-n.done:
			return
		case j := <-n.jobs:
			n.process(j)
		}
	}
}

func (n *Notifier) process(j job) {
	adapter := n.adapters[j.target.Platform]
	if adapter == nil {
		log.Warn().Str("platform", j.target.Platform).Msg("no adapter for notify target")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), n.opts.SendTimeout)
	err := adapter.Send(ctx, j.target.Endpoint, j.target.Secret, j.msg)
	cancel()
	if err == nil {
		return
	}
	if j.attempt >= n.opts.RetryMax {
		log.Warn().Err(err).Str("platform", j.target.Platform).Msg("notify delivery dropped after retries")
		return
	}
	j.attempt++
	delay := n.opts.RetryBase * time.Duration(1<<(j.attempt-1))
	time.AfterFunc(delay, func() {
		select {
		case <-n.done:
		case n.jobs <- j:
		}
	})
}
