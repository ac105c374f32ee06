// Package hooks fires the outbound collaborators that react to an accepted
// event: clip creation, key-press automation and a chat message. Each runs
// as its own background task; a failure in one never affects the others or
// the dispatch that triggered them.
package hooks

import (
	"context"

	"github.com/okian/killfeed/internal/adapters/mq/worker"
	"github.com/okian/killfeed/internal/domain/model"
)

// ClipCreator records a clip for an event and returns its URL.
type ClipCreator interface {
	CreateClip(ctx context.Context, e model.Event) (string, error)
}

// KeyPresser triggers a key-press automation for an event.
type KeyPresser interface {
	Press(ctx context.Context, e model.Event) error
}

// ChatSender posts a message about an event.
type ChatSender interface {
	Send(ctx context.Context, e model.Event) error
}

// ClipCallback receives the clip URL once it exists.
type ClipCallback func(key, url string)

// Fanout submits one task per configured hook to a worker pool. Nil hooks
// are skipped.
type Fanout struct {
	pool *worker.Pool
	clip ClipCreator
	keys KeyPresser
	chat ChatSender
}

// NewFanout creates a Fanout. Any hook may be nil.
func NewFanout(pool *worker.Pool, clip ClipCreator, keys KeyPresser, chat ChatSender) *Fanout {
	return &Fanout{pool: pool, clip: clip, keys: keys, chat: chat}
}

// OnAccepted fires every hook for e. onClip runs on a pool goroutine; the
// receiver must hand the URL back to its owner itself.
func (f *Fanout) OnAccepted(ctx context.Context, e model.Event, onClip ClipCallback) {
	if f == nil || f.pool == nil {
		return
	}
	if f.clip != nil {
		f.pool.Submit(ctx, worker.Task{Name: "clip", Run: func(ctx context.Context) error {
			url, err := f.clip.CreateClip(ctx, e)
			if err != nil {
				return err
			}
			if url != "" && onClip != nil {
				onClip(e.LocalKey, url)
			}
			return nil
		}})
	}
	if f.keys != nil {
		f.pool.Submit(ctx, worker.Task{Name: "keypress", Run: func(ctx context.Context) error {
			return f.keys.Press(ctx, e)
		}})
	}
	if f.chat != nil {
		f.pool.Submit(ctx, worker.Task{Name: "chat", Run: func(ctx context.Context) error {
			return f.chat.Send(ctx, e)
		}})
	}
}
