package coordinator

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/dshills/nvimbed/internal/buffer"
	"github.com/dshills/nvimbed/internal/event"
)

// Run consumes events until ctx is done or events is closed.
//
// Events for the same document are dispatched in arrival order on a queue
// of their own; different documents proceed concurrently. Flushes scheduled
// by the debounce timer are queued behind the document's pending events.
// When events is closed, queued events are processed before Run returns.
// When ctx is done they are dropped.
func (c *Coordinator) Run(ctx context.Context, events <-chan event.Event) error {
	inbox := event.NewQueue()
	c.setInbox(inbox)
	defer func() {
		c.setInbox(nil)
		inbox.Close()
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer c.inflight.Store(0)

	var wg sync.WaitGroup
	workers := make(map[string]*event.Queue)
	routes := make(map[string]string)

	deliver := func(ev event.Event) {
		key := c.route(routes, ev)
		q, ok := workers[key]
		if !ok {
			q = event.NewQueue()
			workers[key] = q
			wg.Add(1)
			go func() {
				defer wg.Done()
				for ev := range q.C() {
					c.dispatchSafe(ctx, ev)
					c.inflight.Add(-1)
				}
			}()
		}
		c.inflight.Add(1)
		if q.Publish(ev) != nil {
			c.inflight.Add(-1)
		}
	}

	c.logger.Debug("coordinator running")
	for {
		select {
		case <-ctx.Done():
			for _, q := range workers {
				q.Close()
			}
			wg.Wait()
			return ctx.Err()

		case ev, ok := <-events:
			if !ok {
				for _, q := range workers {
					q.Drain()
				}
				wg.Wait()
				c.logger.Debug("coordinator stopped")
				return nil
			}
			deliver(ev)

		case ev := <-inbox.C():
			deliver(ev)
		}
	}
}

// dispatchSafe dispatches ev, logging errors and recovering from panics.
func (c *Coordinator) dispatchSafe(ctx context.Context, ev event.Event) {
	defer func() {
		if r := recover(); r != nil {
			c.metrics.RecordPanic(ev.Topic())
			c.logger.Error("panic during dispatch", "topic", ev.Topic(), "id", ev.Metadata.ID, "panic", r)
		}
	}()

	err := c.Dispatch(ctx, ev)
	switch {
	case err == nil:
	case errors.Is(err, ErrUnknownHandle),
		errors.Is(err, ErrUnnamedBuffer),
		errors.Is(err, buffer.ErrHandleClosed):
		c.logger.Debug("event ignored", "topic", ev.Topic(), "id", ev.Metadata.ID, "reason", err)
	default:
		c.logger.Warn("event failed", "topic", ev.Topic(), "id", ev.Metadata.ID, "error", err)
	}
}

// route returns the worker key for ev: the document's canonical path when
// it can be resolved. Open events record how later events for the same
// editor or engine buffer resolve, since they may arrive before the open
// has been processed.
func (c *Coordinator) route(routes map[string]string, ev event.Event) string {
	switch p := ev.Payload.(type) {
	case event.HostOpen:
		key := pathKey(p.Path)
		routes[editorKey(p.Editor)] = key
		return key
	case event.EngineOpen:
		if p.Path == "" {
			return bufferKey(p.Buffer)
		}
		key := pathKey(p.Path)
		routes[bufferKey(p.Buffer)] = key
		return key
	case flushRequest:
		return p.handle.Path()
	case event.HostClose:
		return c.routeEditor(routes, p.Editor)
	case event.HostEdit:
		return c.routeEditor(routes, p.Editor)
	case event.HostSettled:
		return c.routeEditor(routes, p.Editor)
	case event.HostTabActivated:
		return c.routeEditor(routes, p.Editor)
	case event.HostCursorMoved:
		return c.routeEditor(routes, p.Editor)
	case event.EngineClose:
		return c.routeBuffer(routes, p.Buffer)
	case event.EngineEdit:
		return c.routeBuffer(routes, p.Buffer)
	case event.BufferSwitched:
		return c.routeBuffer(routes, p.Buffer)
	case event.CursorMoved:
		return c.routeBuffer(routes, p.Buffer)
	case event.Redraw:
		return c.routeBuffer(routes, p.Buffer)
	}
	return ""
}

func (c *Coordinator) routeEditor(routes map[string]string, id buffer.EditorID) string {
	if key, ok := routes[editorKey(id)]; ok {
		return key
	}
	if h, ok := c.LookupEditor(id); ok {
		return h.Path()
	}
	return editorKey(id)
}

func (c *Coordinator) routeBuffer(routes map[string]string, number int) string {
	if key, ok := routes[bufferKey(number)]; ok {
		return key
	}
	if h, ok := c.LookupNumber(number); ok {
		return h.Path()
	}
	return bufferKey(number)
}

func pathKey(path string) string {
	if canonical, err := buffer.CanonicalPath(path); err == nil {
		return canonical
	}
	return path
}

func editorKey(id buffer.EditorID) string {
	return "editor:" + string(id)
}

func bufferKey(number int) string {
	return "buffer:" + strconv.Itoa(number)
}
