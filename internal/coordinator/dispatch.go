package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dshills/nvimbed/internal/buffer"
	"github.com/dshills/nvimbed/internal/event"
)

// TopicFlush is the topic of flush requests queued by the debounce timer.
const TopicFlush event.Topic = "sync.flush"

const sourceSync = "sync"

// flushRequest asks for a handle's pending edits to be sent.
type flushRequest struct {
	handle *buffer.Handle
}

func (flushRequest) Topic() event.Topic { return TopicFlush }

// Dispatch handles one event synchronously.
func (c *Coordinator) Dispatch(ctx context.Context, ev event.Event) (err error) {
	start := time.Now()
	defer func() {
		c.metrics.Record(ev.Topic(), time.Since(start), err)
	}()
	c.logger.Debug("dispatch", "topic", ev.Topic(), "id", ev.Metadata.ID, "source", ev.Metadata.Source)

	switch p := ev.Payload.(type) {
	case event.HostOpen:
		_, err = c.RegisterHostOpen(ctx, p.Path, p.Editor)
	case event.HostClose:
		err = c.onHostClose(ctx, p)
	case event.HostEdit:
		err = c.onHostEdit(p)
	case event.HostSettled:
		err = c.onHostSettled(ctx, p)
	case event.HostTabActivated:
		err = c.onHostTabActivated(ctx, p)
	case event.HostCursorMoved:
		err = c.onHostCursorMoved(ctx, p)
	case event.EngineOpen:
		_, err = c.RegisterEngineOpen(ctx, p.Buffer, p.Path)
	case event.EngineClose:
		err = c.onEngineClose(ctx, p)
	case event.EngineEdit:
		err = c.onEngineEdit(ctx, p)
	case event.BufferSwitched:
		err = c.tabs.OnEngineBufferChanged(ctx, p.Buffer)
	case event.CursorMoved:
		err = c.onEngineCursorMoved(p)
	case event.Redraw:
		err = c.onRedraw(ctx, p)
	case flushRequest:
		if p.handle.Closed() {
			return nil
		}
		err = c.flush(ctx, p.handle)
	default:
		err = fmt.Errorf("dispatch %s: unsupported event", ev.Topic())
	}
	return err
}

func (c *Coordinator) editorHandle(id buffer.EditorID) (*buffer.Handle, error) {
	h, ok := c.LookupEditor(id)
	if !ok {
		return nil, fmt.Errorf("editor %s: %w", id, ErrUnknownHandle)
	}
	return h, nil
}

func (c *Coordinator) bufferHandle(number int) (*buffer.Handle, error) {
	h, ok := c.LookupNumber(number)
	if !ok {
		return nil, fmt.Errorf("engine buffer %d: %w", number, ErrUnknownHandle)
	}
	return h, nil
}

func (c *Coordinator) onHostClose(ctx context.Context, p event.HostClose) error {
	h, err := c.editorHandle(p.Editor)
	if err != nil {
		return err
	}
	return c.Close(ctx, h, buffer.SideHost)
}

func (c *Coordinator) onHostEdit(p event.HostEdit) error {
	h, err := c.editorHandle(p.Editor)
	if err != nil {
		return err
	}
	return c.content.ApplyHostEdit(h, p.Range, p.Text)
}

func (c *Coordinator) onHostSettled(ctx context.Context, p event.HostSettled) error {
	h, err := c.editorHandle(p.Editor)
	if err != nil {
		return err
	}
	if h.Number() == 0 {
		return c.attachEngine(ctx, h)
	}
	return c.check(h, c.content.Settled(ctx, h))
}

func (c *Coordinator) onHostTabActivated(ctx context.Context, p event.HostTabActivated) error {
	h, err := c.editorHandle(p.Editor)
	if err != nil {
		return err
	}
	if h.Number() == 0 {
		// Opening the file also makes it current.
		return c.attachEngine(ctx, h)
	}
	return c.check(h, c.tabs.OnHostTabActivated(ctx, h))
}

func (c *Coordinator) onHostCursorMoved(ctx context.Context, p event.HostCursorMoved) error {
	h, err := c.editorHandle(p.Editor)
	if err != nil {
		return err
	}
	if h.Number() == 0 {
		return nil
	}
	return c.check(h, c.position.OnHostCursorMoved(ctx, h, p.Position))
}

func (c *Coordinator) onEngineClose(ctx context.Context, p event.EngineClose) error {
	h, err := c.bufferHandle(p.Buffer)
	if err != nil {
		return err
	}
	return c.Close(ctx, h, buffer.SideEngine)
}

func (c *Coordinator) onEngineEdit(ctx context.Context, p event.EngineEdit) error {
	h, err := c.bufferHandle(p.Buffer)
	if err != nil {
		return err
	}
	return c.check(h, c.content.ApplyEngineEdit(ctx, h, p.First, p.Last, p.Lines))
}

func (c *Coordinator) onEngineCursorMoved(p event.CursorMoved) error {
	h, err := c.bufferHandle(p.Buffer)
	if err != nil {
		return err
	}
	if !h.IsOpen(buffer.SideHost) {
		return nil
	}
	return c.position.OnEngineCursorMoved(h, p.Row, p.Col)
}

func (c *Coordinator) onRedraw(ctx context.Context, p event.Redraw) error {
	m := c.view(p.Buffer)
	m.OnRedraw(p.Top, p.Rows, p.Cols, p.Cells)
	if !c.verifyRedraws {
		return nil
	}
	h, ok := c.LookupNumber(p.Buffer)
	if !ok {
		return nil
	}
	return c.check(h, c.content.VerifyVisible(ctx, h, m))
}

// scheduleFlush runs when a handle's quiet period ends. While Run is active
// the flush is queued behind the handle's other events; otherwise it runs
// on the calling goroutine.
func (c *Coordinator) scheduleFlush(h *buffer.Handle) {
	c.inboxMu.Lock()
	inbox := c.inbox
	c.inboxMu.Unlock()

	if inbox != nil && inbox.Emit(sourceSync, flushRequest{handle: h}) == nil {
		return
	}
	if err := c.flush(context.Background(), h); err != nil && !errors.Is(err, buffer.ErrHandleClosed) {
		c.logger.Warn("flush failed", "path", h.Path(), "error", err)
	}
}

func (c *Coordinator) setInbox(p event.Publisher) {
	c.inboxMu.Lock()
	defer c.inboxMu.Unlock()
	c.inbox = p
}
