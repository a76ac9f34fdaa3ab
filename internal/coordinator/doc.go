// Package coordinator owns the registry of synchronized documents and routes
// host and engine notifications to the content, cursor and tab components.
//
// A document is identified by its canonical absolute path. The first side to
// open a path creates its buffer.Handle; the other side is then asked to
// open the same document and is bound to the same handle, so a file is never
// represented by two handles or two engine buffers.
//
// Events can be delivered one at a time with Dispatch, or streamed through
// Run, which processes events for the same document in arrival order and
// events for different documents concurrently:
//
//	queue := event.NewQueue()
//	eng, err := nvim.Embed(ctx, sup, "nvim", args, nvim.WithPublisher(queue))
//	if err != nil {
//		return err
//	}
//	hst := memhost.New(queue)
//	c := coordinator.New(eng, hst, coordinator.WithLogger(logger))
//	go c.Run(ctx, queue.C())
package coordinator
