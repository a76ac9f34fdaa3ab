package nvim

import "github.com/dshills/nvimbed/internal/event"

// notifyScript runs once per session with the RPC channel id and whether
// to attach to buffers.
const notifyScript = `
local chan, attach = ...
local group = vim.api.nvim_create_augroup("nvimbed", { clear = true })
local known = {}

local function notify(method, ...)
  vim.rpcnotify(chan, method, ...)
end

local function opened(buf)
  local name = vim.api.nvim_buf_get_name(buf)
  if name == "" or known[buf] then
    return
  end
  known[buf] = true
  if attach then
    vim.api.nvim_buf_attach(buf, false, {
      on_lines = function(_, b, _, first, last_old, last_new)
        notify("nvimbed_lines", b, first, last_old, vim.api.nvim_buf_get_lines(b, first, last_new, true))
      end,
    })
  end
  notify("nvimbed_open", buf, vim.fn.fnamemodify(name, ":p"))
end

vim.api.nvim_create_autocmd({ "BufReadPost", "BufNewFile" }, {
  group = group,
  callback = function(ev) opened(ev.buf) end,
})
vim.api.nvim_create_autocmd("BufEnter", {
  group = group,
  callback = function(ev) notify("nvimbed_enter", ev.buf) end,
})
vim.api.nvim_create_autocmd({ "BufDelete", "BufWipeout" }, {
  group = group,
  callback = function(ev)
    if known[ev.buf] then
      known[ev.buf] = nil
      notify("nvimbed_close", ev.buf)
    end
  end,
})
vim.api.nvim_create_autocmd({ "CursorMoved", "CursorMovedI" }, {
  group = group,
  callback = function(ev)
    notify("nvimbed_cursor", ev.buf, vim.fn.line("."), vim.fn.charcol("."))
  end,
})

for _, buf in ipairs(vim.api.nvim_list_bufs()) do
  if vim.api.nvim_buf_is_loaded(buf) then
    opened(buf)
  end
end
`

// register installs the notification handlers. It must run before Serve
// delivers the first notification.
func (c *Client) register() error {
	handlers := map[string]any{
		"nvimbed_open":   c.onOpen,
		"nvimbed_enter":  c.onEnter,
		"nvimbed_close":  c.onClose,
		"nvimbed_lines":  c.onLines,
		"nvimbed_cursor": c.onCursor,
		"redraw":         c.onRedraw,
	}
	for method, fn := range handlers {
		if err := c.nv.RegisterHandler(method, fn); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) emit(p event.Payload) {
	if err := c.pub.Emit(event.SourceEngine, p); err != nil {
		c.logger.Debug("notification dropped", "topic", p.Topic(), "error", err)
	}
}

func (c *Client) onOpen(buf int, path string) {
	c.emit(event.EngineOpen{Buffer: buf, Path: path})
}

func (c *Client) onEnter(buf int) {
	if c.current.Swap(int64(buf)) == int64(buf) {
		return
	}
	c.emit(event.BufferSwitched{Buffer: buf})
}

func (c *Client) onClose(buf int) {
	c.emit(event.EngineClose{Buffer: buf})
}

func (c *Client) onLines(buf, first, last int, lines []string) {
	c.emit(event.EngineEdit{Buffer: buf, First: first, Last: last, Lines: lines})
}

func (c *Client) onCursor(buf, row, col int) {
	c.emit(event.CursorMoved{Buffer: buf, Row: row, Col: col})
}

func (c *Client) onRedraw(updates ...[]any) {
	if c.screen == nil {
		return
	}
	c.screenMu.Lock()
	defer c.screenMu.Unlock()

	for _, u := range updates {
		flushed, err := c.screen.apply(u)
		if err != nil {
			c.logger.Debug("redraw update ignored", "error", err)
			continue
		}
		if !flushed {
			continue
		}
		top, rows, cells, ok := c.screen.visible()
		if !ok {
			continue
		}
		c.emit(event.Redraw{
			Buffer: int(c.current.Load()),
			Top:    top,
			Rows:   rows,
			Cols:   c.screen.cols,
			Cells:  cells,
		})
	}
}
