package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/nvimbed/internal/app"
	"github.com/dshills/nvimbed/internal/buffer"
	"github.com/dshills/nvimbed/internal/config"
)

// errDiverged is returned when a document differs between the two sides
// at the end of a run.
var errDiverged = errors.New("documents did not converge")

type runOptions struct {
	config  string
	address string
	keys    []string
	edits   []string
	verbose bool
	watch   bool
}

// newRunCmd builds the run command. connect replaces the Neovim
// connection when not nil.
func newRunCmd(connect app.Connector) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run [files...]",
		Short: "Open files in a session and report whether both sides converge",
		Long: `Open each file in the in-memory host, which opens it in Neovim too.
Host edits given with --edit are applied to the active editor first, then
keys given with --keys are typed into Neovim. After every step the session
waits for the quiescence interval. Finally the content of every document
is printed from both sides with a convergence verdict.

Edits have the form ROW:COL:TEXT with 0-indexed row and column; TEXT is
inserted at that position and may contain \n for line breaks.

Examples:
  nvimbed run notes.txt --keys 'ggdd' --keys 'u'
  nvimbed run a.txt b.txt --edit '0:0:// header\n'
  nvimbed run main.go --address /tmp/nvim.sock`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd, args, opts, connect)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.config, "config", "c", "", "configuration file (default $NVIMBED_CONFIG or the user config dir)")
	f.StringVar(&opts.address, "address", "", "connect to a running Neovim at this socket instead of starting one")
	f.StringArrayVar(&opts.keys, "keys", nil, "keys to type into Neovim (repeatable)")
	f.StringArrayVar(&opts.edits, "edit", nil, "host edit ROW:COL:TEXT (repeatable)")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")
	f.BoolVar(&opts.watch, "watch", false, "reload the configuration file when it changes")
	return cmd
}

func configPath(flag string) string {
	if flag != "" {
		return flag
	}
	if env := os.Getenv(config.EnvPrefix + "CONFIG"); env != "" {
		return env
	}
	return config.DefaultPath()
}

func runSession(cmd *cobra.Command, files []string, opts runOptions, connect app.Connector) error {
	edits := make([]hostEdit, 0, len(opts.edits))
	for _, s := range opts.edits {
		e, err := parseEdit(s)
		if err != nil {
			return err
		}
		edits = append(edits, e)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, app.Options{
		ConfigPath: configPath(opts.config),
		Address:    opts.address,
		Verbose:    opts.verbose,
		Watch:      opts.watch,
		LogOutput:  cmd.ErrOrStderr(),
		Connector:  connect,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Shutdown(2 * time.Second); err != nil {
			a.Logger().Warn("shutdown", "error", err)
		}
	}()
	a.Start(ctx)

	for _, f := range files {
		path, err := filepath.Abs(f)
		if err != nil {
			return err
		}
		if _, err := a.Host().Open(ctx, path); err != nil {
			return err
		}
	}
	if err := a.Quiesce(ctx); err != nil {
		return err
	}

	for _, e := range edits {
		id, ok := a.Host().ActiveEditor()
		if !ok {
			return fmt.Errorf("edit %s: no open editor", e)
		}
		pos := buffer.Position{Row: e.row, Col: e.col}
		if err := a.Host().SetTextInRange(id, buffer.Range{Start: pos, End: pos}, e.text); err != nil {
			return fmt.Errorf("edit %s: %w", e, err)
		}
		if err := a.Host().Settle(id); err != nil {
			return err
		}
		if err := a.Quiesce(ctx); err != nil {
			return err
		}
	}

	for _, k := range opts.keys {
		if err := a.Engine().Input(ctx, k); err != nil {
			return fmt.Errorf("keys %q: %w", k, err)
		}
		if err := a.Quiesce(ctx); err != nil {
			return err
		}
	}

	reports, err := a.Report(ctx)
	if err != nil {
		return err
	}
	if !printReports(cmd.OutOrStdout(), reports) {
		return errDiverged
	}
	return nil
}

func printReports(w io.Writer, reports []app.DocumentReport) bool {
	all := true
	for _, r := range reports {
		fmt.Fprintf(w, "== %s (buffer %d)\n", r.Path, r.Buffer)
		printLines(w, "host", r.Host)
		printLines(w, "engine", r.Engine)
		if r.Converged {
			fmt.Fprintln(w, "converged")
		} else {
			fmt.Fprintln(w, "DIVERGED")
			all = false
		}
	}
	return all
}

func printLines(w io.Writer, side string, lines []string) {
	if lines == nil {
		fmt.Fprintf(w, "%s: (not open)\n", side)
		return
	}
	fmt.Fprintf(w, "%s:\n", side)
	for i, l := range lines {
		fmt.Fprintf(w, "%4d | %s\n", i+1, l)
	}
}

type hostEdit struct {
	row, col int
	text     string
}

func (e hostEdit) String() string {
	return fmt.Sprintf("%d:%d:%q", e.row, e.col, e.text)
}

// parseEdit parses ROW:COL:TEXT. TEXT may contain ':' and the escape \n.
func parseEdit(s string) (hostEdit, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return hostEdit{}, fmt.Errorf("edit %q: want ROW:COL:TEXT", s)
	}
	row, err := strconv.Atoi(parts[0])
	if err != nil || row < 0 {
		return hostEdit{}, fmt.Errorf("edit %q: bad row", s)
	}
	col, err := strconv.Atoi(parts[1])
	if err != nil || col < 0 {
		return hostEdit{}, fmt.Errorf("edit %q: bad column", s)
	}
	return hostEdit{row: row, col: col, text: strings.ReplaceAll(parts[2], `\n`, "\n")}, nil
}

