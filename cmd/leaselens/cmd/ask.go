package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/leaselens/internal/config"
	lenserrors "github.com/Aman-CERP/leaselens/internal/errors"
	"github.com/Aman-CERP/leaselens/internal/extract"
	"github.com/Aman-CERP/leaselens/internal/output"
	"github.com/Aman-CERP/leaselens/internal/session"
)

type askOptions struct {
	format      string
	showSources bool
	sample      bool
	transcript  string
}

func newAskCmd() *cobra.Command {
	var opts askOptions

	cmd := &cobra.Command{
		Use:   "ask <file> [question...]",
		Short: "Ask questions about a lease",
		Long: `Load a lease (.pdf, .docx, .md or .txt) and answer questions about it.

With a question on the command line, answers it and exits. With --sample,
answers the common tenant questions. Otherwise starts an interactive session
that reads one question per line until EOF or "exit". Follow-up questions see
the recent conversation.`,
		Example: `  # One question
  leaselens ask lease.pdf "How much is the security deposit?"

  # Common questions, with the passages each answer came from
  leaselens ask lease.pdf --sample --show-sources

  # Interactive, offline
  leaselens ask lease.pdf --offline

  # JSON for scripts
  leaselens ask lease.pdf "Are pets allowed?" --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, args[0], strings.Join(args[1:], " "), opts)
		},
	}

	cmd.Flags().StringVar(&opts.format, "format", "text", "Output format: text or json")
	cmd.Flags().BoolVar(&opts.showSources, "show-sources", false, "Show the retrieved passages behind each answer")
	cmd.Flags().BoolVar(&opts.sample, "sample", false, "Answer the common tenant questions")
	cmd.Flags().StringVar(&opts.transcript, "transcript", "", "Save the conversation as JSON to this path on exit")

	return cmd
}

func runAsk(cmd *cobra.Command, path, question string, opts askOptions) error {
	if opts.format != "text" && opts.format != "json" {
		return fmt.Errorf("invalid format %q (valid: text, json)", opts.format)
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sess, cleanup, err := openSession(ctx, cmd, path)
	if err != nil {
		return err
	}
	defer cleanup()

	out := output.New(cmd.OutOrStdout())

	switch {
	case question != "":
		err = askAll(ctx, cmd, sess, out, []string{question}, opts)
	case opts.sample:
		err = askAll(ctx, cmd, sess, out, session.SampleQuestions, opts)
	default:
		err = askInteractive(ctx, cmd, sess, out, opts)
	}
	if err != nil {
		return err
	}

	if opts.transcript != "" {
		if err := session.SaveTranscript(sess.Transcript(), opts.transcript); err != nil {
			return err
		}
		output.New(cmd.ErrOrStderr()).Successf("Transcript saved to %s", opts.transcript)
	}
	return nil
}

// openSession builds a session from the effective config and processes the
// lease at path. Status lines go to stderr so stdout stays parseable.
func openSession(ctx context.Context, cmd *cobra.Command, path string) (*session.Session, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	deps, err := newDeps(cfg, nil)
	if err != nil {
		return nil, nil, err
	}

	view := output.NewProgressView(cmd.ErrOrStderr(), "Embedding chunks")
	sc := sessionConfig(cfg)
	sc.Build.Batch.Progress = view.Update

	sess, err := session.New(sc, deps)
	if err != nil {
		_ = closeDeps(deps)
		return nil, nil, err
	}
	cleanup := func() {
		_ = sess.Close()
		_ = closeDeps(deps)
	}

	if err := processLease(ctx, cmd, sess, cfg, path, view); err != nil {
		cleanup()
		return nil, nil, err
	}
	return sess, cleanup, nil
}

func processLease(ctx context.Context, cmd *cobra.Command, sess *session.Session, cfg *config.Config, path string, view output.ProgressView) error {
	status := output.New(cmd.ErrOrStderr())
	status.Statusf("📄", "Processing %s...", filepath.Base(path))

	data, err := extract.ReadFile(path, cfg.MaxUploadBytes())
	if err != nil {
		return err
	}
	view.Start(ctx)
	st, err := sess.ProcessFile(ctx, filepath.Base(path), data)
	view.Stop()
	if err != nil {
		return err
	}

	slog.Info("lease_processed",
		slog.String("file", st.Source),
		slog.Int("pages", st.Pages),
		slog.Int("chunks", st.NumChunks))
	status.Successf("Indexed %d chunks from %d pages", st.NumChunks, st.Pages)
	return nil
}

// askAll answers questions in order. JSON output is a single object for one
// question and an array otherwise.
func askAll(ctx context.Context, cmd *cobra.Command, sess *session.Session, out *output.Writer, questions []string, opts askOptions) error {
	status := output.New(cmd.ErrOrStderr())
	answers := make([]*session.Answer, 0, len(questions))

	for i, q := range questions {
		if len(questions) > 1 {
			status.Progress(i, len(questions), q)
		}
		a, err := sess.Ask(ctx, q)
		if err != nil {
			return err
		}
		answers = append(answers, a)
	}
	if len(questions) > 1 {
		status.Progress(len(questions), len(questions), "done")
	}

	if opts.format == "json" {
		if len(answers) == 1 {
			return out.JSON(answers[0])
		}
		return out.JSON(answers)
	}

	for i, a := range answers {
		if len(answers) > 1 {
			if i > 0 {
				out.Newline()
			}
			out.Header(a.Question)
		}
		out.Answer(a, opts.showSources)
	}
	return nil
}

// askInteractive reads one question per line from stdin.
func askInteractive(ctx context.Context, cmd *cobra.Command, sess *session.Session, out *output.Writer, opts askOptions) error {
	in := cmd.InOrStdin()
	tty := output.IsTTY(in)
	if tty {
		out.Status("💬", `Ask a question about the lease ("exit" to quit)`)
	}

	lines := make(chan string)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go readLines(in, lines, readErr, done)

	for {
		if tty {
			_, _ = fmt.Fprint(cmd.OutOrStdout(), "> ")
		}

		var line string
		select {
		case <-ctx.Done():
			return nil
		case l, ok := <-lines:
			if !ok {
				// EOF, or a read error sent before lines was closed.
				select {
				case err := <-readErr:
					return err
				default:
					return nil
				}
			}
			line = strings.TrimSpace(l)
		}

		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		a, err := sess.Ask(ctx, line)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			if err := questionFailed(out, err); err != nil {
				return err
			}
			continue
		}

		if opts.format == "json" {
			if err := out.JSON(a); err != nil {
				return err
			}
			continue
		}
		out.Answer(a, opts.showSources)
		out.Newline()
	}
}

func readLines(r io.Reader, lines chan<- string, errs chan<- error, done <-chan struct{}) {
	defer close(lines)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		select {
		case lines <- scanner.Text():
		case <-done:
			return
		}
	}
	if err := scanner.Err(); err != nil {
		errs <- err
	}
}

// questionFailed reports a failed question. Only fatal errors end the
// conversation; the user can rephrase after anything else.
func questionFailed(out *output.Writer, err error) error {
	if lenserrors.IsFatal(err) {
		return err
	}
	slog.Warn("question_failed", slog.String("error", err.Error()))
	out.Error(strings.TrimSpace(formatError(err)))
	return nil
}
