package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/peterh/liner"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"llamad/internal/session"
)

const chatPrompt = "you> "

func newChatCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Interactive conversation with the model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			log, err := newLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr)
			if err != nil {
				return err
			}
			sess, err := openSession(cfg, newAdapter(cfg, log), log, nil)
			if err != nil {
				return errors.Wrap(err, "open session")
			}
			defer sess.Close()

			line := liner.NewLiner()
			defer line.Close()
			line.SetCtrlCAborts(true)
			return chatLoop(cmd.Context(), sess, line, cmd.OutOrStdout())
		},
	}
}

// prompter is the part of liner.State the loop uses.
type prompter interface {
	Prompt(string) (string, error)
	AppendHistory(string)
}

// chatLoop reads user turns until EOF, Ctrl+C at the prompt or /quit.
// Ctrl+C while the model is generating cancels only that turn.
func chatLoop(ctx context.Context, sess *session.Session, in prompter, out io.Writer) error {
	for {
		input, err := in.Prompt(chatPrompt)
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Fprintln(out)
				return nil
			}
			return errors.Wrap(err, "read input")
		}
		input = strings.TrimSpace(input)
		switch input {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/status":
			st := sess.Status()
			fmt.Fprintf(out, "session %s: %s, %d messages, %d completions\n", st.SessionID, st.State, st.HistoryLen, st.CompletionsTotal)
			continue
		}
		in.AppendHistory(input)

		turnCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
		_, err = sess.Stream(turnCtx, session.Prompt{Text: input}, func(frag string) error {
			_, err := io.WriteString(out, frag)
			return err
		})
		stop()
		fmt.Fprintln(out)
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled) && ctx.Err() == nil:
			fmt.Fprintln(out, "[cancelled]")
		case errors.Is(err, session.ErrClosed) || ctx.Err() != nil:
			return err
		default:
			fmt.Fprintf(out, "[error] %v\n", err)
		}
	}
}
