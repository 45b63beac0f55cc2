package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"llamad/internal/config"
	"llamad/internal/llm"
	"llamad/internal/session"
)

func newCompleteCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "complete <prompt>",
		Short: "Run one completion and print it as it is generated",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return complete(ctx, cfg, nil, strings.Join(args, " "), cmd.OutOrStdout())
		},
	}
}

func complete(ctx context.Context, cfg config.Config, adapter llm.Adapter, prompt string, out io.Writer) error {
	log, err := newLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		return err
	}
	if adapter == nil {
		adapter = newAdapter(cfg, log)
	}
	sess, err := openSession(cfg, adapter, log, nil)
	if err != nil {
		return errors.Wrap(err, "open session")
	}
	defer sess.Close()

	res, err := sess.Stream(ctx, session.Prompt{Text: prompt}, func(frag string) error {
		_, err := io.WriteString(out, frag)
		return err
	})
	fmt.Fprintln(out)
	if err != nil {
		return err
	}
	log.Debug().Str("finish_reason", res.FinishReason).Int("fragments", res.Fragments).Dur("took", res.Duration).Msg("completion done")
	return nil
}
