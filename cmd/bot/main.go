package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"neurotutor/internal/app"
	"neurotutor/internal/caption"
	"neurotutor/internal/config"
	"neurotutor/internal/task/scheduler"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:           "neurotutor",
		Short:         "Course assistant bot with a rotating checklist broadcast",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), cfgPath)
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "./config.yaml", "path to config (yaml or json)")

	root.AddCommand(newRunCmd(&cfgPath))
	root.AddCommand(newConfigCmd(&cfgPath))
	root.AddCommand(newCaptionsCmd())
	return root
}

func newRunCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the bot until SIGINT/SIGTERM",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), *cfgPath)
		},
	}
}

func run(parent context.Context, cfgPath string) error {
	if parent == nil {
		parent = context.Background()
	}
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	a, err := app.New(ctx, cfgPath)
	if err != nil {
		return err
	}
	if err := a.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	reason := app.StopUnknown
	select {
	case sig := <-sigs:
		if sig == syscall.SIGTERM {
			reason = app.StopSIGTERM
		} else {
			reason = app.StopSIGINT
		}
	case <-a.Done():
		if a.Err() != nil {
			reason = app.StopFatalError
		}
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer stopCancel()
	_ = a.Stop(stopCtx, reason)
	if reason == app.StopFatalError {
		return a.Err()
	}
	return nil
}

func newConfigCmd(cfgPath *string) *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Inspect the configuration"}
	cfg.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Parse and validate the config file, including env overrides",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := config.NewManager(*cfgPath).Load()
			if err != nil {
				return err
			}
			spec, err := scheduler.ParseSchedule(c.Broadcast.Schedule)
			if err != nil {
				return fmt.Errorf("broadcast.schedule: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "ok: broadcast=%t schedule=%q policy=%s bound=%d\n",
				c.Broadcast.Enabled, spec.CronSpec(), c.Broadcast.Policy, c.Broadcast.Bound)
			return nil
		},
	})
	return cfg
}

func newCaptionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "captions <file>",
		Short: "Print the numbered sections found in a caption document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			idx := caption.Extract(string(b))
			if idx.Len() == 0 {
				return errors.New("no numbered sections found")
			}
			keys := make([]string, 0, idx.Len())
			for k := range idx {
				keys = append(keys, k)
			}
			sort.Slice(keys, func(i, j int) bool {
				if len(keys[i]) != len(keys[j]) {
					return len(keys[i]) < len(keys[j])
				}
				return keys[i] < keys[j]
			})
			out := cmd.OutOrStdout()
			for _, k := range keys {
				_, _ = fmt.Fprintf(out, "%s) %s\n\n", k, idx[k])
			}
			return nil
		},
	}
}
