package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	service "github.com/okian/killfeed/internal/app"
	"github.com/okian/killfeed/internal/domain/aggregate"
	"github.com/okian/killfeed/internal/domain/extract"
	"github.com/okian/killfeed/internal/domain/model"
)

func newRescanCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rescan",
		Short: "Replay the whole log and resubmit events that were never delivered",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.rescan(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVarP(&a.flags.yes, "yes", "y", false, "Submit without asking for confirmation")
	cmd.Flags().BoolVar(&a.flags.unsent, "unsent", false, "Resubmit recorded events the API never confirmed instead of replaying the log")
	return cmd
}

func (a *app) rescan(ctx context.Context, in io.Reader, out io.Writer) error {
	if err := a.ready(); err != nil {
		return err
	}
	cfg, log := a.cfg, a.log

	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	store, err := newStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	svc := service.New(cfg.LogPath, store, client, serviceOptions(cfg, log)...)

	runCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return svc.Run(gctx) })
	defer func() {
		cancel()
		_ = g.Wait()
		svc.Wait()
	}()

	var (
		events []model.Event
		submit func() (<-chan aggregate.Summary, error)
	)
	if a.flags.unsent {
		events = svc.Unsent(ctx)
		submit = func() (<-chan aggregate.Summary, error) { return svc.Resubmit(ctx, events) }
	} else {
		p, err := svc.PreviewRescan(ctx)
		if err != nil {
			return err
		}
		for _, it := range p.Items {
			events = append(events, it.Event)
		}
		submit = func() (<-chan aggregate.Summary, error) { return svc.ConfirmRescan(ctx, p.Token) }
	}

	if len(events) == 0 {
		fmt.Fprintln(out, "Nothing to resubmit.")
		return nil
	}
	fmt.Fprintf(out, "Found %d event(s) not yet delivered:\n", len(events))
	for _, e := range events {
		fmt.Fprintf(out, "  %s\n", extract.Readout(e))
	}
	if !a.flags.yes && !confirm(in, out, "Submit them now?") {
		fmt.Fprintln(out, "Aborted.")
		return nil
	}

	done, err := submit()
	if err != nil {
		return err
	}
	select {
	case sum := <-done:
		fmt.Fprintln(out, sum.String())
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
