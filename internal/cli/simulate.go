package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/killfeed/internal/loggen"
)

func newSimulateCmd(a *app) *cobra.Command {
	var (
		cfg       loggen.Config
		opponents string
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Write a synthetic game log for trying out monitor and rescan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cfg.Path == "" {
				cfg.Path = a.cfg.LogPath
			}
			if cfg.Player == "" {
				cfg.Player = a.cfg.Player
			}
			if opponents != "" {
				cfg.Opponents = strings.Split(opponents, ",")
			}
			st, err := loggen.Run(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d line(s): %d kill(s), %d death(s), %d rotation(s)\n",
				st.Lines, st.Kills, st.Deaths, st.Rotations)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&cfg.Path, "out", "", "File to write (defaults to log_path)")
	f.StringVar(&opponents, "opponents", "", "Comma separated opponent names")
	f.StringVar(&cfg.GameMode, "game-mode", "", "Raw gamerules value")
	f.IntVar(&cfg.Events, "events", 20, "Number of kill or death lines")
	f.DurationVar(&cfg.Interval, "interval", 500*time.Millisecond, "Pause between events")
	f.Float64Var(&cfg.DeathRatio, "death-ratio", 0.3, "Share of events where the player dies")
	f.IntVar(&cfg.RotateEvery, "rotate-every", 0, "Rotate the file after this many events (0 disables)")
	f.BoolVar(&cfg.Append, "append", false, "Append instead of truncating")
	f.Uint64Var(&cfg.Seed, "seed", uint64(time.Now().UnixNano()), "Random seed")
	return cmd
}
