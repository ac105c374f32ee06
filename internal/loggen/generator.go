// Package loggen writes synthetic game logs for exercising the monitor
// end to end.
package loggen

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"strconv"
	"time"

	"github.com/okian/killfeed/pkg/logger"
)

var (
	weapons = []string{"behr_rifle_ballistic_01", "klwe_pistol_energy_01", "ANVL_Hornet_F7A_Mk2_Nose_Turret"}
	damages = []string{"Bullet", "Energy", "Explosion"}
	zones   = []string{"ANVL_Hornet_F7A_Mk2_1234567", "Zone_Arena", "OOC_Stanton_1_Hurston"}
)

// Stats summarizes a run.
type Stats struct {
	Lines     int `json:"lines"`
	Kills     int `json:"kills"`
	Deaths    int `json:"deaths"`
	Rotations int `json:"rotations"`
}

// Run writes cfg.Events events to cfg.Path, one every cfg.Interval, and
// returns early when ctx ends.
func Run(ctx context.Context, cfg Config) (Stats, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return Stats{}, err
	}
	log := logger.Get().Named("loggen")
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))

	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if !cfg.Append {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(cfg.Path, flags, filePermission)
	if err != nil {
		return Stats{}, fmt.Errorf("open %s: %w", cfg.Path, err)
	}
	defer func() { _ = f.Close() }()

	var st Stats
	now := time.Now()
	write := func(line string) error {
		if _, err := f.WriteString(line + "\n"); err != nil {
			return fmt.Errorf("write %s: %w", cfg.Path, err)
		}
		st.Lines++
		return nil
	}
	header := func() error {
		if err := write(RegistrationLine(now, 1000, cfg.Player)); err != nil {
			return err
		}
		return write(GameModeLine(now, cfg.GameMode))
	}
	if err := header(); err != nil {
		return st, err
	}

	log.Info(ctx, "generating log", logger.String("path", cfg.Path), logger.Int("events", cfg.Events))
	for i := 0; i < cfg.Events; i++ {
		if i > 0 && cfg.Interval > 0 {
			select {
			case <-ctx.Done():
				return st, nil
			case <-time.After(cfg.Interval):
			}
		} else if ctx.Err() != nil {
			return st, nil
		}

		if cfg.RotateEvery > 0 && i > 0 && i%cfg.RotateEvery == 0 {
			if f, err = rotate(f, cfg.Path, st.Rotations+1); err != nil {
				return st, err
			}
			st.Rotations++
			log.Info(ctx, "rotated log", logger.Int("rotation", st.Rotations))
			if err := header(); err != nil {
				return st, err
			}
		}

		now = now.Add(time.Second)
		k := Kill{
			Zone:   zones[rng.IntN(len(zones))],
			Weapon: weapons[rng.IntN(len(weapons))],
			Damage: damages[rng.IntN(len(damages))],
		}
		opponent := cfg.Opponents[rng.IntN(len(cfg.Opponents))]
		if rng.Float64() < cfg.DeathRatio {
			k.Victim, k.VictimID, k.Attacker, k.AttackerID = cfg.Player, 1000, opponent, 2000+i
			st.Deaths++
		} else {
			k.Victim, k.VictimID, k.Attacker, k.AttackerID = opponent, 2000+i, cfg.Player, 1000
			st.Kills++
		}
		if rng.IntN(4) == 0 {
			if err := write(NoiseLine(now)); err != nil {
				return st, err
			}
		}
		if err := write(KillLine(now, k)); err != nil {
			return st, err
		}
	}
	return st, nil
}

// rotate closes f, moves it aside with a numeric suffix and opens a fresh
// file at path.
func rotate(f *os.File, path string, n int) (*os.File, error) {
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(path, path+"."+strconv.Itoa(n)); err != nil {
		return nil, fmt.Errorf("rotate %s: %w", path, err)
	}
	nf, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePermission)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return nf, nil
}
