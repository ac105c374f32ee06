package hooks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/okian/killfeed/internal/domain/model"
)

// ErrEmptyCommand is returned when no key-press command is configured.
var ErrEmptyCommand = errors.New("empty keypress command")

// CommandKeyPresser runs an external program for each event, for example
// an AutoHotkey script or xdotool. Event fields are passed as environment
// variables prefixed with KILLFEED_.
type CommandKeyPresser struct {
	argv []string
}

// NewCommandKeyPresser splits command on whitespace.
func NewCommandKeyPresser(command string) (*CommandKeyPresser, error) {
	argv := strings.Fields(command)
	if len(argv) == 0 {
		return nil, ErrEmptyCommand
	}
	return &CommandKeyPresser{argv: argv}, nil
}

// Press runs the command and waits for it.
func (k *CommandKeyPresser) Press(ctx context.Context, e model.Event) error {
	cmd := exec.CommandContext(ctx, k.argv[0], k.argv[1:]...)
	cmd.Env = append(os.Environ(),
		"KILLFEED_KIND="+string(e.Kind),
		"KILLFEED_LOCAL_KEY="+e.LocalKey,
		"KILLFEED_ATTACKER="+e.Attacker,
		"KILLFEED_VICTIM="+e.Victim,
		"KILLFEED_WEAPON="+e.Weapon,
		"KILLFEED_GAME_MODE="+e.GameMode,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("keypress command %q: %w: %s", k.argv[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}
