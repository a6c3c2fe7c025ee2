package hud

import (
	"errors"
	"fmt"
	"strings"

	"snackrun/internal/input"
)

// Action is what a command line does with its key.
type Action int

const (
	Tap Action = iota
	Hold
	Let
	Quit
)

// Command is one parsed line of keyboard input.
type Command struct {
	Action Action
	Key    input.Key
}

var ErrUnknownKey = errors.New("unknown key")

var keyNames = map[string]input.Key{
	"a":     input.KeyA,
	"d":     input.KeyD,
	"w":     input.KeyW,
	"s":     input.KeyS,
	"space": input.KeySpace,
	"left":  input.KeyArrowLeft,
	"right": input.KeyArrowRight,
	"up":    input.KeyArrowUp,
	"down":  input.KeyArrowDown,
	"enter": input.KeyEnter,
}

// ParseCommand reads one line: "+key" holds a key, "-key" lets it go, a bare
// key taps it. "q" quits.
func ParseCommand(line string) (Command, error) {
	line = strings.ToLower(strings.TrimSpace(line))
	switch line {
	case "q", "quit":
		return Command{Action: Quit}, nil
	}

	action := Tap
	switch {
	case strings.HasPrefix(line, "+"):
		action, line = Hold, line[1:]
	case strings.HasPrefix(line, "-"):
		action, line = Let, line[1:]
	}

	key, ok := keyNames[line]
	if !ok {
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownKey, line)
	}
	return Command{Action: action, Key: key}, nil
}
