package ui

import (
	"os"

	"github.com/charmbracelet/huh"
	"github.com/rileyhilliard/barmanctl/internal/errors"
)

// Confirm asks a yes/no question. Without a terminal on stdin it returns
// false so nothing destructive happens unattended.
func Confirm(title, description string) (bool, error) {
	if !IsTerminal(os.Stdin) {
		return false, nil
	}

	var proceed bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(description).
				Affirmative("Apply").
				Negative("Cancel").
				Value(&proceed),
		),
	)
	if err := form.Run(); err != nil {
		if err == huh.ErrUserAborted {
			return false, nil
		}
		return false, errors.WrapWithCode(err, errors.ErrExec,
			"Couldn't get your answer",
			"Re-run with --yes to skip the prompt.")
	}
	return proceed, nil
}
