package main

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"pktcloud/cmd/pktcloud/ui"
	"pktcloud/internal/logging"
)

// runInteractive opens the terminal cloud dialog. Credentials saved by other
// pktcloud processes are picked up while it runs.
func runInteractive(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmdContext(cmd))
	defer cancel()

	sess, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	p := tea.NewProgram(
		ui.NewDialogModel(ctx, sess.dialog, sess.client),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)

	w, err := sess.settings.Watch(ctx, func() { p.Send(ui.SettingsChangedMsg{}) })
	if err != nil {
		logging.SettingsError("settings watch unavailable: %v", err)
	} else {
		defer w.Stop()
	}

	logging.UI("cloud dialog opened")
	_, err = p.Run()
	return err
}
