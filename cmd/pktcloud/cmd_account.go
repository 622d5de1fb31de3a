package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pktcloud/internal/cloud"
)

func runLogin(cmd *cobra.Command, args []string) error {
	return runAccount(cmd, false)
}

func runSignup(cmd *cobra.Command, args []string) error {
	return runAccount(cmd, true)
}

func runAccount(cmd *cobra.Command, createAccount bool) error {
	ctx := cmdContext(cmd)
	sess, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	applyCredentialFlags(cmd, sess.dialog)
	if createAccount {
		c := sess.dialog.Credentials()
		c.Confirm = c.Password
		sess.dialog.SetCredentials(c)
		sess.dialog.ToggleCreateMode()
	}

	req, err := sess.dialog.SubmitLogin()
	if err != nil {
		return describeSubmitError(err)
	}
	logger.Info("Sending account request",
		zap.String("kind", req.Kind.String()),
		zap.String("request_id", req.ID))

	return reportOutcomes(cmd, cloud.Exchange(ctx, sess.client, sess.dialog, req))
}

// applyCredentialFlags overlays command-line credentials on the remembered ones.
func applyCredentialFlags(cmd *cobra.Command, d *cloud.Dialog) {
	c := d.Credentials()
	if credUsername != "" {
		c.Username = credUsername
	}
	switch {
	case credPassword != "":
		c.Password = credPassword
	case os.Getenv("PKTCLOUD_PASSWORD") != "":
		c.Password = os.Getenv("PKTCLOUD_PASSWORD")
	}
	if cmd.Flags().Changed("remember") {
		c.Remember = credRemember
	}
	d.SetCredentials(c)
}

// describeSubmitError turns a refused submission into a user-facing error.
func describeSubmitError(err error) error {
	var verr *cloud.ValidationError
	if errors.As(err, &verr) {
		return fmt.Errorf("%s %s", verr.Title, verr.Message)
	}
	return err
}

// reportOutcomes prints each notification in order. The command fails when
// the final one is an error.
func reportOutcomes(cmd *cobra.Command, outcomes []cloud.Outcome) error {
	out := cmd.OutOrStdout()
	var last cloud.Notification
	for _, o := range outcomes {
		if o.TransportErr != nil {
			logger.Warn("Cloud request failed", zap.Error(o.TransportErr))
		}
		last = o.Notification
		fmt.Fprintf(out, "%s: %s\n", last.Title, last.Text)
	}
	if last.IsError {
		return errors.New(last.Text)
	}
	return nil
}
