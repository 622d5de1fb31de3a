package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pktcloud/internal/cloud"
)

func runUpload(cmd *cobra.Command, args []string) error {
	ctx := cmdContext(cmd)
	sess, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	applyCredentialFlags(cmd, sess.dialog)
	req, err := sess.dialog.SubmitUpload(ctx, cloud.Upload{
		SetName:     setName,
		Public:      makePublic,
		Description: description,
	})
	if err != nil {
		return describeSubmitError(err)
	}

	count := sess.dialog.LocalPacketCount()
	logger.Info("Uploading packet set",
		zap.String("set", setName),
		zap.Int("packets", count),
		zap.Bool("public", makePublic),
		zap.String("request_id", req.ID))
	fmt.Fprintf(cmd.OutOrStdout(), "Saving %s packets to the cloud as %q\n", humanize.Comma(int64(count)), strings.TrimSpace(setName))

	return reportOutcomes(cmd, cloud.Exchange(ctx, sess.client, sess.dialog, req))
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmdContext(cmd)
	sess, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	col, err := parseSortColumn(sortBy)
	if err != nil {
		return err
	}

	req, err := sess.dialog.SubmitImportKey(args[0])
	if err != nil {
		return describeSubmitError(err)
	}
	logger.Info("Fetching shared packets", zap.String("key", req.Key), zap.String("request_id", req.ID))

	if err := reportOutcomes(cmd, cloud.Exchange(ctx, sess.client, sess.dialog, req)); err != nil {
		return err
	}

	rows := sess.dialog.Rows()
	cloud.SortRows(rows, col, sortDesc)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\n%4s  %-48s %8s\n", "#", "Description", "Packets")
	for i, r := range rows {
		fmt.Fprintf(out, "%4d  %-48s %8s\n", i+1, truncate(r.Description, 48), humanize.Comma(int64(r.Count)))
	}

	if selectIndex == 0 {
		return nil
	}
	if selectIndex < 0 || selectIndex > len(rows) {
		return fmt.Errorf("--select must be between 1 and %d", len(rows))
	}

	res, err := sess.dialog.ImportSelected(ctx, rows[selectIndex-1].Tag, true)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\nImported %s packets from %q (%s stored locally)\n",
		humanize.Comma(int64(res.Merged)), res.Description,
		humanize.Comma(int64(sess.dialog.LocalPacketCount())))
	return nil
}

func listPackets(cmd *cobra.Command, args []string) error {
	ctx := cmdContext(cmd)
	sess, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	packets, err := sess.packets.FetchAll(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(packets) == 0 {
		fmt.Fprintln(out, "No local packets. Import a shared set with: pktcloud import <link>")
		return nil
	}
	for _, p := range packets {
		fmt.Fprintf(out, "%-32s %-5s %s:%d\n", truncate(p.Name, 32), p.Protocol, p.ToIP, p.Port)
	}
	fmt.Fprintf(out, "\n%s packets\n", humanize.Comma(int64(len(packets))))
	return nil
}

func parseSortColumn(s string) (cloud.SortColumn, error) {
	switch strings.ToLower(s) {
	case "", "description", "desc", "name":
		return cloud.SortByDescription, nil
	case "count", "packets":
		return cloud.SortByCount, nil
	}
	return 0, fmt.Errorf("unknown sort column %q (use description or count)", s)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
