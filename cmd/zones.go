package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"monoamp/internal/amp"

	"github.com/spf13/cobra"
)

var zonesCmd = &cobra.Command{
	Use:   "zones",
	Short: "Poll the amplifier once and print every zone",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, cfg, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		gw := amp.NewGateway(cfg.AmpEndpoint(), cfg.RequestTimeout, logger)
		snapshot, err := gw.Refresh(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to poll amplifier: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ZONE\tCH\tNAME\tPOWER\tVOLUME\tMUTE\tSOURCE\tBASS\tTREBLE\tBALANCE")
		for _, z := range snapshot.Zones {
			fmt.Fprintf(w, "%d\t%d\t%s\t%t\t%.2f\t%t\t%s\t%d\t%d\t%d\n",
				z.ID, z.Channel(), z.Name, z.Power, amp.VolumeLevel(z.Volume), z.Muted,
				snapshot.SourceName(z.Source), z.Bass, z.Treble, z.Balance)
		}
		return w.Flush()
	},
}
