package main

import (
	"fmt"

	"monoamp/internal/pianod"

	"github.com/spf13/cobra"
)

var roomsCmd = &cobra.Command{
	Use:   "rooms",
	Short: "List the pianod rooms that become Pandora players",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, cfg, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		rooms, err := pianod.ListRooms(cmd.Context(), cfg.PianodURL(), logger,
			pianod.WithReceiveTimeout(cfg.ReceiveTimeout),
			pianod.WithMaxDiscarded(cfg.MaxDiscarded))
		if err != nil {
			return fmt.Errorf("failed to list pianod rooms: %w", err)
		}

		for i, room := range rooms {
			fmt.Printf("Pandora %d\t%s\n", i+1, room)
		}
		return nil
	},
}
