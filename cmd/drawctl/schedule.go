package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/solarchallenge/draw-server/draw"
	"github.com/solarchallenge/draw-server/models"
	"github.com/solarchallenge/draw-server/services"
)

func newScheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule <roster.csv>",
		Short: "Generate a round-robin schedule from a roster file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchedule(cmd, args[0])
		},
	}
}

func loadRosterFile(path string) ([]*models.Car, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open roster: %w", err)
	}
	defer f.Close()

	rows, err := services.ParseRoster(f)
	if err != nil {
		return nil, err
	}
	cars := make([]*models.Car, len(rows))
	for i, row := range rows {
		cars[i] = row.Car(1)
	}
	return cars, nil
}

func runSchedule(cmd *cobra.Command, path string) error {
	cars, err := loadRosterFile(path)
	if err != nil {
		return err
	}

	scheduler := draw.NewRoundRobinScheduler()
	races, err := scheduler.Schedule(1, cars)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RACE\tROUND\tLANE 1\tLANE 2")
	for _, race := range races {
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\n", race.Race, race.Round, laneLabel(race.Lane1), laneLabel(race.Lane2))
	}
	return w.Flush()
}

func laneLabel(car *int) string {
	if car == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *car)
}
