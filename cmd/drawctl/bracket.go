package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/solarchallenge/draw-server/draw"
	"github.com/solarchallenge/draw-server/models"
)

func newBracketCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bracket <roster.csv>",
		Short: "Build a knockout bracket seeded by roster seed points",
		Long:  "Seeds are ordered by the roster's seed_points column, so the bracket can be drawn before any races are run.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBracket(cmd, args[0])
		},
	}
	return cmd
}

func runBracket(cmd *cobra.Command, path string) error {
	cars, err := loadRosterFile(path)
	if err != nil {
		return err
	}

	// Без сыгранных заездов калькулятор ранжирует по seed_points.
	calculator := draw.NewStandingsCalculator(draw.DefaultPolicy)
	standings := calculator.Standings(cars, nil)

	byID := make(map[int]*models.Car, len(cars))
	for _, car := range cars {
		byID[car.CarID] = car
	}
	var seeds []int
	for _, st := range standings {
		if car, ok := byID[st.CarID]; ok && car.EligibleKnockout() {
			seeds = append(seeds, st.CarID)
		}
	}

	bracket, err := draw.NewBracketBuilder().Build(1, seeds)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RACE\tBRACKET\tROUND\tSEED A\tSEED B")
	for _, m := range bracket.ScheduledRaces() {
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\n", m.RaceNumber, m.Side, m.Round, seedText(m.SeedA), seedText(m.SeedB))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "\nPlay order:")
	for _, label := range bracket.PlayOrder() {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", label)
	}
	return nil
}

func seedText(s models.Seed) string {
	switch {
	case s.Bye:
		return "bye"
	case s.Known:
		return fmt.Sprintf("%d", s.CarID)
	default:
		return "tbd"
	}
}
