package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"stageline/internal/domain"
	"stageline/internal/engine"
)

func stageCmd() *cobra.Command {
	st := &cobra.Command{Use: "stage", Short: "Manage pipeline stages"}
	st.AddCommand(stageListCmd())
	st.AddCommand(stageCreateCmd())
	st.AddCommand(stageUpdateCmd())
	st.AddCommand(stageDeleteCmd())
	st.AddCommand(stageReorderCmd())
	st.AddCommand(stageSeedCmd())
	return st
}

func printStages(stages []domain.Stage) error {
	if viper.GetBool("json") {
		return printJSON(stages)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"#", "ID", "Name", "Color", "SLA (h)", "Final", "Lost", "Active"})
	for _, s := range stages {
		sla := ""
		if s.SLAHours != nil {
			sla = strconv.Itoa(*s.SLAHours)
		}
		tw.AppendRow(table.Row{s.Position, s.ID, s.Name, s.Color, sla, s.IsFinal, s.IsLost, s.ActiveCards})
	}
	tw.Render()
	return nil
}

func stageListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stages by position",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTenant(cmd.Context(), func(ctx context.Context, e engine.Engine, tenant string, _ domain.Actor) error {
				stages, err := e.ListStages(ctx, tenant)
				if err != nil {
					return err
				}
				return printStages(stages)
			})
		},
	}
}

func stageCreateCmd() *cobra.Command {
	var in domain.StageInput
	var sla int
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a stage",
		RunE: func(cmd *cobra.Command, args []string) error {
			in.SLAHours = changedInt(cmd, "sla-hours", sla)
			return withTenant(cmd.Context(), func(ctx context.Context, e engine.Engine, tenant string, actor domain.Actor) error {
				stage, err := e.CreateStage(ctx, tenant, actor, in)
				if err != nil {
					return err
				}
				return printJSONOrTable(stage)
			})
		},
	}
	cmd.Flags().StringVar(&in.Name, "name", "", "stage name")
	cmd.Flags().IntVar(&in.Position, "position", 0, "1-based position (default: append)")
	cmd.Flags().StringVar(&in.Color, "color", "", "hex color, e.g. #3B82F6")
	cmd.Flags().IntVar(&sla, "sla-hours", 0, "SLA in hours")
	cmd.Flags().BoolVar(&in.IsFinal, "final", false, "final stage")
	cmd.Flags().BoolVar(&in.IsLost, "lost", false, "lost stage (implies final)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func stageUpdateCmd() *cobra.Command {
	var name, color string
	var position, sla int
	var final, lost bool
	cmd := &cobra.Command{
		Use:   "update <stage-id>",
		Short: "Update a stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch := domain.StagePatch{
				Name:     changedString(cmd, "name", name),
				Position: changedInt(cmd, "position", position),
				Color:    changedString(cmd, "color", color),
				SLAHours: changedInt(cmd, "sla-hours", sla),
				IsFinal:  changedBool(cmd, "final", final),
				IsLost:   changedBool(cmd, "lost", lost),
			}
			return withTenant(cmd.Context(), func(ctx context.Context, e engine.Engine, tenant string, actor domain.Actor) error {
				stage, err := e.UpdateStage(ctx, tenant, actor, args[0], patch)
				if err != nil {
					return err
				}
				return printJSONOrTable(stage)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "stage name")
	cmd.Flags().IntVar(&position, "position", 0, "new 1-based position")
	cmd.Flags().StringVar(&color, "color", "", "hex color")
	cmd.Flags().IntVar(&sla, "sla-hours", 0, "SLA in hours (0 clears it)")
	cmd.Flags().BoolVar(&final, "final", false, "final stage")
	cmd.Flags().BoolVar(&lost, "lost", false, "lost stage")
	return cmd
}

func stageDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <stage-id>",
		Short: "Delete a stage that owns no cards",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTenant(cmd.Context(), func(ctx context.Context, e engine.Engine, tenant string, actor domain.Actor) error {
				if err := e.DeleteStage(ctx, tenant, actor, args[0]); err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"deleted": args[0]})
				}
				fmt.Println("deleted", args[0])
				return nil
			})
		},
	}
}

func stageReorderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reorder <stage-id>=<position>...",
		Short: "Assign stage positions in one step",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			positions, err := parseStagePositions(args)
			if err != nil {
				return err
			}
			return withTenant(cmd.Context(), func(ctx context.Context, e engine.Engine, tenant string, actor domain.Actor) error {
				stages, err := e.ReorderStages(ctx, tenant, actor, positions)
				if err != nil {
					return err
				}
				return printStages(stages)
			})
		},
	}
}

func parseStagePositions(args []string) ([]domain.StagePosition, error) {
	out := make([]domain.StagePosition, 0, len(args))
	for _, arg := range args {
		id, pos, ok := strings.Cut(arg, "=")
		if !ok || id == "" {
			return nil, fmt.Errorf("invalid assignment %q, expected <stage-id>=<position>", arg)
		}
		n, err := strconv.Atoi(pos)
		if err != nil {
			return nil, fmt.Errorf("invalid position in %q: %w", arg, err)
		}
		out = append(out, domain.StagePosition{StageID: id, Position: n})
	}
	return out, nil
}

func stageSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the configured default pipeline if the tenant has no stages",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTenant(cmd.Context(), func(ctx context.Context, e engine.Engine, tenant string, actor domain.Actor) error {
				stages, seeded, err := e.SeedStages(ctx, tenant, actor, nil)
				if err != nil {
					return err
				}
				if !seeded && !viper.GetBool("json") {
					fmt.Println("tenant already has stages; nothing seeded")
				}
				return printStages(stages)
			})
		},
	}
}
