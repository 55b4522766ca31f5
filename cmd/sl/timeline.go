package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"stageline/internal/domain"
	"stageline/internal/engine"
)

func timelineCmd() *cobra.Command {
	tl := &cobra.Command{Use: "timeline", Short: "Read and append the audit timeline"}
	tl.AddCommand(timelineShowCmd())
	tl.AddCommand(timelineRecentCmd())
	tl.AddCommand(timelineRecordCmd())
	return tl
}

func printEvents(events []domain.TimelineEvent) error {
	if viper.GetBool("json") {
		return printJSON(events)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "When", "Entity", "Action", "Actor", "Metadata"})
	for _, evt := range events {
		actor := ""
		switch {
		case evt.Actor != nil:
			actor = evt.Actor.Name
		case evt.ActorUserID != nil:
			actor = *evt.ActorUserID
		}
		tw.AppendRow(table.Row{
			evt.ID,
			evt.CreatedAt.Local().Format(time.DateTime),
			evt.EntityType + ":" + evt.EntityID,
			evt.Action,
			actor,
			evt.Metadata,
		})
	}
	tw.Render()
	return nil
}

func timelineShowCmd() *cobra.Command {
	var entityType string
	var page, limit int
	cmd := &cobra.Command{
		Use:   "show <entity-id>",
		Short: "Show an entity's history, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTenant(cmd.Context(), func(ctx context.Context, e engine.Engine, tenant string, _ domain.Actor) error {
				res, err := e.EntityTimeline(ctx, tenant, entityType, args[0], page, limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				if err := printEvents(res.Items); err != nil {
					return err
				}
				fmt.Printf("page %d/%d, %d events\n", res.Page, res.TotalPages, res.Total)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&entityType, "entity-type", domain.EntityCard, "entity type")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&limit, "limit", 0, "page size (default from config)")
	return cmd
}

func timelineRecentCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "Tenant activity feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTenant(cmd.Context(), func(ctx context.Context, e engine.Engine, tenant string, _ domain.Actor) error {
				events, err := e.RecentEvents(ctx, tenant, limit)
				if err != nil {
					return err
				}
				return printEvents(events)
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "number of events (default from config)")
	return cmd
}

func timelineRecordCmd() *cobra.Command {
	var entityType, entityID, action string
	var data map[string]string
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Append an externally produced event (e.g. SENT, APPROVED)",
		RunE: func(cmd *cobra.Command, args []string) error {
			metadata := make(map[string]any, len(data))
			for k, v := range data {
				metadata[k] = v
			}
			return withTenant(cmd.Context(), func(ctx context.Context, e engine.Engine, tenant string, actor domain.Actor) error {
				id, err := e.RecordEvent(ctx, tenant, actor, entityType, entityID, action, metadata)
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"id": id})
			})
		},
	}
	cmd.Flags().StringVar(&entityType, "entity-type", "", "entity type, e.g. proposal")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	cmd.Flags().StringVar(&action, "action", "", "action name")
	cmd.Flags().StringToStringVar(&data, "data", nil, "metadata key=value pairs")
	_ = cmd.MarkFlagRequired("entity-type")
	_ = cmd.MarkFlagRequired("entity-id")
	_ = cmd.MarkFlagRequired("action")
	return cmd
}
