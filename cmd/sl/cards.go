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

func cardCmd() *cobra.Command {
	c := &cobra.Command{Use: "card", Short: "Manage pipeline cards"}
	c.AddCommand(cardCreateCmd())
	c.AddCommand(cardUpdateCmd())
	c.AddCommand(cardMoveCmd())
	c.AddCommand(cardDeleteCmd())
	c.AddCommand(cardShowCmd())
	c.AddCommand(cardListCmd())
	c.AddCommand(cardOverdueCmd())
	return c
}

func printCards(cards []domain.CardView) error {
	if viper.GetBool("json") {
		return printJSON(cards)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Stage", "#", "Title", "Customer", "Status", "SLA deadline", "Overdue"})
	for _, c := range cards {
		stage := c.StageID
		if c.Stage != nil {
			stage = c.Stage.Name
		}
		customer := ""
		if c.Customer != nil {
			customer = c.Customer.Name
		}
		deadline := ""
		if c.SLADeadline != nil {
			deadline = c.SLADeadline.Local().Format(time.DateTime)
		}
		tw.AppendRow(table.Row{c.ID, stage, c.Position, c.Title, customer, c.Status, deadline, c.IsOverdue})
	}
	tw.Render()
	return nil
}

func cardCreateCmd() *cobra.Command {
	var in domain.CardInput
	var customer, vehicle, assignee, channel, complaint, diagnosis string
	var value float64
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a card at the end of a stage",
		RunE: func(cmd *cobra.Command, args []string) error {
			in.CustomerID = optionalString(customer)
			in.VehicleID = optionalString(vehicle)
			in.AssignedToID = optionalString(assignee)
			in.Channel = optionalString(channel)
			in.Complaint = optionalString(complaint)
			in.Diagnosis = optionalString(diagnosis)
			if cmd.Flags().Changed("value") {
				in.EstimatedValue = &value
			}
			return withTenant(cmd.Context(), func(ctx context.Context, e engine.Engine, tenant string, actor domain.Actor) error {
				card, err := e.CreateCard(ctx, tenant, actor, in)
				if err != nil {
					return err
				}
				return printJSONOrTable(card)
			})
		},
	}
	cmd.Flags().StringVar(&in.StageID, "stage", "", "stage id")
	cmd.Flags().StringVar(&in.Title, "title", "", "card title")
	cmd.Flags().StringVar(&customer, "customer", "", "customer id")
	cmd.Flags().StringVar(&vehicle, "vehicle", "", "vehicle id")
	cmd.Flags().StringVar(&assignee, "assignee", "", "assigned user id")
	cmd.Flags().StringVar(&channel, "channel", "", "lead channel")
	cmd.Flags().Float64Var(&value, "value", 0, "estimated value")
	cmd.Flags().StringVar(&complaint, "complaint", "", "customer complaint")
	cmd.Flags().StringVar(&diagnosis, "diagnosis", "", "diagnosis")
	cmd.Flags().StringSliceVar(&in.Tags, "tag", nil, "tag (repeatable)")
	_ = cmd.MarkFlagRequired("stage")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func cardUpdateCmd() *cobra.Command {
	var title, customer, vehicle, assignee, channel, complaint, diagnosis, status string
	var value float64
	var tags []string
	cmd := &cobra.Command{
		Use:   "update <card-id>",
		Short: "Update card fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch := domain.CardPatch{
				Title:        changedString(cmd, "title", title),
				CustomerID:   changedString(cmd, "customer", customer),
				VehicleID:    changedString(cmd, "vehicle", vehicle),
				AssignedToID: changedString(cmd, "assignee", assignee),
				Channel:      changedString(cmd, "channel", channel),
				Complaint:    changedString(cmd, "complaint", complaint),
				Diagnosis:    changedString(cmd, "diagnosis", diagnosis),
			}
			if cmd.Flags().Changed("value") {
				patch.EstimatedValue = &value
			}
			if cmd.Flags().Changed("tag") {
				patch.Tags = &tags
			}
			if cmd.Flags().Changed("status") {
				s := domain.CardStatus(status)
				patch.Status = &s
			}
			return withTenant(cmd.Context(), func(ctx context.Context, e engine.Engine, tenant string, actor domain.Actor) error {
				card, err := e.UpdateCard(ctx, tenant, actor, args[0], patch)
				if err != nil {
					return err
				}
				return printJSONOrTable(card)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "card title")
	cmd.Flags().StringVar(&customer, "customer", "", "customer id")
	cmd.Flags().StringVar(&vehicle, "vehicle", "", "vehicle id")
	cmd.Flags().StringVar(&assignee, "assignee", "", "assigned user id")
	cmd.Flags().StringVar(&channel, "channel", "", "lead channel")
	cmd.Flags().Float64Var(&value, "value", 0, "estimated value")
	cmd.Flags().StringVar(&complaint, "complaint", "", "customer complaint")
	cmd.Flags().StringVar(&diagnosis, "diagnosis", "", "diagnosis")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "replace tags (repeatable)")
	cmd.Flags().StringVar(&status, "status", "", "ACTIVE, COMPLETED, LOST or ABANDONED")
	return cmd
}

func cardMoveCmd() *cobra.Command {
	var stageID string
	var position int
	cmd := &cobra.Command{
		Use:   "move <card-id>",
		Short: "Move a card to a stage and 1-based position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTenant(cmd.Context(), func(ctx context.Context, e engine.Engine, tenant string, actor domain.Actor) error {
				target := stageID
				if target == "" {
					current, err := e.GetCard(ctx, tenant, args[0])
					if err != nil {
						return err
					}
					target = current.StageID
				}
				card, err := e.MoveCard(ctx, tenant, actor, args[0], target, position)
				if err != nil {
					return err
				}
				return printJSONOrTable(card)
			})
		},
	}
	cmd.Flags().StringVar(&stageID, "stage", "", "target stage id (default: current stage)")
	cmd.Flags().IntVar(&position, "position", 1, "target position")
	return cmd
}

func cardDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <card-id>",
		Short: "Soft delete a card (marks it LOST)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTenant(cmd.Context(), func(ctx context.Context, e engine.Engine, tenant string, actor domain.Actor) error {
				if err := e.DeleteCard(ctx, tenant, actor, args[0]); err != nil {
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

func cardShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <card-id>",
		Short: "Show a card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTenant(cmd.Context(), func(ctx context.Context, e engine.Engine, tenant string, _ domain.Actor) error {
				card, err := e.GetCard(ctx, tenant, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(card)
			})
		},
	}
}

func cardListCmd() *cobra.Command {
	var f domain.CardFilter
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cards, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			f.Status = domain.CardStatus(status)
			return withTenant(cmd.Context(), func(ctx context.Context, e engine.Engine, tenant string, _ domain.Actor) error {
				page, err := e.ListCards(ctx, tenant, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(page)
				}
				if err := printCards(page.Items); err != nil {
					return err
				}
				fmt.Printf("page %d/%d, %d cards\n", page.Page, page.TotalPages, page.Total)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.StageID, "stage", "", "stage id")
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.AssignedToID, "assignee", "", "assigned user id")
	cmd.Flags().StringVar(&f.CustomerID, "customer", "", "customer id")
	cmd.Flags().StringVar(&f.Search, "search", "", "search title, customer name and plate")
	cmd.Flags().StringSliceVar(&f.Tags, "tag", nil, "match any tag (repeatable)")
	cmd.Flags().IntVar(&f.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "page size (default from config)")
	return cmd
}

func cardOverdueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "overdue",
		Short: "List active cards past their SLA deadline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTenant(cmd.Context(), func(ctx context.Context, e engine.Engine, tenant string, _ domain.Actor) error {
				cards, err := e.ListOverdueCards(ctx, tenant)
				if err != nil {
					return err
				}
				return printCards(cards)
			})
		},
	}
}

func kanbanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kanban",
		Short: "Show the board",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTenant(cmd.Context(), func(ctx context.Context, e engine.Engine, tenant string, _ domain.Actor) error {
				board, err := e.Kanban(ctx, tenant)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(board)
				}
				renderBoard(board)
				return nil
			})
		},
	}
}

// renderBoard prints one column per stage; overdue cards are marked with "!".
func renderBoard(board []domain.KanbanColumn) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	header := table.Row{}
	depth := 0
	for _, col := range board {
		header = append(header, fmt.Sprintf("%s (%d)", col.Name, len(col.Cards)))
		depth = max(depth, len(col.Cards))
	}
	tw.AppendHeader(header)
	for i := range depth {
		row := table.Row{}
		for _, col := range board {
			cell := ""
			if i < len(col.Cards) {
				c := col.Cards[i]
				cell = fmt.Sprintf("%d. %s", c.Position, c.Title)
				if c.IsOverdue {
					cell += " !"
				}
			}
			row = append(row, cell)
		}
		tw.AppendRow(row)
	}
	tw.Render()
}
