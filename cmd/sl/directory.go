package main

import (
	"context"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"stageline/internal/domain"
	"stageline/internal/engine"
)

func directoryCmd() *cobra.Command {
	dir := &cobra.Command{Use: "directory", Short: "Register actors, customers and vehicles shown on cards"}
	dir.AddCommand(directoryActorCmd())
	dir.AddCommand(directoryCustomerCmd())
	dir.AddCommand(directoryVehicleCmd())
	return dir
}

func directoryActorCmd() *cobra.Command {
	var a domain.DirectoryActor
	cmd := &cobra.Command{
		Use:   "actor",
		Short: "Create or update an actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTenant(cmd.Context(), func(ctx context.Context, e engine.Engine, tenant string, _ domain.Actor) error {
				a.TenantID = tenant
				if a.ID == "" {
					a.ID = uuid.NewString()
				}
				if err := e.UpsertActor(ctx, a); err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&a.ID, "id", "", "actor id (default: generated)")
	cmd.Flags().StringVar(&a.Name, "name", "", "display name")
	cmd.Flags().StringVar(&a.Email, "email", "", "email")
	cmd.Flags().StringVar(&a.AvatarURL, "avatar-url", "", "avatar url")
	return cmd
}

func directoryCustomerCmd() *cobra.Command {
	var c domain.Customer
	cmd := &cobra.Command{
		Use:   "customer",
		Short: "Create or update a customer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTenant(cmd.Context(), func(ctx context.Context, e engine.Engine, tenant string, _ domain.Actor) error {
				c.TenantID = tenant
				if c.ID == "" {
					c.ID = uuid.NewString()
				}
				if err := e.UpsertCustomer(ctx, c); err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&c.ID, "id", "", "customer id (default: generated)")
	cmd.Flags().StringVar(&c.Name, "name", "", "customer name")
	cmd.Flags().StringVar(&c.Phone, "phone", "", "phone")
	return cmd
}

func directoryVehicleCmd() *cobra.Command {
	var v domain.Vehicle
	cmd := &cobra.Command{
		Use:   "vehicle",
		Short: "Create or update a vehicle",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTenant(cmd.Context(), func(ctx context.Context, e engine.Engine, tenant string, _ domain.Actor) error {
				v.TenantID = tenant
				if v.ID == "" {
					v.ID = uuid.NewString()
				}
				if err := e.UpsertVehicle(ctx, v); err != nil {
					return err
				}
				return printJSONOrTable(v)
			})
		},
	}
	cmd.Flags().StringVar(&v.ID, "id", "", "vehicle id (default: generated)")
	cmd.Flags().StringVar(&v.Plate, "plate", "", "license plate")
	cmd.Flags().StringVar(&v.Brand, "brand", "", "brand")
	cmd.Flags().StringVar(&v.Model, "model", "", "model")
	cmd.Flags().StringVar(&v.CustomerID, "customer", "", "owner customer id")
	return cmd
}
