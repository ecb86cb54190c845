package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	// Register migrations via their init() funcs.
	_ "github.com/tiendalabs/tienda/database/migrations"

	"github.com/tiendalabs/tienda/app/routes"
	"github.com/tiendalabs/tienda/config"
	"github.com/tiendalabs/tienda/database/seeders"
	"github.com/tiendalabs/tienda/internal/server"
	"github.com/tiendalabs/tienda/pkg/database"
	"github.com/tiendalabs/tienda/pkg/migration"
	"github.com/tiendalabs/tienda/pkg/router"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "tienda",
	Short: "Tienda — e-commerce API server",
	Long:  "Tienda is a server-rendered e-commerce backend. Use this CLI to serve the API and manage the database.",
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(routeListCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(migrateRollbackCmd)
	rootCmd.AddCommand(migrateStatusCmd)
	rootCmd.AddCommand(seedCmd)
}

// bootDB loads config and opens the Mongo connection for one-shot commands.
func bootDB(ctx context.Context) (*database.Conn, error) {
	if err := config.Load(); err != nil {
		return nil, err
	}
	return database.Connect(ctx, config.MongoURI(), config.MongoDB())
}

// tienda serve
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return server.Start()
	},
}

// tienda route:list
var routeListCmd = &cobra.Command{
	Use:   "route:list",
	Short: "List all registered named routes",
	RunE: func(cmd *cobra.Command, args []string) error {
		r := router.New()
		routes.RegisterAPI(r, routes.Controllers{})

		infos := r.Routes()
		if len(infos) == 0 {
			fmt.Println("No named routes registered.")
			return nil
		}

		sort.Slice(infos, func(i, j int) bool {
			if infos[i].Path != infos[j].Path {
				return infos[i].Path < infos[j].Path
			}
			return infos[i].Method < infos[j].Method
		})

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "METHOD\tPATH\tNAME")
		fmt.Fprintln(w, "------\t----\t----")
		for _, ri := range infos {
			fmt.Fprintf(w, "%s\t%s\t%s\n", ri.Method, ri.Path, ri.Name)
		}
		return w.Flush()
	},
}

// tienda migrate
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run all pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
		defer cancel()

		conn, err := bootDB(ctx)
		if err != nil {
			return err
		}
		defer conn.Close(ctx) //nolint:errcheck

		fmt.Println("Running migrations…")
		return migration.New(conn.DB).Run(ctx)
	},
}

// tienda migrate:rollback
var migrateRollbackCmd = &cobra.Command{
	Use:   "migrate:rollback",
	Short: "Rollback the last batch of migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
		defer cancel()

		conn, err := bootDB(ctx)
		if err != nil {
			return err
		}
		defer conn.Close(ctx) //nolint:errcheck

		fmt.Println("Rolling back last batch…")
		return migration.New(conn.DB).Rollback(ctx)
	},
}

// tienda migrate:status
var migrateStatusCmd = &cobra.Command{
	Use:   "migrate:status",
	Short: "Show the status of each migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()

		conn, err := bootDB(ctx)
		if err != nil {
			return err
		}
		defer conn.Close(ctx) //nolint:errcheck

		return migration.New(conn.DB).Status(ctx)
	},
}

// tienda seed
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Run all database seeders",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
		defer cancel()

		conn, err := bootDB(ctx)
		if err != nil {
			return err
		}
		defer conn.Close(ctx) //nolint:errcheck

		fmt.Println("Running seeders…")
		return seeders.RunAll(ctx, conn.DB)
	},
}
