package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"ethesis-api/config"
	"ethesis-api/services"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cmd := &cli.Command{
		Name:  "directory-sync",
		Usage: "Synchronize users and roles from the SSO directory",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "per-page", Value: services.DefaultDirectoryPerPage, Usage: "users per directory page (1-100)"},
			&cli.IntFlag{Name: "page", Usage: "process only this page"},
			&cli.BoolFlag{Name: "dry-run", Usage: "report what would change without writing"},
			&cli.StringFlag{Name: "trigger", Value: "cli", Usage: "trigger source recorded on the run"},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Directory sync aborted: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, c *cli.Command) error {
	if c.Int("page") < 0 {
		return fmt.Errorf("--page must be at least 1")
	}

	config.InitDB()

	job := services.NewDirectorySyncService(nil, nil)
	summary, run, err := job.Run(ctx, &services.DirectorySyncInput{
		PerPage:       int(c.Int("per-page")),
		Page:          int(c.Int("page")),
		DryRun:        c.Bool("dry-run"),
		TriggerSource: c.String("trigger"),
		RecordRun:     true,
		Progress: func(format string, args ...any) {
			fmt.Printf(format+"\n", args...)
		},
	})
	if err != nil {
		return err
	}

	if run != nil {
		fmt.Printf("Run #%d finished with status %s\n", run.ID, run.Status)
	}
	fmt.Println(summary.Report())
	return nil
}
