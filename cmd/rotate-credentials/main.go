// Replaces local password hashes with throwaway hashes; users sign in through the directory.
package main

import (
	"context"
	"log"
	"os"

	"ethesis-api/config"
	"ethesis-api/services"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
)

func main() {
	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cmd := &cli.Command{
		Name:  "rotate-credentials",
		Usage: "Replace stored local passwords with random bcrypt hashes",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "all", Usage: "rotate every user, not only non-bcrypt values"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			config.InitDB()

			report, err := services.NewMaintenanceService(nil, nil).RotateCredentials(ctx, c.Bool("all"))
			if err != nil {
				return err
			}
			for _, failure := range report.Failed {
				log.Printf("Failed to rotate credential for %s", failure)
			}
			log.Printf("Credential rotation completed: rotated=%d skipped=%d failed=%d", report.Rotated, report.Skipped, len(report.Failed))
			return nil
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal("Credential rotation failed:", err)
	}
}
