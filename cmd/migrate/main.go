package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"ethesis-api/config"
	"ethesis-api/models"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cmd := &cli.Command{
		Name:  "migrate",
		Usage: "Create or update the eThesis schema",
		Action: func(ctx context.Context, c *cli.Command) error {
			config.InitDB()
			if err := config.DB.WithContext(ctx).AutoMigrate(models.All()...); err != nil {
				return fmt.Errorf("auto migrate: %w", err)
			}
			log.Printf("Migrated %d models", len(models.All()))
			return nil
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
