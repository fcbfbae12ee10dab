package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"ethesis-api/config"
	"ethesis-api/services"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
)

func main() {
	log.Println("🗂  Starting stored document audit...")

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, falling back to environment variables")
	}

	cmd := &cli.Command{
		Name:  "storage-audit",
		Usage: "Check that every stored thesis document still exists",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "titles", Usage: "comma-separated thesis title ids (default: all)"},
			&cli.BoolFlag{Name: "ensure-folders", Usage: "create missing per-title upload folders"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			titleIDs, err := parseIDs(c.String("titles"))
			if err != nil {
				return err
			}

			config.InitDB()
			report, err := services.NewMaintenanceService(nil, nil).AuditStorage(ctx, titleIDs, c.Bool("ensure-folders"))
			if err != nil {
				return err
			}

			for _, missing := range report.Missing {
				label := "title_id=" + strconv.FormatUint(uint64(missing.ThesisTitleID), 10)
				if missing.ThesisID != nil {
					label += " thesis_id=" + strconv.FormatUint(uint64(*missing.ThesisID), 10)
				}
				log.Printf("❌ missing %s document %s (%s)", missing.Kind, missing.Path, label)
			}
			log.Printf("Audit finished: %s", report.Report())
			if len(report.Missing) > 0 {
				return fmt.Errorf("%d stored documents are missing", len(report.Missing))
			}
			return nil
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func parseIDs(raw string) ([]uint, error) {
	var ids []uint
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseUint(part, 10, 64)
		if err != nil || id == 0 {
			return nil, fmt.Errorf("invalid thesis title id %q", part)
		}
		ids = append(ids, uint(id))
	}
	return ids, nil
}
