package cli

import (
	"context"
	"strings"

	"github.com/m-mizutani/fireconf"
	"github.com/m-mizutani/goerr/v2"
	"github.com/rivulet-lab/rivulet/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdMigrate() *cli.Command {
	var projectID string
	var databaseID string
	var dryRun bool

	return &cli.Command{
		Name:    "migrate",
		Aliases: []string{"m"},
		Usage:   "Migrate Firestore indexes",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "firestore-project-id",
				Usage:       "Firestore Project ID (required)",
				Required:    true,
				Sources:     cli.EnvVars("RIVULET_FIRESTORE_PROJECT_ID"),
				Destination: &projectID,
			},
			&cli.StringFlag{
				Name:        "firestore-database-id",
				Usage:       "Firestore Database ID",
				Sources:     cli.EnvVars("RIVULET_FIRESTORE_DATABASE_ID"),
				Destination: &databaseID,
			},
			&cli.BoolFlag{
				Name:        "dry-run",
				Usage:       "Preview changes without applying",
				Destination: &dryRun,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := logging.Default()

			logger.Info("Migrate configuration",
				"projectID", projectID,
				"databaseID", databaseID,
				"dryRun", dryRun)

			indexConfig := getIndexConfig()

			if dryRun {
				logger.Info("Dry run mode - showing desired configuration")
				for _, col := range indexConfig.Collections {
					for _, idx := range col.Indexes {
						fields := make([]string, 0, len(idx.Fields))
						for _, f := range idx.Fields {
							fields = append(fields, f.Path)
						}
						logger.Info("Desired index",
							"collection", col.Name,
							"fields", strings.Join(fields, ", "))
					}
				}
				return nil
			}

			client, err := fireconf.New(ctx, projectID, databaseID, indexConfig)
			if err != nil {
				return goerr.Wrap(err, "failed to create fireconf client")
			}

			logger.Info("Applying migrations")
			if err := client.Migrate(ctx); err != nil {
				return goerr.Wrap(err, "failed to apply migrations")
			}
			logger.Info("Migrations applied successfully")

			return nil
		},
	}
}

// getIndexConfig returns the Firestore index configuration
func getIndexConfig() *fireconf.Config {
	return &fireconf.Config{
		Collections: []fireconf.Collection{
			{
				Name: "streams",
				Indexes: []fireconf.Index{
					// ListUnfinished: status ASC, updated_at ASC
					{
						Fields: []fireconf.IndexField{
							{Path: "status", Order: fireconf.OrderAscending},
							{Path: "updated_at", Order: fireconf.OrderAscending},
						},
					},
				},
			},
			{
				Name: "messages",
				Indexes: []fireconf.Index{
					// List: conversation_id ASC, created_at ASC
					{
						Fields: []fireconf.IndexField{
							{Path: "conversation_id", Order: fireconf.OrderAscending},
							{Path: "created_at", Order: fireconf.OrderAscending},
						},
					},
					// GetByStreamID: stream_id ASC, created_at ASC
					{
						Fields: []fireconf.IndexField{
							{Path: "stream_id", Order: fireconf.OrderAscending},
							{Path: "created_at", Order: fireconf.OrderAscending},
						},
					},
				},
			},
		},
	}
}
