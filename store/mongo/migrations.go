package mongo

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/xraph/grove/drivers/mongodriver/mongomigrate"
	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the tradefin store (MongoDB).
var Migrations = migrate.NewGroup("tradefin")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_tradefin_indexes",
			Version: "20250101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				mexec, ok := exec.(*mongomigrate.Executor)
				if !ok {
					return fmt.Errorf("expected mongomigrate executor, got %T", exec)
				}
				indexes := migrationIndexes()
				for _, col := range slices.Sorted(maps.Keys(indexes)) {
					if err := mexec.CreateIndexes(ctx, col, indexes[col]); err != nil {
						return err
					}
				}
				return nil
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				mexec, ok := exec.(*mongomigrate.Executor)
				if !ok {
					return fmt.Errorf("expected mongomigrate executor, got %T", exec)
				}
				for col := range migrationIndexes() {
					if err := mexec.DB().Collection(col).Drop(ctx); err != nil {
						return err
					}
				}
				return nil
			},
		},
	)
}
