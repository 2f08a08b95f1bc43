package cli

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/promptledger/PromptLedger/internal/database"
	"github.com/promptledger/PromptLedger/internal/models"
	"github.com/promptledger/PromptLedger/internal/repository"
	"github.com/promptledger/PromptLedger/internal/service"
)

// SeedFile is the YAML layout of the models seed file.
type SeedFile struct {
	Models []*models.Model `yaml:"models"`
}

// LoadSeedFile reads and parses a models seed file.
func LoadSeedFile(path string) ([]*models.Model, error) {
	var f SeedFile
	if err := cleanenv.ReadConfig(path, &f); err != nil {
		return nil, fmt.Errorf("failed to read seed file %s: %w", path, err)
	}
	if len(f.Models) == 0 {
		return nil, fmt.Errorf("seed file %s lists no models", path)
	}
	return f.Models, nil
}

// NewSeedModelsCommand creates the seed-models command.
func NewSeedModelsCommand(rootOpts *RootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed-models",
		Short: "Upsert models from a YAML file",
		Long: `Upsert (provider, model_name) pairs into the models table.

Existing rows are updated in place; rows missing from the file are left alone.
Defaults to MODELS_SEED_FILE when --file is not given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var entries []*models.Model
			if file != "" {
				var err error
				if entries, err = LoadSeedFile(file); err != nil {
					return err
				}
			}

			e, err := rootOpts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			path := file
			if entries == nil {
				path = e.cfg.ModelsSeedFile
				if entries, err = LoadSeedFile(path); err != nil {
					return err
				}
			}

			svc := service.NewModelService(e.pool, database.NewTransactionHelper(e.pool, e.log),
				repository.NewPgModelRepository(e.log), e.log)
			n, err := svc.Seed(cmd.Context(), entries)
			if err != nil {
				return err
			}
			e.log.Info("Models seeded", zap.String("file", path), zap.Int("count", n))
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d models from %s\n", n, path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "path to the models YAML file")
	return cmd
}
