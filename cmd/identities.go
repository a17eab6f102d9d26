package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/fingerprint-matcher/internal/constants"
	"github.com/kozaktomas/fingerprint-matcher/internal/database"
)

var identitiesCmd = &cobra.Command{
	Use:   "identities",
	Short: "Inspect enrolled identities",
}

var identitiesCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the number of enrolled identities",
	Args:  cobra.NoArgs,
	RunE:  runIdentitiesCount,
}

var identitiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled identities ordered by id",
	Args:  cobra.NoArgs,
	RunE:  runIdentitiesList,
}

func init() {
	rootCmd.AddCommand(identitiesCmd)
	identitiesCmd.AddCommand(identitiesCountCmd)
	identitiesCmd.AddCommand(identitiesListCmd)

	identitiesCountCmd.Flags().Bool("json", false, "Output as JSON")

	identitiesListCmd.Flags().Int("limit", 50, "Maximum number of identities to list")
	identitiesListCmd.Flags().Int("offset", 0, "Number of identities to skip")
	identitiesListCmd.Flags().Bool("json", false, "Output as JSON")
}

func runIdentitiesCount(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := database.Open(ctx, &cfg.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	count, err := store.Count(ctx)
	if err != nil {
		return fmt.Errorf("count identities: %w", err)
	}

	if mustGetBool(cmd, "json") {
		return outputJSON(map[string]int{"count": count})
	}
	fmt.Printf("%d enrolled identities\n", count)
	return nil
}

type identityRow struct {
	ID           int64  `json:"id"`
	FullName     string `json:"full_name"`
	BirthDate    string `json:"birth_date"`
	Passport     string `json:"passport"`
	TemplateSize int    `json:"template_size"`
}

func runIdentitiesList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	limit := mustGetInt(cmd, "limit")
	offset := mustGetInt(cmd, "offset")
	if limit <= 0 || limit > constants.DefaultPageSize {
		return fmt.Errorf("--limit must be between 1 and %d", constants.DefaultPageSize)
	}
	if offset < 0 {
		return fmt.Errorf("--offset must not be negative")
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := database.Open(ctx, &cfg.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	identities, err := store.List(ctx, limit, offset)
	if err != nil {
		return fmt.Errorf("list identities: %w", err)
	}

	out := make([]identityRow, 0, len(identities))
	for _, identity := range identities {
		out = append(out, identityRow{
			ID:           identity.ID,
			FullName:     identity.FullName,
			BirthDate:    identity.BirthDate.Format(constants.BirthDateLayout),
			Passport:     identity.Passport,
			TemplateSize: len(identity.Template),
		})
	}

	if mustGetBool(cmd, "json") {
		return outputJSON(out)
	}
	if len(out) == 0 {
		fmt.Println("No identities found")
		return nil
	}

	rows := make([][]string, 0, len(out))
	for _, r := range out {
		rows = append(rows, []string{
			strconv.FormatInt(r.ID, 10), r.FullName, r.BirthDate, r.Passport, strconv.Itoa(r.TemplateSize),
		})
	}
	fmt.Println(renderTable([]string{"ID", "Name", "Born", "Passport", "Template bytes"}, rows, 0, 4))
	return nil
}
