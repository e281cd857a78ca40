package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/davidrpo/macrofetch/internal/clean"
	"github.com/davidrpo/macrofetch/internal/coerce"
	"github.com/davidrpo/macrofetch/internal/source"
	"github.com/davidrpo/macrofetch/pkg/types"
)

var datasetCmd = &cobra.Command{
	Use:   "dataset <dataset-id>",
	Short: "Fetch a record-oriented dataset from a public-data API",
	Long: `Dataset fetches one dataset from a PublicData endpoint, flattens its
nested records into a table, coerces declared date/datetime columns (and
infers the rest), renames columns to snake_case, and drops duplicate rows
and all-null columns.`,
	Args: cobra.ExactArgs(1),
	RunE: runDataset,
}

func init() {
	datasetCmd.Flags().String("base-url", "", "PublicData endpoint")
	datasetCmd.Flags().String("start", "", "start date (YYYY-MM-DD)")
	datasetCmd.Flags().String("end", "", "end date (YYYY-MM-DD)")
	datasetCmd.Flags().String("filter-column", "", "server-side filter column")
	datasetCmd.Flags().String("filter-values", "", "server-side filter values (comma-separated)")
	datasetCmd.Flags().Float64("infer-threshold", coerce.DefaultInferThreshold,
		"fraction of parseable values required to infer a datetime column")
	datasetCmd.Flags().Bool("keep-duplicates", false, "keep exact duplicate rows")
	datasetCmd.Flags().Bool("keep-null-columns", false, "keep columns that are null in every row")
	datasetCmd.Flags().StringArray("where", nil, "client-side equality filter, column=v1|v2 (repeatable)")
	datasetCmd.Flags().String("date-column", "", "column for the client-side date range filter")
	datasetCmd.Flags().String("date-start", "", "inclusive date range start")
	datasetCmd.Flags().String("date-end", "", "inclusive date range end (date-only bounds cover the whole day)")
	datasetCmd.Flags().String("columns", "", "subset of output columns, comma-separated, in order")
	addOutputFlags(datasetCmd)

	rootCmd.AddCommand(datasetCmd)
}

func runDataset(cmd *cobra.Command, args []string) error {
	datasetID := args[0]
	start, _ := cmd.Flags().GetString("start")
	end, _ := cmd.Flags().GetString("end")
	threshold, _ := cmd.Flags().GetFloat64("infer-threshold")
	keepDups, _ := cmd.Flags().GetBool("keep-duplicates")
	keepNulls, _ := cmd.Flags().GetBool("keep-null-columns")

	baseURL := flagOrConfig(cmd, "base-url", "dataset.base_url", "")
	if baseURL == "" {
		return fmt.Errorf("dataset requires --base-url or dataset.base_url in the config")
	}

	var filter *source.ServerFilter
	if col, _ := cmd.Flags().GetString("filter-column"); col != "" {
		values, _ := cmd.Flags().GetString("filter-values")
		filter = &source.ServerFilter{Column: col, Values: splitTrimmed(values)}
	}

	client := &source.DatasetClient{
		Client: newHTTPClient(),
		Log:    logger,
		Config: types.DatasetConfig{
			HTTPConfig: types.HTTPConfig{Timeout: defaultTimeout, UserAgent: defaultUserAgent},
			Retry:      retryConfig(),
			BaseURL:    baseURL,
		},
	}

	ctx := cmd.Context()
	res, err := client.FetchDataset(ctx, datasetID, start, end, filter)
	if err != nil {
		return err
	}
	logger.Info().Str("name", res.Name).Strs("metadata", res.MetadataKeys).Msg("dataset received")

	coerced, err := coerce.Apply(res.Table, res.Schema, coerce.Options{
		SnakeCase:      true,
		StripText:      true,
		InferThreshold: threshold,
	})
	if err != nil {
		return err
	}

	where, _ := cmd.Flags().GetStringArray("where")
	equality, err := parseWhere(where)
	if err != nil {
		return err
	}
	dateColumn, _ := cmd.Flags().GetString("date-column")
	dateStart, _ := cmd.Flags().GetString("date-start")
	dateEnd, _ := cmd.Flags().GetString("date-end")
	columns, _ := cmd.Flags().GetString("columns")

	cleaned, err := clean.Apply(coerced, clean.Options{
		SnakeCase:          true,
		Equality:           equality,
		Date:               clean.DateRange{Column: dateColumn, Start: dateStart, End: dateEnd},
		DropDuplicates:     !keepDups,
		DropAllNullColumns: !keepNulls,
		Subset:             splitTrimmed(columns),
	}, logger)
	if err != nil {
		return err
	}

	return writeOutputs(ctx, cmd, []namedTable{{"dataset_" + coerce.SnakeCase(datasetID), cleaned}})
}

// parseWhere turns repeated column=v1|v2 flags into equality filters.
func parseWhere(clauses []string) (map[string][]string, error) {
	if len(clauses) == 0 {
		return nil, nil
	}
	equality := make(map[string][]string, len(clauses))
	for _, clause := range clauses {
		column, values, ok := strings.Cut(clause, "=")
		if !ok || strings.TrimSpace(column) == "" {
			return nil, fmt.Errorf("invalid --where clause %q, expected column=v1|v2", clause)
		}
		equality[strings.TrimSpace(column)] = strings.Split(values, "|")
	}
	return equality, nil
}
