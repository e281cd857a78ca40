package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/davidrpo/macrofetch/internal/source"
	"github.com/davidrpo/macrofetch/pkg/types"
)

var flowsCmd = &cobra.Command{
	Use:   "flows",
	Short: "Consolidate per-flow CSV exports into long and wide tables",
	Long: `Flows merges one-CSV-per-flow exports from a local data directory into a
single long table (flow_id injected, date derived from time, value made
numeric) and a wide view keyed by date with one "FLOW :: series" column
per series. Flows that fail to load are reported and skipped; the run
fails only when none load.`,
	RunE: runFlows,
}

func init() {
	flowsCmd.Flags().String("data-dir", "", "directory holding one CSV per flow")
	flowsCmd.Flags().String("flows", "ALL", `comma-separated flow ids, or "ALL"`)
	flowsCmd.Flags().String("flows-from-file", "", "txt/json/csv file listing flow ids")
	flowsCmd.Flags().String("encoding", "", "CSV encoding: utf-8 (default), latin1, windows-1252")
	addOutputFlags(flowsCmd)

	rootCmd.AddCommand(flowsCmd)
}

func runFlows(cmd *cobra.Command, args []string) error {
	dataDir := flagOrConfig(cmd, "data-dir", "flows.data_dir", "banrep_output/data")
	encoding := flagOrConfig(cmd, "encoding", "flows.encoding", "")
	flowList, _ := cmd.Flags().GetString("flows")
	flowsFile, _ := cmd.Flags().GetString("flows-from-file")

	var flows []string
	if flowsFile != "" {
		var err error
		flows, err = source.ReadFlowsFile(flowsFile)
		if err != nil {
			return err
		}
	} else if !strings.EqualFold(strings.TrimSpace(flowList), "ALL") {
		flows = splitTrimmed(flowList)
	}

	store := &source.FlowStore{
		Log:    logger,
		Config: types.FlowsConfig{DataDir: dataDir, Encoding: encoding},
	}

	ctx := cmd.Context()
	res, err := store.Consolidate(ctx, flows)
	if err != nil {
		return err
	}
	for _, ue := range res.Errors {
		logger.Warn().Str("flow", ue.UnitID).Err(ue.Err).Msg("flow skipped")
	}

	return writeOutputs(ctx, cmd, []namedTable{
		{"all_long", res.Long},
		{"all_wide", res.Wide},
	})
}
