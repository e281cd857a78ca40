// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/davidrpo/macrofetch/internal/coerce"
	"github.com/davidrpo/macrofetch/internal/flatten"
	"github.com/davidrpo/macrofetch/internal/httputil"
	"github.com/davidrpo/macrofetch/pkg/types"
)

// DatasetClient fetches record-oriented datasets from a PublicData endpoint
// that wraps results in a success/result envelope.
type DatasetClient struct {
	Client *http.Client
	Log    zerolog.Logger
	Config types.DatasetConfig
}

// ServerFilter restricts a dataset query on the server side: only records
// whose column matches one of the values come back.
type ServerFilter struct {
	Column string
	Values []string
}

// DatasetResult is the parsed payload of one dataset fetch. Table holds the
// flattened records; MetadataKeys lists the envelope keys that accompanied
// them, so callers can see what the source reported without modeling it all.
type DatasetResult struct {
	Name         string
	Table        *types.Table
	Schema       types.ColumnSchema
	MetadataKeys []string
}

// FetchDataset performs one dataset request and flattens the response
// records into a table. The declared column types of the envelope are
// translated into a schema the coercer understands; applying it is the
// caller's choice.
//
// A response whose envelope is missing or reports success=false is a
// structural error. A bare top-level records array (some deployments skip
// the envelope) is tolerated.
func (c *DatasetClient) FetchDataset(ctx context.Context, datasetID, startDate, endDate string, filter *ServerFilter) (*DatasetResult, error) {
	params := url.Values{"datasetId": {datasetID}}
	if startDate != "" {
		params.Set("startDate", startDate)
	}
	if endDate != "" {
		params.Set("endDate", endDate)
	}
	if filter != nil && filter.Column != "" {
		params.Set("columnDestinyName", filter.Column)
		params.Set("values", strings.Join(filter.Values, ","))
	}

	header := http.Header{}
	if c.Config.UserAgent != "" {
		header.Set("User-Agent", c.Config.UserAgent)
	}
	opts := httputil.Options{
		MaxAttempts:    c.Config.Retry.MaxAttempts,
		InitialBackoff: c.Config.Retry.InitialBackoff,
	}

	body, err := httputil.GetJSON(ctx, c.Client, c.Log, c.Config.BaseURL, params, header, opts)
	if err != nil {
		return nil, err
	}

	doc, err := types.ParseValue(body)
	if err != nil {
		return nil, fmt.Errorf("parsing dataset %s response: %w", datasetID, err)
	}

	// Bare array: records with no envelope.
	if doc.Kind() == types.KindList {
		table := flatten.Records(doc.Items())
		c.Log.Info().Str("dataset", datasetID).Int("records", table.NumRows()).Msg("dataset fetched (no envelope)")
		return &DatasetResult{Name: datasetID, Table: table}, nil
	}
	if doc.Kind() != types.KindMap {
		return nil, fmt.Errorf("dataset %s: response is neither an envelope nor a records array", datasetID)
	}

	success, ok := doc.Get("success")
	if ok {
		if b, isBool := success.ScalarValue().(bool); isBool && !b {
			msg := doc.GetPath("message").AsString()
			if msg == "" {
				msg = "no message"
			}
			return nil, fmt.Errorf("dataset %s: server reported failure: %s", datasetID, msg)
		}
	}

	result, ok := doc.Get("result")
	if !ok {
		return nil, fmt.Errorf("dataset %s: response has no result block", datasetID)
	}

	table := flatten.Records(result.GetPath("records").AsList())
	schema := columnSchema(result.GetPath("columns"))

	name := result.GetPath("name").AsString()
	if name == "" {
		name = datasetID
	}

	var meta []string
	for _, f := range result.Fields() {
		if f.Key == "records" || f.Key == "columns" {
			continue
		}
		meta = append(meta, f.Key)
	}

	c.Log.Info().
		Str("dataset", datasetID).
		Int("records", table.NumRows()).
		Int("declared_columns", len(schema)).
		Msg("dataset fetched")

	return &DatasetResult{Name: name, Table: table, Schema: schema, MetadataKeys: meta}, nil
}

// columnSchema maps the envelope's column declarations onto coercion
// targets. The source declares Spanish type names; anything unrecognized
// stays text. Declared names are canonicalized the same way the cleaner
// renames columns, so declarations match flattened headers after renaming.
func columnSchema(columns types.Value) types.ColumnSchema {
	var schema types.ColumnSchema
	for _, col := range columns.AsList() {
		name := firstNonNull(col.GetPath("nameColumn"), col.GetPath("field"), col.GetPath("name")).AsString()
		if name == "" {
			continue
		}
		var typ types.ColumnType
		switch strings.ToLower(strings.TrimSpace(col.GetPath("dataType").AsString())) {
		case "fecha":
			typ = types.TypeDate
		case "fecha hora":
			typ = types.TypeDatetime
		default:
			typ = types.TypeText
		}
		schema = append(schema, types.ColumnSpec{
			Name:  coerce.SnakeCase(name),
			Type:  typ,
			Label: col.GetPath("title").AsString(),
		})
	}
	return schema
}
