package sheets

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Fetcher reads one whole tab of one spreadsheet.
type Fetcher struct {
	client        *Client
	spreadsheetID string
	sheetName     string
}

func NewFetcher(client *Client, spreadsheetID, sheetName string) *Fetcher {
	return &Fetcher{
		client:        client,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}
}

// FetchRows returns every row of the tab; the first row holds the headers.
func (f *Fetcher) FetchRows(ctx context.Context) ([][]string, error) {
	log.Debug().
		Str("spreadsheet_id", f.spreadsheetID).
		Str("sheet", f.sheetName).
		Msg("Reading sheet values")

	values, err := f.client.ReadValues(ctx, f.spreadsheetID, f.sheetName)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Int("rows", len(values)).
		Int64("api_calls", f.client.GetAPICallCount()).
		Msg("Retrieved sheet values")
	return values, nil
}
