package sheets

import (
	"context"
	"fmt"
	"sync/atomic"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

type Client struct {
	service      *sheets.Service
	apiCallCount atomic.Int64
}

// NewClient builds a read-only Sheets client. Pass option.WithAPIKey for a
// public sheet or option.WithCredentialsFile for a service account.
func NewClient(ctx context.Context, opts ...option.ClientOption) (*Client, error) {
	opts = append([]option.ClientOption{option.WithScopes(sheets.SpreadsheetsReadonlyScope)}, opts...)
	service, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &Client{
		service: service,
	}, nil
}

func (c *Client) ReadSheet(ctx context.Context, spreadsheetID, range_ string) ([][]interface{}, error) {
	c.apiCallCount.Add(1)
	resp, err := c.service.Spreadsheets.Values.Get(spreadsheetID, range_).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet: %w", err)
	}

	return resp.Values, nil
}

// ReadValues reads a range and renders every cell as a string, the shape the
// normalizer expects.
func (c *Client) ReadValues(ctx context.Context, spreadsheetID, range_ string) ([][]string, error) {
	raw, err := c.ReadSheet(ctx, spreadsheetID, range_)
	if err != nil {
		return nil, err
	}
	return ToStrings(raw), nil
}

// GetAPICallCount returns how many reads this client has issued.
func (c *Client) GetAPICallCount() int64 {
	return c.apiCallCount.Load()
}

// ToStrings converts a Sheets values matrix to strings. nil cells become "".
func ToStrings(raw [][]interface{}) [][]string {
	out := make([][]string, len(raw))
	for i, row := range raw {
		cells := make([]string, len(row))
		for j, v := range row {
			if v != nil {
				cells[j] = fmt.Sprintf("%v", v)
			}
		}
		out[i] = cells
	}
	return out
}
