// Package memory provides an in-memory spreadsheet adapter used in tests
// and when no Google credentials are configured.
package memory

import (
	"context"
	"fmt"
	"sync"

	"meterlog/internal/core"
	"meterlog/internal/sheets"
)

type Client struct {
	mu   sync.Mutex
	rows map[core.BillKind]map[string]core.Bill
}

var (
	_ sheets.BillWriter  = (*Client)(nil)
	_ sheets.BillDeleter = (*Client)(nil)
)

func New() *Client {
	return &Client{rows: map[core.BillKind]map[string]core.Bill{
		core.Water:       {},
		core.Electricity: {},
	}}
}

func (c *Client) Upsert(ctx context.Context, b core.Bill) (string, error) {
	if err := b.Validate(); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows[b.Kind][b.ID] = b
	return fmt.Sprintf("%s!%s", b.Kind.Table(), b.ID), nil
}

func (c *Client) Delete(ctx context.Context, kind core.BillKind, id string) error {
	if !kind.IsValid() {
		return core.ErrInvalidKind
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rows[kind], id)
	return nil
}

// Rows returns the exported bills of one kind, for assertions in tests.
func (c *Client) Rows(kind core.BillKind) []core.Bill {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]core.Bill, 0, len(c.rows[kind]))
	for _, b := range c.rows[kind] {
		out = append(out, b)
	}
	return out
}
