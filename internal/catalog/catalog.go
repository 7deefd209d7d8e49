// Package catalog defines the static table of Titan tools the gateway
// exposes. Descriptors are immutable after construction; the dispatcher
// reads them but never modifies them.
package catalog

import (
	"context"

	"github.com/markgromer/titan-mcp-server/internal/schema"
	"github.com/markgromer/titan-mcp-server/internal/titan"
)

// Sender abstracts the downstream Titan client for handlers and tests.
type Sender interface {
	Send(ctx context.Context, path string, opt titan.RequestOptions) (*titan.Result, error)
}

// Handler forwards one validated call to the downstream API. args has
// already passed schema validation.
type Handler func(ctx context.Context, api Sender, args map[string]any) (*titan.Result, error)

// Tool is one remote-callable operation.
type Tool struct {
	Name        string
	Description string
	InputSchema schema.Object

	// Mutating marks tools whose invocation changes downstream state.
	// The write guard short-circuits these when writes are disabled.
	Mutating bool

	Handler Handler
}

// Catalog is the fixed tool table, in a stable listing order.
type Catalog struct {
	tools  []Tool
	byName map[string]Tool
}

// New builds a catalog from the given tools. Duplicate names panic; the
// catalog is assembled once at process start from a static table.
func New(tools []Tool) *Catalog {
	byName := make(map[string]Tool, len(tools))
	for _, t := range tools {
		if _, dup := byName[t.Name]; dup {
			panic("catalog: duplicate tool name " + t.Name)
		}
		byName[t.Name] = t
	}
	return &Catalog{tools: tools, byName: byName}
}

// Tools returns the descriptors in listing order.
func (c *Catalog) Tools() []Tool {
	return c.tools
}

// Lookup finds a tool by name.
func (c *Catalog) Lookup(name string) (Tool, bool) {
	t, ok := c.byName[name]
	return t, ok
}
