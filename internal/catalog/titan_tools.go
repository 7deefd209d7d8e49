package catalog

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/markgromer/titan-mcp-server/internal/schema"
	"github.com/markgromer/titan-mcp-server/internal/titan"
)

// Titan returns the gateway's tool table for the Titan commerce API.
func Titan() *Catalog {
	return New([]Tool{
		{
			Name:        "get_price",
			Description: "Get the current price of a product.",
			InputSchema: schema.Object{
				Properties: map[string]schema.Property{
					"product_id": {Type: schema.TypeString, Description: "Product identifier."},
					"currency": {
						Type:        schema.TypeString,
						Description: "Currency to quote in. Defaults to the account currency.",
						Enum:        []string{"usd", "eur", "gbp"},
					},
				},
				Required: []string{"product_id"},
			},
			Handler: func(ctx context.Context, api Sender, args map[string]any) (*titan.Result, error) {
				q := url.Values{}
				setQuery(q, "currency", args)
				return api.Send(ctx, "/v1/prices/"+pathArg(args, "product_id"),
					titan.RequestOptions{Query: q})
			},
		},
		{
			Name:        "list_products",
			Description: "List products in the catalog.",
			InputSchema: schema.Object{
				Properties: map[string]schema.Property{
					"limit": {
						Type:        schema.TypeInteger,
						Description: "Maximum number of products to return.",
						Minimum:     schema.Bound(1),
						Maximum:     schema.Bound(100),
						Coerce:      true,
					},
					"starting_after": {
						Type:        schema.TypeString,
						Description: "Product ID to paginate after.",
					},
				},
			},
			Handler: func(ctx context.Context, api Sender, args map[string]any) (*titan.Result, error) {
				q := url.Values{}
				setQuery(q, "limit", args)
				setQuery(q, "starting_after", args)
				return api.Send(ctx, "/v1/products", titan.RequestOptions{Query: q})
			},
		},
		{
			Name:        "search_products",
			Description: "Search products by name or description.",
			InputSchema: schema.Object{
				Properties: map[string]schema.Property{
					"query": {Type: schema.TypeString, Description: "Free-text search query."},
				},
				Required: []string{"query"},
			},
			Handler: func(ctx context.Context, api Sender, args map[string]any) (*titan.Result, error) {
				q := url.Values{}
				setQuery(q, "query", args)
				return api.Send(ctx, "/v1/products/search", titan.RequestOptions{Query: q})
			},
		},
		{
			Name:        "get_customer",
			Description: "Retrieve a customer record.",
			InputSchema: schema.Object{
				Properties: map[string]schema.Property{
					"customer_id": {Type: schema.TypeString, Description: "Customer identifier."},
				},
				Required: []string{"customer_id"},
			},
			Handler: func(ctx context.Context, api Sender, args map[string]any) (*titan.Result, error) {
				return api.Send(ctx, "/v1/customers/"+pathArg(args, "customer_id"),
					titan.RequestOptions{})
			},
		},
		{
			Name:        "list_customers",
			Description: "List customers, optionally filtered by email.",
			InputSchema: schema.Object{
				Properties: map[string]schema.Property{
					"limit": {
						Type:        schema.TypeInteger,
						Description: "Maximum number of customers to return.",
						Minimum:     schema.Bound(1),
						Maximum:     schema.Bound(100),
						Coerce:      true,
					},
					"email": {Type: schema.TypeString, Description: "Exact email to filter by."},
				},
			},
			Handler: func(ctx context.Context, api Sender, args map[string]any) (*titan.Result, error) {
				q := url.Values{}
				setQuery(q, "limit", args)
				setQuery(q, "email", args)
				return api.Send(ctx, "/v1/customers", titan.RequestOptions{Query: q})
			},
		},
		{
			Name:        "create_customer",
			Description: "Create a new customer record.",
			Mutating:    true,
			InputSchema: schema.Object{
				Properties: map[string]schema.Property{
					"email":       {Type: schema.TypeString, Description: "Customer email address."},
					"name":        {Type: schema.TypeString, Description: "Full name."},
					"description": {Type: schema.TypeString, Description: "Free-form note."},
				},
				Required: []string{"email"},
			},
			Handler: func(ctx context.Context, api Sender, args map[string]any) (*titan.Result, error) {
				return api.Send(ctx, "/v1/customers", titan.RequestOptions{
					Method: http.MethodPost,
					Body:   args,
				})
			},
		},
		{
			Name:        "update_customer",
			Description: "Update an existing customer. At least one field must be provided.",
			Mutating:    true,
			InputSchema: schema.Object{
				Properties: map[string]schema.Property{
					"customer_id": {Type: schema.TypeString, Description: "Customer identifier."},
					"email":       {Type: schema.TypeString, Description: "New email address."},
					"name":        {Type: schema.TypeString, Description: "New full name."},
					"description": {Type: schema.TypeString, Description: "New note."},
				},
				Required:   []string{"customer_id"},
				AtLeastOne: []string{"email", "name", "description"},
			},
			Handler: func(ctx context.Context, api Sender, args map[string]any) (*titan.Result, error) {
				id := pathArg(args, "customer_id")
				body := make(map[string]any, len(args))
				for k, v := range args {
					if k != "customer_id" {
						body[k] = v
					}
				}
				return api.Send(ctx, "/v1/customers/"+id, titan.RequestOptions{
					Method: http.MethodPost,
					Body:   body,
				})
			},
		},
		{
			Name:        "list_invoices",
			Description: "List invoices, optionally filtered by customer or status.",
			InputSchema: schema.Object{
				Properties: map[string]schema.Property{
					"customer_id": {Type: schema.TypeString, Description: "Only invoices for this customer."},
					"status": {
						Type:        schema.TypeString,
						Description: "Only invoices in this status.",
						Enum:        []string{"draft", "open", "paid", "void"},
					},
					"limit": {
						Type:        schema.TypeInteger,
						Description: "Maximum number of invoices to return.",
						Minimum:     schema.Bound(1),
						Maximum:     schema.Bound(100),
						Coerce:      true,
					},
				},
			},
			Handler: func(ctx context.Context, api Sender, args map[string]any) (*titan.Result, error) {
				q := url.Values{}
				setQuery(q, "customer_id", args)
				setQuery(q, "status", args)
				setQuery(q, "limit", args)
				return api.Send(ctx, "/v1/invoices", titan.RequestOptions{Query: q})
			},
		},
		{
			Name:        "create_invoice",
			Description: "Create a draft invoice for a customer.",
			Mutating:    true,
			InputSchema: schema.Object{
				Properties: map[string]schema.Property{
					"customer_id": {Type: schema.TypeString, Description: "Customer to invoice."},
					"days_until_due": {
						Type:        schema.TypeInteger,
						Description: "Days until the invoice is due.",
						Minimum:     schema.Bound(1),
						Coerce:      true,
					},
					"description": {Type: schema.TypeString, Description: "Invoice memo."},
				},
				Required: []string{"customer_id"},
			},
			Handler: func(ctx context.Context, api Sender, args map[string]any) (*titan.Result, error) {
				return api.Send(ctx, "/v1/invoices", titan.RequestOptions{
					Method: http.MethodPost,
					Body:   args,
				})
			},
		},
	})
}

// pathArg returns a validated string argument escaped for use as a path
// segment.
func pathArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return url.PathEscape(s)
}

// setQuery adds the argument to the query when present, rendering typed
// values back to their wire form.
func setQuery(q url.Values, key string, args map[string]any) {
	v, ok := args[key]
	if !ok {
		return
	}
	switch val := v.(type) {
	case string:
		q.Set(key, val)
	case int64:
		q.Set(key, strconv.FormatInt(val, 10))
	case float64:
		q.Set(key, strconv.FormatFloat(val, 'f', -1, 64))
	case bool:
		q.Set(key, strconv.FormatBool(val))
	}
}
