package schema

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func customerSchema() Object {
	return Object{
		Properties: map[string]Property{
			"email":    {Type: TypeString},
			"name":     {Type: TypeString},
			"currency": {Type: TypeString, Enum: []string{"usd", "eur", "gbp"}},
			"limit":    {Type: TypeInteger, Minimum: Bound(1), Maximum: Bound(100), Coerce: true},
			"amount":   {Type: TypeNumber, Minimum: Bound(0)},
			"active":   {Type: TypeBoolean},
		},
		Required: []string{"email"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantPaths []string // violated paths, empty = valid
	}{
		{"valid minimal", `{"email":"a@b.co"}`, nil},
		{"valid full", `{"email":"a@b.co","currency":"eur","limit":10,"amount":1.5,"active":true}`, nil},
		{"missing required", `{"name":"x"}`, []string{"email"}},
		{"empty body missing required", ``, []string{"email"}},
		{"null body missing required", `null`, []string{"email"}},
		{"wrong type string", `{"email":42}`, []string{"email"}},
		{"enum mismatch", `{"email":"a@b.co","currency":"jpy"}`, []string{"currency"}},
		{"below minimum", `{"email":"a@b.co","limit":0}`, []string{"limit"}},
		{"above maximum", `{"email":"a@b.co","limit":101}`, []string{"limit"}},
		{"non-integer", `{"email":"a@b.co","limit":2.5}`, []string{"limit"}},
		{"coerced numeric string", `{"email":"a@b.co","limit":"25"}`, nil},
		{"coerced string out of range", `{"email":"a@b.co","limit":"0"}`, []string{"limit"}},
		{"uncoerced numeric string", `{"email":"a@b.co","amount":"5"}`, []string{"amount"}},
		{"bad boolean", `{"email":"a@b.co","active":"yes"}`, []string{"active"}},
		{"unknown property", `{"email":"a@b.co","nickname":"t"}`, []string{"nickname"}},
		{"not an object", `[1,2]`, []string{"(arguments)"}},
		{
			"all violations reported",
			`{"currency":"jpy","limit":0,"active":"yes"}`,
			[]string{"email", "currency", "limit", "active"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := customerSchema().Validate(json.RawMessage(tt.raw))
			if len(tt.wantPaths) == 0 {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}

			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() error = %v, want *ValidationError", err)
			}
			if len(verr.Violations) != len(tt.wantPaths) {
				t.Fatalf("got %d violations (%v), want %d",
					len(verr.Violations), verr.Violations, len(tt.wantPaths))
			}
			for _, path := range tt.wantPaths {
				if !hasViolation(verr, path) {
					t.Errorf("missing violation for path %q in %v", path, verr.Violations)
				}
			}
		})
	}
}

func TestValidateTypedResults(t *testing.T) {
	args, err := customerSchema().Validate(json.RawMessage(
		`{"email":"a@b.co","limit":"7","amount":2.5,"active":false}`))
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if got, ok := args["email"].(string); !ok || got != "a@b.co" {
		t.Errorf("email = %v (%T), want string a@b.co", args["email"], args["email"])
	}
	if got, ok := args["limit"].(int64); !ok || got != 7 {
		t.Errorf("limit = %v (%T), want int64 7", args["limit"], args["limit"])
	}
	if got, ok := args["amount"].(float64); !ok || got != 2.5 {
		t.Errorf("amount = %v (%T), want float64 2.5", args["amount"], args["amount"])
	}
	if got, ok := args["active"].(bool); !ok || got {
		t.Errorf("active = %v (%T), want false", args["active"], args["active"])
	}
	if _, ok := args["name"]; ok {
		t.Error("absent optional property should not appear in typed args")
	}
}

func TestValidateAtLeastOne(t *testing.T) {
	obj := Object{
		Properties: map[string]Property{
			"customer_id": {Type: TypeString},
			"email":       {Type: TypeString},
			"name":        {Type: TypeString},
		},
		Required:   []string{"customer_id"},
		AtLeastOne: []string{"email", "name"},
	}

	if _, err := obj.Validate(json.RawMessage(`{"customer_id":"cus_1","name":"T"}`)); err != nil {
		t.Fatalf("Validate() error = %v, want nil", err)
	}

	_, err := obj.Validate(json.RawMessage(`{"customer_id":"cus_1"}`))
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Validate() error = %v, want *ValidationError", err)
	}
	if !hasViolation(verr, "(arguments)") {
		t.Errorf("expected at-least-one violation, got %v", verr.Violations)
	}
	if !strings.Contains(verr.Violations[0].Expected, `"email"`) {
		t.Errorf("violation should name the candidate fields, got %q", verr.Violations[0].Expected)
	}
}

func TestMarshalJSONSchema(t *testing.T) {
	obj := Object{
		Properties: map[string]Property{
			"status": {Type: TypeString, Enum: []string{"draft", "open"}, Description: "invoice status"},
			"limit":  {Type: TypeInteger, Minimum: Bound(1)},
		},
		Required: []string{"status"},
	}

	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var doc struct {
		Type       string   `json:"type"`
		Required   []string `json:"required"`
		Properties map[string]struct {
			Type    string   `json:"type"`
			Enum    []string `json:"enum"`
			Minimum *float64 `json:"minimum"`
		} `json:"properties"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if doc.Type != "object" {
		t.Errorf("type = %q, want object", doc.Type)
	}
	if len(doc.Required) != 1 || doc.Required[0] != "status" {
		t.Errorf("required = %v, want [status]", doc.Required)
	}
	if got := doc.Properties["status"].Enum; len(got) != 2 {
		t.Errorf("status enum = %v, want 2 entries", got)
	}
	if got := doc.Properties["limit"].Minimum; got == nil || *got != 1 {
		t.Errorf("limit minimum = %v, want 1", got)
	}
}

func hasViolation(err *ValidationError, path string) bool {
	for _, v := range err.Violations {
		if v.Path == path {
			return true
		}
	}
	return false
}
