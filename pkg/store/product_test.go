package store

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestProduct_UnmarshalJSON(t *testing.T) {
	var p Product
	err := json.Unmarshal([]byte(`{
		"_id": "65a1b2c3d4e5f60718293a4b",
		"name": "Widget",
		"price": 9.99,
		"inStock": true,
		"description": null,
		"createdAt": "2024-05-01T12:00:00Z",
		"sku": "W-1",
		"stock": 42,
		"dims": {"w": 1.5, "h": 2}
	}`), &p)
	if err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if p.ID != "65a1b2c3d4e5f60718293a4b" {
		t.Errorf("ID = %q", p.ID)
	}
	if p.Name == nil || *p.Name != "Widget" {
		t.Errorf("Name = %v", p.Name)
	}
	if p.Price == nil || *p.Price != 9.99 {
		t.Errorf("Price = %v", p.Price)
	}
	if p.InStock == nil || !*p.InStock {
		t.Errorf("InStock = %v", p.InStock)
	}
	if p.Description != nil {
		t.Errorf("Description = %v, want nil for null", *p.Description)
	}
	if p.Category != nil {
		t.Errorf("Category = %v, want nil when absent", *p.Category)
	}
	if p.CreatedAt == nil || !p.CreatedAt.Equal(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("CreatedAt = %v", p.CreatedAt)
	}

	if p.Extra["sku"] != "W-1" {
		t.Errorf("Extra[sku] = %v", p.Extra["sku"])
	}
	if p.Extra["stock"] != int64(42) {
		t.Errorf("Extra[stock] = %#v, want int64(42)", p.Extra["stock"])
	}
	dims, ok := p.Extra["dims"].(map[string]any)
	if !ok || dims["w"] != 1.5 || dims["h"] != int64(2) {
		t.Errorf("Extra[dims] = %#v", p.Extra["dims"])
	}
}

func TestProduct_UnmarshalJSON_FieldErrors(t *testing.T) {
	tests := []struct {
		body  string
		field string
	}{
		{`{"price":"cheap"}`, FieldPrice},
		{`{"name":42}`, FieldName},
		{`{"inStock":"yes"}`, FieldInStock},
		{`{"createdAt":"yesterday"}`, FieldCreatedAt},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			var p Product
			err := json.Unmarshal([]byte(tt.body), &p)

			var fe *FieldError
			if !errors.As(err, &fe) {
				t.Fatalf("error = %v, want *FieldError", err)
			}
			if fe.Field != tt.field {
				t.Errorf("Field = %q, want %q", fe.Field, tt.field)
			}
		})
	}
}

func TestProduct_MarshalJSON(t *testing.T) {
	created := time.Date(2024, 5, 1, 14, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	p := Product{
		ID:        "65a1b2c3d4e5f60718293a4b",
		Name:      Ptr("Widget"),
		CreatedAt: &created,
		Extra:     map[string]any{"color": "blue"},
	}

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	if raw[FieldID] != p.ID {
		t.Errorf("_id = %v", raw[FieldID])
	}
	if raw[FieldCreatedAt] != "2024-05-01T12:00:00Z" {
		t.Errorf("createdAt = %v, want UTC RFC3339", raw[FieldCreatedAt])
	}
	if raw["color"] != "blue" {
		t.Errorf("color = %v", raw["color"])
	}
	if _, ok := raw[FieldPrice]; ok {
		t.Error("absent price was emitted")
	}
}

func TestProduct_MarshalJSON_OmitsEmptyID(t *testing.T) {
	data, err := json.Marshal(Product{Name: Ptr("Widget")})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), FieldID) {
		t.Errorf("output %s contains _id", data)
	}
}

func TestProduct_Fields(t *testing.T) {
	p := Product{
		ID:    "ignored",
		Price: Ptr(0.0),
		Extra: map[string]any{"sku": "W-1"},
	}

	fields := p.Fields()
	if len(fields) != 2 {
		t.Errorf("Fields() = %v, want price and sku", fields)
	}
	if fields[FieldPrice] != 0.0 {
		t.Errorf("price = %v, want explicit zero", fields[FieldPrice])
	}
	if _, ok := fields[FieldID]; ok {
		t.Error("Fields() includes _id")
	}
}

func TestFromFields(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	p := FromFields(map[string]any{
		FieldID:        "abc",
		FieldName:      "Widget",
		FieldPrice:     int32(10),
		FieldCategory:  7,
		FieldInStock:   false,
		FieldCreatedAt: created,
		"sku":          "W-1",
	})

	if p.ID != "abc" || *p.Name != "Widget" || *p.Price != 10 || *p.InStock {
		t.Errorf("product = %+v", p)
	}
	if !p.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v", p.CreatedAt)
	}
	if p.Category != nil {
		t.Error("non-string category mapped to Category")
	}
	if p.Extra[FieldCategory] != 7 {
		t.Errorf("Extra[category] = %v, want the raw value", p.Extra[FieldCategory])
	}
	if p.Extra["sku"] != "W-1" {
		t.Errorf("Extra[sku] = %v", p.Extra["sku"])
	}
}

func TestDecodeListing_KeepsNonCanonicalFields(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	listing := []Product{
		{ID: "a1", Name: Ptr("Widget"), Price: Ptr(9.99), InStock: Ptr(true), CreatedAt: &created},
		{ID: "b2", Name: Ptr("Legacy"), Extra: map[string]any{FieldPrice: "free", "stock": int64(3)}},
	}
	data, err := json.Marshal(listing)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var strict []Product
	if err := json.Unmarshal(data, &strict); err == nil {
		t.Fatal("strict decode accepted a string price")
	}

	got, err := DecodeListing(data)
	if err != nil {
		t.Fatalf("DecodeListing() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("decoded %d products, want 2", len(got))
	}

	w := got[0]
	if w.ID != "a1" || *w.Name != "Widget" || *w.Price != 9.99 || !*w.InStock {
		t.Errorf("widget = %+v", w)
	}
	if w.CreatedAt == nil || !w.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", w.CreatedAt, created)
	}

	legacy := got[1]
	if legacy.Price != nil {
		t.Errorf("Price = %v, want nil", *legacy.Price)
	}
	if legacy.Extra[FieldPrice] != "free" {
		t.Errorf("Extra[price] = %v, want free", legacy.Extra[FieldPrice])
	}
	if legacy.Extra["stock"] != int64(3) {
		t.Errorf("Extra[stock] = %#v, want int64(3)", legacy.Extra["stock"])
	}
}

func TestDecodeListing_Invalid(t *testing.T) {
	for _, data := range []string{"{not json", `{"name":"x"}`, `[1,2]`} {
		if _, err := DecodeListing([]byte(data)); err == nil {
			t.Errorf("DecodeListing(%s) expected error", data)
		}
	}
}
