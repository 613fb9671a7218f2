package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Field names of the known product attributes, shared by the JSON and BSON forms.
const (
	FieldID          = "_id"
	FieldName        = "name"
	FieldDescription = "description"
	FieldPrice       = "price"
	FieldCategory    = "category"
	FieldInStock     = "inStock"
	FieldCreatedAt   = "createdAt"
)

// Product is a semi-structured catalog record.
//
// Known attributes are pointers so that an absent field and a zero value stay
// distinct. Any other field supplied by a caller is kept in Extra and stored
// verbatim, because the collection enforces no schema.
type Product struct {
	// ID is the store-assigned identifier (hex ObjectID). Empty before insert.
	ID          string
	Name        *string
	Description *string
	Price       *float64
	Category    *string
	InStock     *bool
	CreatedAt   *time.Time

	// Extra holds fields outside the known set.
	Extra map[string]any
}

// Fields returns the attributes present on p as a flat map, excluding the ID.
// It is the $set document of an update and the body of an insert.
func (p Product) Fields() map[string]any {
	fields := make(map[string]any, len(p.Extra)+6)
	for k, v := range p.Extra {
		fields[k] = v
	}
	if p.Name != nil {
		fields[FieldName] = *p.Name
	}
	if p.Description != nil {
		fields[FieldDescription] = *p.Description
	}
	if p.Price != nil {
		fields[FieldPrice] = *p.Price
	}
	if p.Category != nil {
		fields[FieldCategory] = *p.Category
	}
	if p.InStock != nil {
		fields[FieldInStock] = *p.InStock
	}
	if p.CreatedAt != nil {
		fields[FieldCreatedAt] = *p.CreatedAt
	}
	return fields
}

// MarshalJSON flattens the known attributes and Extra into one object.
func (p Product) MarshalJSON() ([]byte, error) {
	fields := p.Fields()
	if p.CreatedAt != nil {
		fields[FieldCreatedAt] = p.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	if p.ID != "" {
		fields[FieldID] = p.ID
	}
	return json.Marshal(fields)
}

// UnmarshalJSON splits an object into known attributes and Extra.
// A known attribute carrying the wrong JSON type is reported as a *FieldError,
// which is what request payloads need. Cached listings use DecodeListing.
func (p *Product) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*p = Product{}
	for key, value := range raw {
		var err error
		switch key {
		case FieldID:
			err = decodeField(key, value, &p.ID)
		case FieldName:
			p.Name, err = decodeOptional[string](key, value)
		case FieldDescription:
			p.Description, err = decodeOptional[string](key, value)
		case FieldPrice:
			p.Price, err = decodeOptional[float64](key, value)
		case FieldCategory:
			p.Category, err = decodeOptional[string](key, value)
		case FieldInStock:
			p.InStock, err = decodeOptional[bool](key, value)
		case FieldCreatedAt:
			p.CreatedAt, err = decodeOptional[time.Time](key, value)
		default:
			var v any
			dec := json.NewDecoder(bytes.NewReader(value))
			dec.UseNumber()
			if err = dec.Decode(&v); err == nil {
				if p.Extra == nil {
					p.Extra = make(map[string]any)
				}
				p.Extra[key] = normalizeNumbers(v)
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// FieldError reports a known attribute whose value has the wrong type.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %q: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

func decodeField[T any](key string, value json.RawMessage, dst *T) error {
	if err := json.Unmarshal(value, dst); err != nil {
		return &FieldError{Field: key, Err: err}
	}
	return nil
}

// decodeOptional maps JSON null to nil.
func decodeOptional[T any](key string, value json.RawMessage) (*T, error) {
	if bytes.Equal(bytes.TrimSpace(value), []byte("null")) {
		return nil, nil
	}
	var v T
	if err := decodeField(key, value, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// normalizeNumbers turns json.Number into int64 when integral and float64
// otherwise, so extension fields keep integer types in the store.
func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case map[string]any:
		for k, inner := range t {
			t[k] = normalizeNumbers(inner)
		}
		return t
	case []any:
		for i, inner := range t {
			t[i] = normalizeNumbers(inner)
		}
		return t
	default:
		return v
	}
}

// FromFields maps a flat attribute map onto Product. Known fields with an
// unexpected type are kept in Extra rather than dropped. A string "_id"
// becomes the ID.
func FromFields(fields map[string]any) Product {
	var p Product
	extra := func(k string, v any) {
		if p.Extra == nil {
			p.Extra = make(map[string]any)
		}
		p.Extra[k] = v
	}

	for k, v := range fields {
		switch k {
		case FieldID:
			if id, ok := v.(string); ok {
				p.ID = id
			} else {
				extra(k, v)
			}
		case FieldName, FieldDescription, FieldCategory:
			s, ok := v.(string)
			if !ok {
				extra(k, v)
				continue
			}
			switch k {
			case FieldName:
				p.Name = &s
			case FieldDescription:
				p.Description = &s
			default:
				p.Category = &s
			}
		case FieldPrice:
			if f, ok := toFloat(v); ok {
				p.Price = &f
			} else {
				extra(k, v)
			}
		case FieldInStock:
			if b, ok := v.(bool); ok {
				p.InStock = &b
			} else {
				extra(k, v)
			}
		case FieldCreatedAt:
			if ts, ok := v.(time.Time); ok {
				ts = ts.UTC()
				p.CreatedAt = &ts
			} else {
				extra(k, v)
			}
		default:
			extra(k, v)
		}
	}
	return p
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

// DecodeListing reads back a JSON array written by MarshalJSON. Unlike
// UnmarshalJSON it never rejects a product: a known attribute with an
// unexpected type is kept in Extra, as FromFields does for stored documents.
func DecodeListing(data []byte) ([]Product, error) {
	var docs []map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&docs); err != nil {
		return nil, err
	}

	products := make([]Product, 0, len(docs))
	for _, doc := range docs {
		normalizeNumbers(doc)
		if s, ok := doc[FieldCreatedAt].(string); ok {
			if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
				doc[FieldCreatedAt] = ts
			}
		}
		products = append(products, FromFields(doc))
	}
	return products, nil
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
