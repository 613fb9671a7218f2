package catalog

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/Sternrassler/product-catalog/pkg/store"
)

// errEmptyPatch rejects updates that would send an empty $set.
var errEmptyPatch = errors.New("update must set at least one field")

// validateProduct checks the known attributes that are present.
// Absent attributes are not required; the collection is schema-less.
func validateProduct(p *store.Product) error {
	return validation.ValidateStruct(p,
		validation.Field(&p.Name, validation.NilOrNotEmpty, validation.Length(1, 200)),
		validation.Field(&p.Description, validation.Length(0, 2000)),
		validation.Field(&p.Price, validation.Min(0.0)),
		validation.Field(&p.Category, validation.NilOrNotEmpty, validation.Length(1, 64)),
	)
}

// validatePatch checks an update. A known attribute sent as JSON null
// decodes as absent and leaves the stored value unchanged, so a patch made
// only of nulls is empty. Fields are never unset through an update.
func validatePatch(p *store.Product) error {
	if err := validateProduct(p); err != nil {
		return err
	}
	if len(p.Fields()) == 0 {
		return errEmptyPatch
	}
	return nil
}
