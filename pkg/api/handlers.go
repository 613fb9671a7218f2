package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Sternrassler/product-catalog/pkg/catalog"
	"github.com/Sternrassler/product-catalog/pkg/store"
)

type listingResponse struct {
	Source string          `json:"source"`
	Count  int             `json:"count"`
	Data   []store.Product `json:"data"`
}

type insertedResponse struct {
	InsertedID string `json:"insertedId"`
}

type deletedResponse struct {
	DeletedCount int64 `json:"deletedCount"`
}

type populatedResponse struct {
	InsertedCount int `json:"insertedCount"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	products, err := s.catalog.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(products))
}

func (s *Server) handleListCached(w http.ResponseWriter, r *http.Request) {
	listing, err := s.catalog.Listing(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	cacheHeader := "MISS"
	if listing.Source == catalog.SourceCache {
		cacheHeader = "HIT"
	}
	w.Header().Set("X-Cache", cacheHeader)

	writeJSON(w, http.StatusOK, listingResponse{
		Source: string(listing.Source),
		Count:  len(listing.Products),
		Data:   nonNil(listing.Products),
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	p, err := s.catalog.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	products, err := s.catalog.Search(r.Context(), mux.Vars(r)["query"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(products))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.catalog.Stats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	p, err := s.decodeProduct(w, r, "create")
	if err != nil {
		writeError(w, r, err)
		return
	}

	id, err := s.catalog.Create(r.Context(), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, insertedResponse{InsertedID: id})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	patch, err := s.decodeProduct(w, r, "update")
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.catalog.Update(r.Context(), mux.Vars(r)["id"], patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	n, err := s.catalog.Delete(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deletedResponse{DeletedCount: n})
}

func (s *Server) handlePopulate(w http.ResponseWriter, r *http.Request) {
	n, err := s.catalog.Populate(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, populatedResponse{InsertedCount: n})
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.ClearCache(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "cache cleared"})
}

// decodeProduct reads a product object from the body. Malformed JSON and
// known fields of the wrong type are validation errors.
func (s *Server) decodeProduct(w http.ResponseWriter, r *http.Request, op string) (store.Product, error) {
	body := http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)

	var p store.Product
	if err := json.NewDecoder(body).Decode(&p); err != nil {
		return store.Product{}, &catalog.Error{
			Kind:    catalog.KindValidation,
			Op:      op,
			Message: "request body must be a JSON object",
			Err:     err,
		}
	}
	return p, nil
}

func nonNil(products []store.Product) []store.Product {
	if products == nil {
		return []store.Product{}
	}
	return products
}
