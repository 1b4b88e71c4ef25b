package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/lanegrid/pkg/buildinfo"
	"github.com/matzehuels/lanegrid/pkg/config"
	"github.com/matzehuels/lanegrid/pkg/errors"
	"github.com/matzehuels/lanegrid/pkg/grid"
	lgio "github.com/matzehuels/lanegrid/pkg/io"
	"github.com/matzehuels/lanegrid/pkg/pipeline"
)

// itemPatch is the body of PUT /v1/items/{id}. Absent fields keep their
// current value.
type itemPatch struct {
	X *int `json:"x"`
	Y *int `json:"y"`
	W *int `json:"w"`
	H *int `json:"h"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode request body")
	}
	return nil
}

// =============================================================================
// Health
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"build":  buildinfo.Get(),
		"uptime": time.Since(s.startTime).Seconds(),
	})
}

// =============================================================================
// Grid
// =============================================================================

func (s *Server) handleGrid(w http.ResponseWriter, r *http.Request) {
	var p lgio.Placement
	_ = s.withEngine(func(e *grid.Engine) error {
		p = lgio.Snapshot(e)
		return nil
	})
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDump(w http.ResponseWriter, r *http.Request) {
	var dump string
	_ = s.withEngine(func(e *grid.Engine) error {
		dump = e.String()
		return nil
	})
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, dump)
}

// =============================================================================
// Items
// =============================================================================

func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var spec grid.ItemSpec
	if err := decodeJSON(w, r, &spec); err != nil {
		s.writeError(w, err)
		return
	}

	var placed lgio.PlacedItem
	err := s.withEngine(func(e *grid.Engine) error {
		it, err := e.AddItem(spec)
		if err != nil {
			return err
		}
		placed = lgio.NewPlacedItem(it, e.IndexOf(it))
		return nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Location", "/v1/items/"+placed.ID)
	writeJSON(w, http.StatusCreated, placed)
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var placed lgio.PlacedItem
	err := s.withEngine(func(e *grid.Engine) error {
		it, err := lookup(e, id)
		if err != nil {
			return err
		}
		placed = lgio.NewPlacedItem(it, e.IndexOf(it))
		return nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, placed)
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var patch itemPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		s.writeError(w, err)
		return
	}

	var placed lgio.PlacedItem
	err := s.withEngine(func(e *grid.Engine) error {
		it, err := lookup(e, id)
		if err != nil {
			return err
		}
		prev := *it
		setIfPresent(&it.X, patch.X)
		setIfPresent(&it.Y, patch.Y)
		setIfPresent(&it.W, patch.W)
		setIfPresent(&it.H, patch.H)
		if err := e.UpdateItem(it); err != nil {
			it.X, it.Y, it.W, it.H = prev.X, prev.Y, prev.W, prev.H
			return err
		}
		placed = lgio.NewPlacedItem(it, e.IndexOf(it))
		return nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, placed)
}

func (s *Server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := s.withEngine(func(e *grid.Engine) error {
		it, err := lookup(e, id)
		if err != nil {
			return err
		}
		return e.RemoveItem(it)
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func lookup(e *grid.Engine, id string) (*grid.Item, error) {
	if err := errors.ValidateItemID(id); err != nil {
		return nil, err
	}
	it, ok := e.Item(id)
	if !ok {
		return nil, errors.New(errors.ErrCodeNotFound, "item %q not found", id)
	}
	return it, nil
}

func setIfPresent(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

// =============================================================================
// Configuration and maintenance
// =============================================================================

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	var cfg config.Config
	_ = s.withEngine(func(e *grid.Engine) error {
		cfg = e.Config()
		return nil
	})
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var partial config.Partial
	if err := decodeJSON(w, r, &partial); err != nil {
		s.writeError(w, err)
		return
	}
	s.mutate(w, func(e *grid.Engine) error { return e.UpdateConfig(&partial) })
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, func(e *grid.Engine) error { return e.Reload() })
}

func (s *Server) handleCompact(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, func(e *grid.Engine) error {
		e.Compact()
		return nil
	})
}

// mutate runs fn under the engine lock and answers with the resulting
// placement.
func (s *Server) mutate(w http.ResponseWriter, fn func(e *grid.Engine) error) {
	var p lgio.Placement
	err := s.withEngine(func(e *grid.Engine) error {
		if err := fn(e); err != nil {
			return err
		}
		p = lgio.Snapshot(e)
		return nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// =============================================================================
// Stateless placement
// =============================================================================

func (s *Server) handlePlace(w http.ResponseWriter, r *http.Request) {
	opts, err := placeOptions(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	doc, err := lgio.ReadJSON(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, err)
		return
	}

	res, hit, err := s.runner.PlaceWithCacheInfo(r.Context(), doc, opts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if hit {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	writeJSON(w, http.StatusOK, res)
}

// placeOptions reads compact, refresh and max_displacements from the query.
func placeOptions(r *http.Request) (pipeline.Options, error) {
	q := r.URL.Query()
	var opts pipeline.Options
	var err error

	if opts.Compact, err = boolParam(q.Get("compact")); err != nil {
		return opts, err
	}
	if opts.Refresh, err = boolParam(q.Get("refresh")); err != nil {
		return opts, err
	}
	if v := q.Get("max_displacements"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, errors.Wrap(errors.ErrCodeInvalidInput, err, "max_displacements")
		}
		opts.MaxDisplacements = n
	}
	return opts, nil
}

func boolParam(v string) (bool, error) {
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid boolean %q", v)
	}
	return b, nil
}
