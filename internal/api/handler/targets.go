package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kiranshivaraju/cabinprep/internal/api/response"
	"github.com/kiranshivaraju/cabinprep/internal/session"
	"github.com/kiranshivaraju/cabinprep/internal/targets"
	"github.com/kiranshivaraju/cabinprep/pkg/models"
)

// TargetCatalog lists interview targets and draws questions.
type TargetCatalog interface {
	session.TargetTable
	All() []models.Target
}

type targetSummary struct {
	Name      string `json:"name"`
	Questions int    `json:"questions"`
}

// NewListTargetsHandler returns an http.HandlerFunc for GET /api/v1/targets.
func NewListTargetsHandler(catalog TargetCatalog) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		all := catalog.All()
		out := make([]targetSummary, 0, len(all))
		for _, t := range all {
			out = append(out, targetSummary{Name: t.Name, Questions: len(t.Questions)})
		}
		response.Collection(w, out, response.ListMeta{Limit: len(out), Returned: len(out), Total: len(out)})
	}
}

// NewRandomQuestionHandler returns an http.HandlerFunc for
// GET /api/v1/targets/{name}/question.
func NewRandomQuestionHandler(catalog TargetCatalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		target, err := catalog.Lookup(name)
		if err != nil {
			if errors.Is(err, targets.ErrUnknownTarget) {
				response.Error(w, http.StatusNotFound, "UNKNOWN_TARGET", err.Error(), nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}

		question, err := catalog.RandomQuestion(target.Name, nil)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}
		response.JSON(w, map[string]string{"target": target.Name, "question": question})
	}
}
