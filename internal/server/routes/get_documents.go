package routes

import (
	"errors"
	"net/http"

	"github.com/OFFIS-RIT/pdf2bpmn/backend/internal/server/middleware"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/common"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/graph"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/logger"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/store"

	"github.com/labstack/echo/v4"
)

type documentParams struct {
	ID string `param:"id" validate:"required"`
}

func bindDocument(c echo.Context) (string, bool) {
	data := new(documentParams)
	if err := c.Bind(data); err != nil {
		return "", false
	}
	if err := c.Validate(data); err != nil {
		return "", false
	}
	return data.ID, true
}

// GetDocumentStatusHandler reports conversion progress.
func GetDocumentStatusHandler(c echo.Context) error {
	type statusResponse struct {
		Message string                `json:"message"`
		Status  *graph.DocumentStatus `json:"status,omitempty"`
	}

	id, ok := bindDocument(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, statusResponse{Message: "Invalid document id"})
	}

	app := c.(*middleware.AppContext).App
	status, err := app.Graph.Status(c.Request().Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, statusResponse{Message: "Document not found"})
	}
	if err != nil {
		logger.Error("Failed to read document status", "document", id, "err", err)
		return c.JSON(http.StatusInternalServerError, statusResponse{Message: "Internal server error"})
	}
	return c.JSON(http.StatusOK, statusResponse{Message: "OK", Status: &status})
}

// GetDocumentAmbiguitiesHandler lists the open questions of a document.
func GetDocumentAmbiguitiesHandler(c echo.Context) error {
	type ambiguitiesResponse struct {
		Message     string             `json:"message"`
		Ambiguities []common.Ambiguity `json:"ambiguities"`
	}

	id, ok := bindDocument(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ambiguitiesResponse{Message: "Invalid document id"})
	}

	app := c.(*middleware.AppContext).App
	open, err := app.Ambiguities.ListOpen(c.Request().Context(), id)
	if err != nil {
		logger.Error("Failed to list ambiguities", "document", id, "err", err)
		return c.JSON(http.StatusInternalServerError, ambiguitiesResponse{Message: "Internal server error"})
	}
	return c.JSON(http.StatusOK, ambiguitiesResponse{Message: "OK", Ambiguities: open})
}

type processView struct {
	Process  map[string]any   `json:"process"`
	Tasks    []map[string]any `json:"tasks"`
	Gateways []map[string]any `json:"gateways"`
	Events   []map[string]any `json:"events"`
	Flows    []store.Edge     `json:"flows"`
}

func attributesOf(nodes []store.Node) []map[string]any {
	out := make([]map[string]any, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Attributes)
	}
	return out
}

// GetDocumentProcessesHandler returns the persisted processes of a document
// with their tasks, gateways, events and sequence flows.
func GetDocumentProcessesHandler(c echo.Context) error {
	type processesResponse struct {
		Message   string        `json:"message"`
		Processes []processView `json:"processes"`
	}

	id, ok := bindDocument(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, processesResponse{Message: "Invalid document id"})
	}

	ctx := c.Request().Context()
	s := c.(*middleware.AppContext).App.Store
	fail := func(err error) error {
		logger.Error("Failed to read processes", "document", id, "err", err)
		return c.JSON(http.StatusInternalServerError, processesResponse{Message: "Internal server error"})
	}

	processes, err := s.QueryNodes(ctx, common.KindProcess, store.Filter{
		Attributes: map[string]any{"document_id": id},
	})
	if err != nil {
		return fail(err)
	}

	views := make([]processView, 0, len(processes))
	for _, p := range processes {
		byProcess := store.Filter{Attributes: map[string]any{"process_id": p.ID}}
		tasks, err := s.QueryNodes(ctx, common.KindTask, byProcess)
		if err != nil {
			return fail(err)
		}
		gateways, err := s.QueryNodes(ctx, common.KindGateway, byProcess)
		if err != nil {
			return fail(err)
		}
		events, err := s.QueryNodes(ctx, common.KindEvent, byProcess)
		if err != nil {
			return fail(err)
		}
		flows := []store.Edge{}
		for _, t := range tasks {
			next, err := s.QueryEdges(ctx, common.EdgeNext, t.ID, "")
			if err != nil {
				return fail(err)
			}
			flows = append(flows, next...)
		}
		views = append(views, processView{
			Process:  p.Attributes,
			Tasks:    attributesOf(tasks),
			Gateways: attributesOf(gateways),
			Events:   attributesOf(events),
			Flows:    flows,
		})
	}

	return c.JSON(http.StatusOK, processesResponse{Message: "OK", Processes: views})
}
