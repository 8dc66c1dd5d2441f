package routes

import (
	"errors"
	"net/http"

	"github.com/OFFIS-RIT/pdf2bpmn/backend/internal/server/middleware"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/ambiguity"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/common"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/logger"

	"github.com/labstack/echo/v4"
)

type ambiguityResponse struct {
	Message   string            `json:"message"`
	Ambiguity *common.Ambiguity `json:"ambiguity,omitempty"`
}

// GetAmbiguityHandler returns one question, open or answered.
func GetAmbiguityHandler(c echo.Context) error {
	type getAmbiguityParams struct {
		ID string `param:"id" validate:"required"`
	}

	data := new(getAmbiguityParams)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, ambiguityResponse{Message: "Invalid ambiguity id"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, ambiguityResponse{Message: "Invalid ambiguity id"})
	}

	app := c.(*middleware.AppContext).App
	amb, err := app.Ambiguities.Get(c.Request().Context(), data.ID)
	if errors.Is(err, ambiguity.ErrNotFound) {
		return c.JSON(http.StatusNotFound, ambiguityResponse{Message: "Ambiguity not found"})
	}
	if err != nil {
		logger.Error("Failed to read ambiguity", "id", data.ID, "err", err)
		return c.JSON(http.StatusInternalServerError, ambiguityResponse{Message: "Internal server error"})
	}
	return c.JSON(http.StatusOK, ambiguityResponse{Message: "OK", Ambiguity: &amb})
}

// ResolveAmbiguityHandler answers a question and applies the answer to the
// stored graph.
func ResolveAmbiguityHandler(c echo.Context) error {
	type resolveAmbiguityBody struct {
		ID     string `param:"id" validate:"required"`
		Answer string `json:"answer" validate:"required"`
	}

	data := new(resolveAmbiguityBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, ambiguityResponse{Message: "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, ambiguityResponse{Message: "Invalid request body"})
	}

	app := c.(*middleware.AppContext).App
	amb, err := app.Ambiguities.Resolve(c.Request().Context(), data.ID, data.Answer)
	switch {
	case errors.Is(err, ambiguity.ErrNotFound):
		return c.JSON(http.StatusNotFound, ambiguityResponse{Message: "Ambiguity not found"})
	case errors.Is(err, ambiguity.ErrAlreadyResolved):
		return c.JSON(http.StatusConflict, ambiguityResponse{Message: "Ambiguity already resolved"})
	case err != nil:
		logger.Error("Failed to resolve ambiguity", "id", data.ID, "err", err)
		return c.JSON(http.StatusInternalServerError, ambiguityResponse{Message: "Internal server error"})
	}
	return c.JSON(http.StatusOK, ambiguityResponse{Message: "Ambiguity resolved", Ambiguity: &amb})
}
