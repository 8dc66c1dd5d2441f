package routes

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/OFFIS-RIT/pdf2bpmn/backend/internal/queue"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/internal/server/middleware"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/internal/storage"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/logger"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/store"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

type documentResponse struct {
	Message       string `json:"message"`
	DocumentID    string `json:"document_id,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

func enqueueConversion(c echo.Context, documentID string) (string, error) {
	app := c.(*middleware.AppContext).App
	correlationID, err := gonanoid.New()
	if err != nil {
		return "", err
	}
	msg, err := json.Marshal(queue.ConvertMsg{
		DocumentID:    documentID,
		FileKey:       storage.DocumentKey(documentID),
		CorrelationID: correlationID,
	})
	if err != nil {
		return "", err
	}
	if err := queue.PublishFIFO(app.Queue, queue.ConvertQueue, msg); err != nil {
		return "", err
	}
	return correlationID, nil
}

// UploadDocumentHandler stores an uploaded PDF and queues its conversion.
func UploadDocumentHandler(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, documentResponse{
			Message: "Missing file",
		})
	}
	if strings.ToLower(filepath.Ext(file.Filename)) != ".pdf" {
		return c.JSON(http.StatusBadRequest, documentResponse{
			Message: "Only PDF documents are supported",
		})
	}

	src, err := file.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, documentResponse{
			Message: "Invalid request body",
		})
	}
	defer src.Close()

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App
	documentID := uuid.NewString()
	key := storage.DocumentKey(documentID)

	if err := app.Files.PutFile(ctx, key, storage.ContentType(file.Filename), src); err != nil {
		logger.Error("Failed to upload document", "document", documentID, "err", err)
		return c.JSON(http.StatusInternalServerError, documentResponse{
			Message: "Internal server error",
		})
	}

	correlationID, err := enqueueConversion(c, documentID)
	if err != nil {
		logger.Error("Failed to queue conversion", "document", documentID, "err", err)
		if err := app.Files.DeleteFile(ctx, key); err != nil {
			logger.Warn("Failed to remove orphaned upload", "key", key, "err", err)
		}
		return c.JSON(http.StatusInternalServerError, documentResponse{
			Message: "Internal server error",
		})
	}

	logger.Info("Document queued", "document", documentID, "file", file.Filename, "correlation_id", correlationID)
	return c.JSON(http.StatusAccepted, documentResponse{
		Message:       "Document queued for conversion",
		DocumentID:    documentID,
		CorrelationID: correlationID,
	})
}

// ConvertDocumentHandler queues another conversion of an uploaded document.
// Answers already given are kept.
func ConvertDocumentHandler(c echo.Context) error {
	type convertParams struct {
		ID string `param:"id" validate:"required,uuid4"`
	}

	data := new(convertParams)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, documentResponse{Message: "Invalid document id"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, documentResponse{Message: "Invalid document id"})
	}

	app := c.(*middleware.AppContext).App
	if _, err := app.Graph.Status(c.Request().Context(), data.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, documentResponse{Message: "Document not found"})
		}
		logger.Error("Failed to read document status", "document", data.ID, "err", err)
		return c.JSON(http.StatusInternalServerError, documentResponse{Message: "Internal server error"})
	}

	correlationID, err := enqueueConversion(c, data.ID)
	if err != nil {
		logger.Error("Failed to queue conversion", "document", data.ID, "err", err)
		return c.JSON(http.StatusInternalServerError, documentResponse{Message: "Internal server error"})
	}
	return c.JSON(http.StatusAccepted, documentResponse{
		Message:       "Document queued for conversion",
		DocumentID:    data.ID,
		CorrelationID: correlationID,
	})
}
