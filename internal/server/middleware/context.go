package middleware

import (
	"context"
	"io"

	"github.com/OFFIS-RIT/pdf2bpmn/backend/internal/queue"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/ambiguity"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/graph"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/store"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/labstack/echo/v4"
)

type AppUser struct {
	UserID      int64
	Role        string
	Permissions []string
}

// FileStore keeps uploaded documents.
type FileStore interface {
	PutFile(ctx context.Context, key string, contentType string, body io.Reader) error
	DeleteFile(ctx context.Context, key string) error
}

type App struct {
	Graph          *graph.GraphClient
	Store          store.GraphStore
	Ambiguities    *ambiguity.Service
	Queue          queue.Channel
	Files          FileStore
	Key            keyfunc.Keyfunc
	MasterAPIKey   string
	MasterUserID   int64
	MasterUserRole string
}

type AppContext struct {
	echo.Context
	App  *App
	User *AppUser
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app, nil}
			return next(cc)
		}
	}
}
