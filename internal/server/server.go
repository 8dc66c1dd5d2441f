package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/OFFIS-RIT/pdf2bpmn/backend/internal/app"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/internal/queue"
	mid "github.com/OFFIS-RIT/pdf2bpmn/backend/internal/server/middleware"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/internal/storage"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/internal/util"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/logger"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/go-playground/validator"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

// New builds the echo instance serving a.
func New(a *mid.App) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = &CustomValidator{validator: validator.New()}

	e.Use(mid.AppContextMiddleware(a))
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(util.GetEnvString("UPLOAD_LIMIT", "512M")))

	RegisterRoutes(e)
	return e
}

func Init() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var key keyfunc.Keyfunc
	if authURL := util.GetEnv("AUTH_URL"); authURL != "" {
		k, err := keyfunc.NewDefaultCtx(ctx, []string{authURL + "/jwks"})
		if err != nil {
			logger.Fatal("Failed to load jwks keys", "err", err)
		}
		key = k
	}

	components, err := app.New(ctx, app.Options{})
	if err != nil {
		logger.Fatal("Failed to initialise components", "err", err)
	}
	defer components.Close()

	que := queue.Init()
	defer que.Close()
	ch, err := que.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	if err := queue.SetupQueues(ch, []string{queue.ConvertQueue}); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}

	s3, err := storage.NewS3Client(ctx)
	if err != nil {
		logger.Fatal("Failed to create S3 client", "err", err)
	}

	masterUserID, _ := strconv.ParseInt(util.GetEnv("MASTER_USER_ID"), 10, 64)

	e := New(&mid.App{
		Graph:          components.Graph,
		Store:          components.Store,
		Ambiguities:    components.Ambiguities,
		Queue:          ch,
		Files:          storage.S3Files{Client: s3},
		Key:            key,
		MasterAPIKey:   util.GetEnv("MASTER_API_KEY"),
		MasterUserID:   masterUserID,
		MasterUserRole: util.GetEnv("MASTER_USER_ROLE"),
	})

	go func() {
		port := util.GetEnvString("PORT", "8080")
		logger.Info("Starting server", "port", port)
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
}
