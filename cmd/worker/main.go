package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/OFFIS-RIT/pdf2bpmn/backend/internal/app"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/internal/queue"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/internal/storage"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/internal/util"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/loader"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/loader/pdf"
	s3loader "github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/loader/s3"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/logger"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/logger/console"
)

func main() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// logger
	debug := util.GetEnvBool("DEBUG", false)
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	// Init s3 client
	s3Client, err := storage.NewS3Client(ctx)
	if err != nil {
		logger.Fatal("Could not create S3 client", "err", err)
	}
	bucket := storage.Bucket()

	components, err := app.New(ctx, app.Options{})
	if err != nil {
		logger.Fatal("Could not initialise components", "err", err)
	}
	defer components.Close()

	count, err := pdf.TiktokenCounter(util.GetEnvString("CHUNK_ENCODING", "o200k_base"))
	if err != nil {
		logger.Fatal("Could not load tokenizer", "err", err)
	}

	// Init rabbitmq
	conn := queue.Init()
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	queues := []string{queue.ConvertQueue}
	if err := queue.SetupQueues(ch, queues); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}

	worker := queue.NewWorker(queue.NewWorkerParams{
		Converter: components.Graph,
		Files: func() loader.FileLoader {
			return s3loader.NewS3FileLoaderWithClient(bucket, s3Client)
		},
		Channel:       ch,
		Count:         count,
		MaxTokens:     util.GetEnvInt("CHUNK_MAX_TOKENS", pdf.DefaultMaxTokens),
		OverlapTokens: util.GetEnvInt("CHUNK_OVERLAP_TOKENS", pdf.DefaultOverlapTokens),
	})

	staleAfter := time.Duration(util.GetEnvInt("STALE_RUN_MINUTES", 30)) * time.Minute
	if err := queue.RecoverStaleRuns(ctx, components.Graph, ch, staleAfter); err != nil {
		logger.Error("Failed to recover stale runs", "err", err)
	}

	// One message at a time.
	consumerCh, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open consumer channel", "err", err)
	}
	defer consumerCh.Close()

	if err := consumerCh.Qos(1, 0, true); err != nil {
		logger.Fatal("Failed to set QoS", "err", err)
	}

	msgs, err := consumerCh.Consume(
		queue.ConvertQueue,
		queue.ConvertQueue+"_consumer",
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,   // args
	)
	if err != nil {
		logger.Fatal("Failed to start consuming", "queue", queue.ConvertQueue, "err", err)
	}

	logger.Info("Listening for messages")

	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutdown signal received, exiting...")
			return
		case msg, ok := <-msgs:
			if !ok {
				logger.Info("Message channel closed", "queue", queue.ConvertQueue)
				return
			}
			startTime := time.Now()
			logger.Info("Received message", "queue", queue.ConvertQueue)

			if err := worker.ProcessConvertMessage(ctx, msg.Body); err != nil {
				logger.Error("Error processing message", "queue", queue.ConvertQueue, "err", err)
				queue.HandleProcessingError(consumerCh, msg, queue.ConvertQueue, err)
			} else {
				if err := msg.Ack(false); err != nil {
					logger.Error("Failed to ack message", "err", err)
				}
				logger.Info("Message processed successfully", "queue", queue.ConvertQueue)
			}

			metrics := components.AI.GetMetrics()
			logger.Info(
				"AI Metrics",
				"input_tokens", metrics.InputTokens,
				"output_tokens", metrics.OutputTokens,
				"total_tokens", metrics.TotalTokens,
				"requests", metrics.Requests,
				"duration", util.FormatDuration(time.Duration(metrics.DurationMs)*time.Millisecond),
			)
			logger.Info("Processing time", "duration", util.FormatDuration(time.Since(startTime)))
			logger.Info("Waiting for next message")
			components.AI.ResetMetrics()
		}
	}
}
