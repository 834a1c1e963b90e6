// This file orchestrates the pdf-shrink service: a NATS worker that shrinks every
// uploaded PDF and announces the shrunk copy.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/book-expert/configurator"
	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/book-expert/pdf-tools/internal/document"
	"github.com/book-expert/pdf-tools/internal/pdfrender"
	"github.com/book-expert/pdf-tools/internal/shrink"
)

// Config represents the overall configuration structure for the pdf-shrink-service.
type Config struct {
	NATS   NATSConfig   `toml:"nats"`
	Paths  PathsConfig  `toml:"paths"`
	Shrink ShrinkConfig `toml:"shrink"`
}

// PathsConfig holds common path configurations.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
}

// NATSConfig holds NATS-specific configuration for the pdf-shrink-service.
type NATSConfig struct {
	URL                     string `toml:"url"`
	PDFStreamName           string `toml:"pdf_stream_name"`
	PDFConsumerName         string `toml:"pdf_shrink_consumer_name"`
	PDFCreatedSubject       string `toml:"pdf_created_subject"`
	PDFObjectStoreBucket    string `toml:"pdf_object_store_bucket"`
	ShrunkStreamName        string `toml:"shrunk_stream_name"`
	ShrunkCreatedSubject    string `toml:"shrunk_created_subject"`
	ShrunkObjectStoreBucket string `toml:"shrunk_object_store_bucket"`
}

// ShrinkConfig selects the shrink settings applied to every document.
type ShrinkConfig struct {
	Preset      string `toml:"preset"`
	Ghostscript string `toml:"ghostscript"`
	DPI         int    `toml:"dpi"`
	Quality     int    `toml:"quality"`
	Grayscale   bool   `toml:"grayscale"`
}

// worker holds what every job shares.
type worker struct {
	jetStream   jetstream.JetStream
	pdfStore    jetstream.ObjectStore
	shrunkStore jetstream.ObjectStore
	engine      *shrink.Engine
	cfg         *Config
	settings    shrink.Settings
	appLogger   *logger.Logger
}

// job represents the context for processing a single message.
type job struct {
	*worker

	msg          jetstream.Msg
	event        *events.PDFCreatedEvent
	header       *events.EventHeader
	workDir      string
	localPDFPath string
}

// disposition is how a finished message is settled with JetStream.
type disposition int

const (
	dispositionAck disposition = iota
	dispositionNak
	dispositionTerm
)

const (
	configURLEnv  = "PDF_SHRINK_CONFIG_URL"
	shrunkSuffix  = ".shrink.pdf"
	natsFetchWait = 5 * time.Second
	ackWait       = 5 * time.Minute
)

var errConfigURLMissing = errors.New(configURLEnv + " is not set")

// main is the entry point of the application.
func main() {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	runErr := run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Printf("Fatal application error: %v", runErr)
		stop()
		os.Exit(1)
	}

	log.Println("Application shut down gracefully.")
}

// run initializes all components and starts the message processing loop.
func run(ctx context.Context) error {
	cfg, appLogger, setupErr := setupConfigAndLogger()
	if setupErr != nil {
		return setupErr
	}

	defer func() {
		if closeErr := appLogger.Close(); closeErr != nil {
			log.Printf("Warning: failed to close app logger: %v", closeErr)
		}
	}()

	settings, settingsErr := resolveSettings(cfg.Shrink)
	if settingsErr != nil {
		return fmt.Errorf("invalid [shrink] configuration: %w", settingsErr)
	}

	natsConnection, connErr := nats.Connect(cfg.NATS.URL)
	if connErr != nil {
		return fmt.Errorf("failed to connect to NATS: %w", connErr)
	}
	defer natsConnection.Close()

	appLogger.Info("Connected to NATS server at %s", natsConnection.ConnectedUrl())

	jetStream, jsErr := jetstream.New(natsConnection)
	if jsErr != nil {
		return fmt.Errorf("failed to create JetStream context: %w", jsErr)
	}

	jsSetupErr := setupJetStream(ctx, jetStream, cfg)
	if jsSetupErr != nil {
		return fmt.Errorf("failed to set up JetStream resources: %w", jsSetupErr)
	}

	consumer, consumerErr := jetStream.Consumer(
		ctx,
		cfg.NATS.PDFStreamName,
		cfg.NATS.PDFConsumerName,
	)
	if consumerErr != nil {
		return fmt.Errorf("failed to get consumer: %w", consumerErr)
	}

	pdfStore, pdfStoreErr := jetStream.ObjectStore(ctx, cfg.NATS.PDFObjectStoreBucket)
	if pdfStoreErr != nil {
		return fmt.Errorf("failed to bind to PDF object store: %w", pdfStoreErr)
	}

	shrunkStore, shrunkStoreErr := jetStream.ObjectStore(ctx, cfg.NATS.ShrunkObjectStoreBucket)
	if shrunkStoreErr != nil {
		return fmt.Errorf("failed to bind to shrunk PDF object store: %w", shrunkStoreErr)
	}

	renderer := pdfrender.NewGhostscript(pdfrender.Options{GhostscriptPath: cfg.Shrink.Ghostscript})
	w := &worker{
		jetStream:   jetStream,
		pdfStore:    pdfStore,
		shrunkStore: shrunkStore,
		engine:      shrink.New(renderer, appLogger),
		cfg:         cfg,
		settings:    settings,
		appLogger:   appLogger,
	}

	appLogger.Info(
		"Worker is running with %d dpi, quality %d, listening for jobs on '%s'...",
		settings.DPI,
		settings.Quality,
		cfg.NATS.PDFCreatedSubject,
	)

	return w.processMessages(ctx, consumer)
}

// setupConfigAndLogger loads configuration and sets up the main application logger.
func setupConfigAndLogger() (*Config, *logger.Logger, error) {
	configURL := os.Getenv(configURLEnv)
	if configURL == "" {
		return nil, nil, errConfigURLMissing
	}

	tempLogger, tempLoggerErr := logger.New(os.TempDir(), "pdf-shrink-bootstrap.log")
	if tempLoggerErr != nil {
		return nil, nil, fmt.Errorf("failed to create bootstrap logger: %w", tempLoggerErr)
	}

	defer func() {
		if closeErr := tempLogger.Close(); closeErr != nil {
			log.Printf("Warning: failed to close temp logger: %v", closeErr)
		}
	}()

	var cfg Config

	loadErr := configurator.LoadFromURL(configURL, &cfg, tempLogger)
	if loadErr != nil {
		return nil, nil, fmt.Errorf(
			"failed to load configuration from URL %s: %w",
			configURL,
			loadErr,
		)
	}

	log.Printf("Configuration loaded from %s", configURL)

	appLogger, loggerErr := logger.New(cfg.Paths.BaseLogsDir, "pdf-shrink-service.log")
	if loggerErr != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", loggerErr)
	}

	return &cfg, appLogger, nil
}

// resolveSettings turns the [shrink] section into validated settings.
func resolveSettings(cfg ShrinkConfig) (shrink.Settings, error) {
	preset, presetErr := shrink.ParsePreset(cfg.Preset)
	if presetErr != nil {
		return shrink.Settings{}, presetErr
	}

	return shrink.ResolveSettings(preset, cfg.DPI, cfg.Quality, cfg.Grayscale)
}

// setupJetStream ensures all required NATS streams and object stores exist.
func setupJetStream(ctx context.Context, jetStream jetstream.JetStream, cfg *Config) error {
	_, streamErr := jetStream.CreateStream(
		ctx,
		newStreamConfig(cfg.NATS.PDFStreamName, cfg.NATS.PDFCreatedSubject),
	)
	if streamErr != nil && !errors.Is(streamErr, jetstream.ErrStreamNameAlreadyInUse) {
		return fmt.Errorf("failed to create PDF stream: %w", streamErr)
	}

	stream, handleErr := jetStream.Stream(ctx, cfg.NATS.PDFStreamName)
	if handleErr != nil {
		return fmt.Errorf("failed to get PDF stream handle: %w", handleErr)
	}

	_, consumerErr := stream.CreateOrUpdateConsumer(ctx, newConsumerConfig(cfg))
	if consumerErr != nil {
		return fmt.Errorf("failed to create PDF consumer: %w", consumerErr)
	}

	_, shrunkStreamErr := jetStream.CreateStream(
		ctx,
		newStreamConfig(cfg.NATS.ShrunkStreamName, cfg.NATS.ShrunkCreatedSubject),
	)
	if shrunkStreamErr != nil && !errors.Is(shrunkStreamErr, jetstream.ErrStreamNameAlreadyInUse) {
		return fmt.Errorf("failed to create shrunk PDF stream: %w", shrunkStreamErr)
	}

	for _, bucket := range []string{cfg.NATS.PDFObjectStoreBucket, cfg.NATS.ShrunkObjectStoreBucket} {
		_, objStoreErr := jetStream.CreateObjectStore(ctx, newObjectStoreConfig(bucket))
		if objStoreErr != nil && !errors.Is(objStoreErr, jetstream.ErrBucketExists) {
			return fmt.Errorf("failed to create object store '%s': %w", bucket, objStoreErr)
		}
	}

	return nil
}

func newStreamConfig(name, subject string) jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:              name,
		Subjects:          []string{subject},
		Retention:         jetstream.WorkQueuePolicy,
		MaxConsumers:      -1,
		MaxMsgs:           -1,
		MaxBytes:          -1,
		Discard:           jetstream.DiscardOld,
		MaxMsgsPerSubject: -1,
		MaxMsgSize:        -1,
		Storage:           jetstream.FileStorage,
		Replicas:          1,
		Compression:       jetstream.NoCompression,
	}
}

func newConsumerConfig(cfg *Config) jetstream.ConsumerConfig {
	return jetstream.ConsumerConfig{
		Durable:       cfg.NATS.PDFConsumerName,
		FilterSubject: cfg.NATS.PDFCreatedSubject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       ackWait,
		MaxDeliver:    -1,
		DeliverPolicy: jetstream.DeliverAllPolicy,
		ReplayPolicy:  jetstream.ReplayInstantPolicy,
		MaxAckPending: -1,
	}
}

func newObjectStoreConfig(bucket string) jetstream.ObjectStoreConfig {
	return jetstream.ObjectStoreConfig{
		Bucket:   bucket,
		MaxBytes: -1,
		Storage:  jetstream.FileStorage,
		Replicas: 1,
	}
}

// processMessages implements the core worker loop.
func (w *worker) processMessages(ctx context.Context, consumer jetstream.Consumer) error {
	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("context error in message loop: %w", ctxErr)
		}

		batch, fetchErr := consumer.Fetch(1, jetstream.FetchMaxWait(natsFetchWait))
		if fetchErr != nil {
			if errors.Is(fetchErr, context.Canceled) || errors.Is(fetchErr, nats.ErrTimeout) {
				continue
			}

			w.appLogger.Error("Error fetching messages: %v", fetchErr)

			continue
		}

		for msg := range batch.Messages() {
			w.handleMessage(ctx, msg)
		}

		if batchErr := batch.Error(); batchErr != nil {
			w.appLogger.Error("Error during message batch processing: %v", batchErr)
		}
	}
}

// handleMessage processes a single message.
func (w *worker) handleMessage(ctx context.Context, msg jetstream.Msg) {
	event, unmarshalErr := unmarshalEvent(msg.Data())
	if unmarshalErr != nil {
		w.appLogger.Error("Terminating undecodable message: %v", unmarshalErr)

		if termErr := msg.Term(); termErr != nil {
			w.appLogger.Error("Failed to TERM message: %v", termErr)
		}

		return
	}

	j := &job{
		worker: w,
		msg:    msg,
		event:  event,
		header: &event.Header,
	}
	j.run(ctx)
}

// unmarshalEvent decodes a PDFCreatedEvent and checks that it names a PDF.
func unmarshalEvent(data []byte) (*events.PDFCreatedEvent, error) {
	var event events.PDFCreatedEvent

	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal PDFCreatedEvent: %w", err)
	}

	if strings.TrimSpace(event.PDFKey) == "" {
		return nil, document.InvalidInputf("PDFCreatedEvent %s has no PDF key", event.Header.EventID)
	}

	return &event, nil
}

// run executes the full lifecycle of a job.
func (j *job) run(ctx context.Context) {
	j.appLogger.Info(
		"Received job for WorkflowID [%s]: shrinking PDF key '%s'",
		j.header.WorkflowID,
		j.event.PDFKey,
	)

	if progErr := j.msg.InProgress(); progErr != nil {
		j.appLogger.Warn("Failed to send InProgress update: %v", progErr)
	}

	dirErr := j.setupWorkDir()
	if dirErr != nil {
		j.settle(dispositionNak, dirErr)

		return
	}
	defer j.cleanupWorkDir()

	if downloadErr := j.downloadPDF(ctx); downloadErr != nil {
		j.settle(dispositionTerm, downloadErr)

		return
	}

	shrunkPath := filepath.Join(j.workDir, "output"+shrunkSuffix)

	report, shrinkErr := j.engine.Shrink(ctx, j.localPDFPath, shrunkPath, j.settings, nil)
	if shrinkErr != nil {
		j.settle(dispositionFor(shrinkErr), shrinkErr)

		return
	}

	j.appLogger.Info("Job [%s]: %s", j.header.WorkflowID, report)

	if publishErr := j.publishShrunkPDF(ctx, shrunkPath); publishErr != nil {
		j.settle(dispositionNak, publishErr)

		return
	}

	j.settle(dispositionAck, nil)
}

// dispositionFor settles a failed shrink: documents that can never succeed are
// terminated, everything else is retried.
func dispositionFor(err error) disposition {
	switch {
	case err == nil:
		return dispositionAck
	case errors.Is(err, document.ErrInvalidInput), errors.Is(err, document.ErrInvalidParameter):
		return dispositionTerm
	default:
		return dispositionNak
	}
}

func (j *job) setupWorkDir() error {
	workDir, err := os.MkdirTemp("", fmt.Sprintf("pdf-shrink-%s-", j.header.WorkflowID))
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}

	j.workDir = workDir
	j.localPDFPath = filepath.Join(workDir, "input.pdf")

	return nil
}

func (j *job) cleanupWorkDir() {
	if err := os.RemoveAll(j.workDir); err != nil {
		j.appLogger.Warn("Failed to remove temp directory '%s': %v", j.workDir, err)
	}
}

func (j *job) downloadPDF(ctx context.Context) error {
	err := j.pdfStore.GetFile(ctx, j.event.PDFKey, j.localPDFPath)
	if err != nil {
		return fmt.Errorf("failed to get PDF '%s' from object store: %w", j.event.PDFKey, err)
	}

	return nil
}

// shrunkObjectName returns '<tenant>/<workflow>/<name>.shrink.pdf' for pdfKey.
func shrunkObjectName(header events.EventHeader, pdfKey string) string {
	base := path.Base(strings.ReplaceAll(pdfKey, "\\", "/"))
	base = strings.TrimSuffix(base, path.Ext(base))

	return fmt.Sprintf("%s/%s/%s%s", header.TenantID, header.WorkflowID, base, shrunkSuffix)
}

// publishShrunkPDF uploads the shrunk document and announces it.
func (j *job) publishShrunkPDF(ctx context.Context, shrunkPath string) error {
	objectName := shrunkObjectName(*j.header, j.event.PDFKey)

	uploadErr := uploadFileToObjectStore(ctx, j.shrunkStore, objectName, shrunkPath)
	if uploadErr != nil {
		return fmt.Errorf("failed to upload '%s': %w", objectName, uploadErr)
	}

	j.appLogger.Info("Job [%s]: Uploaded '%s'", j.header.WorkflowID, objectName)

	eventJSON, marshalErr := json.Marshal(newShrunkEvent(*j.header, objectName))
	if marshalErr != nil {
		return fmt.Errorf("failed to marshal PDFCreatedEvent: %w", marshalErr)
	}

	_, pubErr := j.jetStream.Publish(ctx, j.cfg.NATS.ShrunkCreatedSubject, eventJSON)
	if pubErr != nil {
		return fmt.Errorf("failed to publish PDFCreatedEvent: %w", pubErr)
	}

	j.appLogger.Info("Job [%s]: Published event for '%s'", j.header.WorkflowID, objectName)

	return nil
}

// newShrunkEvent builds the event announcing the shrunk copy, keeping the
// workflow identity of the original.
func newShrunkEvent(header events.EventHeader, objectName string) events.PDFCreatedEvent {
	return events.PDFCreatedEvent{
		Header: events.EventHeader{
			WorkflowID: header.WorkflowID,
			UserID:     header.UserID,
			TenantID:   header.TenantID,
			EventID:    uuid.New().String(),
			Timestamp:  time.Now(),
		},
		PDFKey: objectName,
	}
}

func (j *job) settle(outcome disposition, reason error) {
	switch outcome {
	case dispositionAck:
		if err := j.msg.Ack(); err != nil {
			j.appLogger.Error("Job [%s]: Failed to acknowledge message: %v", j.header.WorkflowID, err)
		} else {
			j.appLogger.Success("Job [%s]: Processing complete. Acknowledged.", j.header.WorkflowID)
		}
	case dispositionNak:
		j.appLogger.Error("NAK'ing message for job [%s]: %v", j.header.WorkflowID, reason)

		if err := j.msg.Nak(); err != nil {
			j.appLogger.Error("Failed to NAK message: %v", err)
		}
	case dispositionTerm:
		j.appLogger.Error("Terminating message for job [%s]: %v", j.header.WorkflowID, reason)

		if err := j.msg.Term(); err != nil {
			j.appLogger.Error("Failed to TERM message: %v", err)
		}
	}
}

func uploadFileToObjectStore(
	ctx context.Context,
	store jetstream.ObjectStore,
	objectName, filePath string,
) error {
	file, openErr := os.Open(filePath)
	if openErr != nil {
		return fmt.Errorf("failed to open file for upload: %w", openErr)
	}

	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			log.Printf("Warning: failed to close file '%s': %v", filePath, closeErr)
		}
	}()

	_, putErr := store.Put(ctx, jetstream.ObjectMeta{Name: objectName}, file)
	if putErr != nil {
		return fmt.Errorf("failed to put file in object store: %w", putErr)
	}

	return nil
}
