package cli

import (
	"fmt"

	"github.com/preservica-tools/preservica-upload/internal/config"
	"github.com/preservica-tools/preservica-upload/internal/constants"
	"github.com/preservica-tools/preservica-upload/internal/events"
	"github.com/preservica-tools/preservica-upload/internal/logging"
	"github.com/preservica-tools/preservica-upload/internal/packaging"
	"github.com/preservica-tools/preservica-upload/internal/preservica"
	"github.com/preservica-tools/preservica-upload/internal/progress"
	"github.com/preservica-tools/preservica-upload/internal/remotetree"
	"github.com/preservica-tools/preservica-upload/internal/transport"
	"github.com/preservica-tools/preservica-upload/internal/upload"
)

// application holds the components shared by the interactive and headless modes.
type application struct {
	cfg          *config.Config
	bus          *events.EventBus
	client       *preservica.Client
	cache        *remotetree.Cache
	orchestrator *upload.Orchestrator
}

// newApplication wires the Preservica client, folder cache, packaging
// pipeline and upload orchestrator around one event bus. tracker may be
// nil; it receives byte progress while folders are zipped.
func newApplication(cfg *config.Config, logger *logging.Logger, tracker progress.Tracker) (*application, error) {
	client, err := preservica.NewClient(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create Preservica client: %w", err)
	}

	bus := events.NewEventBus(constants.EventBusDefaultBuffer)

	pipelineOpts := []packaging.Option{packaging.WithLogger(logger)}
	if tracker != nil {
		pipelineOpts = append(pipelineOpts, packaging.WithTracker(tracker))
	}
	pipeline := packaging.NewPipeline(client, bus, pipelineOpts...)

	orchestrator := upload.NewOrchestrator(upload.Options{
		Packager:     pipeline,
		Selector:     transport.NewSelector(cfg.BulkThresholdMB),
		Client:       client,
		Sink:         bus,
		Logger:       logger,
		Bucket:       cfg.Bucket,
		ErrorLogPath: cfg.ErrorLogPath,
	})

	return &application{
		cfg:          cfg,
		bus:          bus,
		client:       client,
		cache:        remotetree.NewCache(client, logger),
		orchestrator: orchestrator,
	}, nil
}

// Close releases the event bus. Subscribers see their channels closed.
func (a *application) Close() {
	a.bus.Close()
}
