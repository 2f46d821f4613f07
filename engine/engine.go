package engine

import (
	"fmt"
	"sync"

	"github.com/Dashboard4-0/MS5-App-sub002/catalog"
	"github.com/Dashboard4-0/MS5-App-sub002/config"
	"github.com/Dashboard4-0/MS5-App-sub002/oee"
	"github.com/Dashboard4-0/MS5-App-sub002/poller"
	"github.com/Dashboard4-0/MS5-App-sub002/store"
	"github.com/Dashboard4-0/MS5-App-sub002/telemetry"
)

// LogFunc is the logging callback signature.
type LogFunc func(format string, args ...interface{})

// Engine centralizes the telemetry pipeline and orchestrates subsystems.
type Engine struct {
	cfg        *config.Config
	configPath string
	db         *store.DB
	logFn      LogFunc
	debugFn    LogFunc

	cat       *catalog.Catalog
	refresher *catalog.Refresher
	processor *telemetry.Processor
	edge      *telemetry.EdgeDetector
	pollMgr   *poller.Manager
	oeeWorker *oee.Worker
	retention *store.RetentionWorker

	Events   *EventBus
	stopChan chan struct{}
	stopOnce sync.Once
}

// Config holds the parameters needed to create an Engine.
type Config struct {
	AppConfig  *config.Config
	ConfigPath string
	DB         *store.DB
	LogFunc    LogFunc
	Debug      bool
}

// New creates a new Engine. Call Start() to initialize and wire subsystems.
func New(c Config) *Engine {
	logFn := c.LogFunc
	if logFn == nil {
		logFn = func(string, ...interface{}) {}
	}
	debugFn := LogFunc(func(string, ...interface{}) {})
	if c.Debug {
		debugFn = logFn
	}
	return &Engine{
		cfg:        c.AppConfig,
		configPath: c.ConfigPath,
		db:         c.DB,
		logFn:      logFn,
		debugFn:    debugFn,
		Events:     NewEventBus(),
		stopChan:   make(chan struct{}),
	}
}

// Start loads the registry, wires emitters, and starts all workers.
func (e *Engine) Start() error {
	cat, err := catalog.New(e.db)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	e.cat = cat

	e.edge = telemetry.NewEdgeDetector(e.db, &faultEmitter{bus: e.Events})
	e.processor = telemetry.NewProcessor(e.db, e.cat, e.edge,
		&sampleEmitter{bus: e.Events}, e.cfg.Store.WriteRetries)

	pollEmit := &pollEmitter{bus: e.Events, handler: e.processor.HandleBatch}
	specs := make([]poller.SourceSpec, 0, len(e.cfg.Sources))
	for _, s := range e.cfg.Sources {
		specs = append(specs, poller.SourceSpec{Config: s, Catalog: e.cat})
	}
	e.pollMgr = poller.NewManager(specs, pollEmit)

	calc := oee.NewCalculator(e.cfg.OEE.ZeroPartsQuality)
	e.oeeWorker = oee.NewWorker(e.db, e.cat, calc, &oeeEmitter{bus: e.Events}, e.cfg.OEE.CycleInterval)

	e.refresher = catalog.NewRefresher(e.cat, &catalogEmitter{bus: e.Events}, e.cfg.Catalog.RefreshInterval)
	e.retention = store.NewRetentionWorker(e.db,
		e.cfg.Store.RetentionHorizon, e.cfg.Store.CompressionAge, e.cfg.Store.SweepInterval)

	e.wireDebugLog()

	e.pollMgr.Start()
	e.oeeWorker.Start()
	e.refresher.Start()
	e.retention.Start()

	snap := e.cat.Snapshot()
	e.logFn("Engine started: namespace=%s plant=%s sources=%d definitions=%d",
		e.cfg.Namespace, e.cfg.PlantID, len(e.cfg.Sources), snap.DefinitionCount())
	return nil
}

// Stop shuts down all workers gracefully. Pollers stop first so no new
// samples arrive while the rest drains. Safe to call more than once,
// concurrently.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopChan) })

	if e.pollMgr != nil {
		e.pollMgr.Stop()
	}
	if e.oeeWorker != nil {
		e.oeeWorker.Stop()
	}
	if e.refresher != nil {
		e.refresher.Stop()
	}
	if e.retention != nil {
		e.retention.Stop()
	}

	e.logFn("Engine stopped")
}

func (e *Engine) wireDebugLog() {
	e.Events.SubscribeTypes(func(evt Event) {
		switch p := evt.Payload.(type) {
		case SourceEvent:
			if evt.Type == EventSourceDown {
				e.logFn("source %s degraded: %s", p.Source, p.Error)
			} else {
				e.logFn("source %s recovered", p.Source)
			}
		case FaultOpenedEvent:
			e.logFn("fault opened: %s bit %d (%s)", p.Equipment, p.Bit, p.Name)
		case FaultClosedEvent:
			e.logFn("fault closed: %s bit %d (%s) after %.1fs", p.Equipment, p.Bit, p.Name, p.DurationS)
		case SampleDroppedEvent:
			e.debugFn("sample dropped: %s/%s: %s", p.Source, p.Address, p.Reason)
		case SampleEvent:
			e.debugFn("sample: %s/%s = %v", p.Equipment, p.Key, p.Value.Any())
		}
	}, EventSourceUp, EventSourceDown, EventFaultOpened, EventFaultClosed,
		EventSampleDropped, EventSampleNormalized)
}

// DB returns the database handle.
func (e *Engine) DB() *store.DB { return e.db }

// AppConfig returns the app config.
func (e *Engine) AppConfig() *config.Config { return e.cfg }

// ConfigPath returns the config file path.
func (e *Engine) ConfigPath() string { return e.configPath }

// Catalog returns the metric registry.
func (e *Engine) Catalog() *catalog.Catalog { return e.cat }

// QuarantinedFaultKeys returns the "equipment/bit" fault keys the edge
// detector has halted pending manual reconciliation.
func (e *Engine) QuarantinedFaultKeys() []string {
	if e.edge == nil {
		return nil
	}
	return e.edge.QuarantinedKeys()
}

// SourceHealth returns health for every polled source.
func (e *Engine) SourceHealth() []poller.Health {
	if e.pollMgr == nil {
		return nil
	}
	return e.pollMgr.Health()
}
