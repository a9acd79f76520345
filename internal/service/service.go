// Package service is the entry point to code execution: it lists runtimes,
// runs single programs and runs programs against test suites, memoizing each
// and recording finished test runs.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/michaelbrown/gauntlet/internal/cache"
	"github.com/michaelbrown/gauntlet/internal/catalog"
	"github.com/michaelbrown/gauntlet/internal/dispatch"
	"github.com/michaelbrown/gauntlet/internal/engine"
	"github.com/michaelbrown/gauntlet/internal/events"
	"github.com/michaelbrown/gauntlet/internal/harness"
	"github.com/michaelbrown/gauntlet/internal/metrics"
	"github.com/michaelbrown/gauntlet/internal/storage"
)

// ErrHistoryDisabled is returned by history queries when no store is configured.
var ErrHistoryDisabled = errors.New("run history is disabled")

// unknownLanguage labels verdicts whose runtime is no longer in the cached listing.
const unknownLanguage = "unknown"

// Options configures a Service. History and Events are optional.
type Options struct {
	RuntimesURL string
	ExecuteURL  string
	// Timeout bounds each engine round trip; zero means none.
	Timeout time.Duration
	Profile dispatch.Profile
	TTL     time.Duration
	Stores  Stores
	History storage.Store
	Events  events.Publisher
	Logger  zerolog.Logger
}

// Service composes the catalog, dispatcher and harness behind memoization caches.
type Service struct {
	catalog    *catalog.Catalog
	dispatcher *dispatch.Dispatcher
	execute    *cache.Memo[dispatch.Request, dispatch.Execution]
	harness    *harness.Harness
	tests      *cache.Memo[harness.Request, harness.Result]
	stores     Stores
	history    storage.Store
	events     events.Publisher
	log        zerolog.Logger
	now        func() time.Time
}

// New builds a Service talking to the engine at the configured URLs.
func New(opts Options) (*Service, error) {
	if opts.RuntimesURL == "" || opts.ExecuteURL == "" {
		return nil, errors.New("engine runtimes and execute URLs are required")
	}
	if err := opts.Profile.Validate(); err != nil {
		return nil, err
	}
	if opts.Stores.Runtimes == nil || opts.Stores.Executions == nil || opts.Stores.Results == nil {
		opts.Stores = MemoryStores(nil)
	}

	client := engine.NewClient(opts.RuntimesURL, opts.ExecuteURL,
		engine.WithTimeout(opts.Timeout),
		engine.WithDecodeOptions(engine.DecodeOptions{
			OptionalTimeLimitFlag: opts.Profile.TimeLimitMode == dispatch.TimeLimitSignal,
		}),
	)

	s := &Service{
		stores:  opts.Stores,
		history: opts.History,
		events:  opts.Events,
		log:     opts.Logger.With().Str("component", "service").Logger(),
		now:     time.Now,
	}
	s.catalog = catalog.New(client, opts.Stores.Runtimes, opts.TTL, opts.Logger)
	s.dispatcher = dispatch.New(client, s.catalog, opts.Profile)
	s.execute = cache.NewMemo("execute", opts.TTL, opts.Stores.Executions, opts.Logger, s.dispatcher.Execute)
	s.harness = harness.New(harness.ExecutorFunc(s.execute.Get))
	s.tests = cache.NewMemo("tests", opts.TTL, opts.Stores.Results, opts.Logger, s.runTests)
	return s, nil
}

// Profile returns the compatibility profile in use.
func (s *Service) Profile() dispatch.Profile {
	return s.dispatcher.Profile()
}

// ListRuntimes returns the runtimes installed on the engine.
func (s *Service) ListRuntimes(ctx context.Context) ([]catalog.Runtime, error) {
	return s.catalog.Runtimes(ctx)
}

// ExecuteCode runs a single program.
func (s *Service) ExecuteCode(ctx context.Context, req dispatch.Request) (dispatch.Execution, error) {
	return s.execute.Get(ctx, req)
}

// RunTests runs a program against every test in order. Equal requests
// within the cache TTL are answered from the first run.
func (s *Service) RunTests(ctx context.Context, req harness.Request) (harness.Result, error) {
	return s.tests.Get(ctx, req)
}

// RunTestsStream is RunTests reporting each test outcome as it completes.
// The suite is always run, but individual executions are still served from
// the execute cache.
func (s *Service) RunTestsStream(ctx context.Context, req harness.Request, onExecution func(i int, e harness.ExecutionWithTest)) (harness.Result, error) {
	return s.runAndRecord(ctx, req, onExecution)
}

func (s *Service) runTests(ctx context.Context, req harness.Request) (harness.Result, error) {
	return s.runAndRecord(ctx, req, nil)
}

func (s *Service) runAndRecord(ctx context.Context, req harness.Request, onExecution func(int, harness.ExecutionWithTest)) (harness.Result, error) {
	start := s.now()
	res, err := s.harness.Run(ctx, req, onExecution)

	log := s.log.With().Str("language", req.Language).Int("tests", len(req.Tests)).Logger()
	if err != nil {
		log.Warn().Err(err).Dur("elapsed", s.now().Sub(start)).Msg("test run failed")
		s.record(ctx, req, nil, err)
		return harness.Result{}, err
	}

	language := unknownLanguage
	if rt, ok := s.catalog.Cached(ctx, req.Language, req.Version); ok {
		language = rt.Language
	}
	for _, e := range res.Executions {
		verdict := "failed"
		if e.Passed() {
			verdict = "passed"
		}
		metrics.TestVerdicts.WithLabelValues(language, verdict).Inc()
	}
	log.Info().Int("passed", res.TestsPassed).Dur("elapsed", s.now().Sub(start)).Msg("test run completed")
	s.record(ctx, req, &res, nil)
	return res, nil
}

// record stores the run and publishes its outcome. Failures are logged only.
func (s *Service) record(ctx context.Context, req harness.Request, res *harness.Result, runErr error) {
	if s.history == nil && s.events == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)

	run := &storage.Run{
		ID:         uuid.New().String(),
		Language:   req.Language,
		Version:    s.version(ctx, req),
		Status:     storage.StatusCompleted,
		TestsTotal: len(req.Tests),
		Request:    req,
		Result:     res,
		CreatedAt:  s.now().UTC(),
	}
	evtType := events.TypeRunCompleted
	if runErr != nil {
		run.Status = storage.StatusFailed
		run.Error = runErr.Error()
		evtType = events.TypeRunFailed
	} else {
		run.TestsPassed = res.TestsPassed
	}

	if s.history != nil {
		if err := s.history.CreateRun(ctx, run); err != nil {
			s.log.Warn().Err(err).Str("run_id", run.ID).Msg("saving run")
		}
	}

	if s.events != nil {
		evt := events.Event{
			EventID:   events.NewEventID("run_", run.CreatedAt),
			Source:    "gauntlet",
			Type:      evtType,
			Timestamp: run.CreatedAt,
			Payload: events.Payload{
				RunID:       run.ID,
				Language:    run.Language,
				Version:     run.Version,
				TestsTotal:  run.TestsTotal,
				TestsPassed: run.TestsPassed,
				Error:       run.Error,
			},
		}
		if err := s.events.Publish(ctx, evt); err != nil {
			s.log.Warn().Err(err).Str("run_id", run.ID).Msg("publishing run event")
		}
	}
}

// version is the runtime version a request resolved to, or the requested one.
// Only the cached listing is consulted so recording never reaches the engine.
func (s *Service) version(ctx context.Context, req harness.Request) string {
	if rt, ok := s.catalog.Cached(ctx, req.Language, req.Version); ok {
		return rt.Version
	}
	if req.Version != nil {
		return *req.Version
	}
	return ""
}

// Runs lists recorded test runs, newest first.
func (s *Service) Runs(ctx context.Context, opts storage.RunListOptions) ([]storage.Run, error) {
	if s.history == nil {
		return nil, ErrHistoryDisabled
	}
	return s.history.ListRuns(ctx, opts)
}

// Run returns one recorded run by ID or unique ID prefix.
func (s *Service) Run(ctx context.Context, id string) (*storage.Run, error) {
	if s.history == nil {
		return nil, ErrHistoryDisabled
	}
	return s.history.GetRun(ctx, id)
}

// DeleteRun removes a recorded run.
func (s *Service) DeleteRun(ctx context.Context, id string) error {
	if s.history == nil {
		return ErrHistoryDisabled
	}
	if err := s.history.DeleteRun(ctx, id); err != nil {
		return fmt.Errorf("deleting run: %w", err)
	}
	return nil
}

// Sweep drops expired in-process cache entries.
func (s *Service) Sweep() int {
	n := s.stores.Sweep()
	if n > 0 {
		s.log.Debug().Int("removed", n).Msg("swept cache")
	}
	return n
}
