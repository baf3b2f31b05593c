package core

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"labman/pkg/domain"
)

// Submitter hands a finished document to the instrument controller. It is
// satisfied by the labman HTTP client. No retry policy belongs here; a
// failed submission surfaces as-is.
type Submitter interface {
	SubmitWorkflow(ctx context.Context, doc domain.WorkflowDocument) (json.RawMessage, error)
}

// Service owns a set of named workflows and serializes every mutation
// behind one lock, satisfying the allocator's single-caller requirement.
// It also seals a workflow after its first export: merging into an
// already-submitted workflow is undefined on the instrument side.
type Service struct {
	mu        sync.Mutex
	workflows map[string]*workflowRecord

	logger    Logger
	metrics   MetricsRecorder
	tracer    Tracer
	submitter Submitter
}

type workflowRecord struct {
	workflow *Workflow
	sealed   bool
}

// Option configures a Service.
type Option func(*Service)

// WithLogger installs a logger. The default discards everything.
func WithLogger(logger Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics installs a metrics recorder.
func WithMetrics(rec MetricsRecorder) Option {
	return func(s *Service) {
		if rec != nil {
			s.metrics = rec
		}
	}
}

// WithTracer installs a tracer.
func WithTracer(tracer Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithSubmitter installs the submission boundary used by Submit.
func WithSubmitter(sub Submitter) Option {
	return func(s *Service) {
		s.submitter = sub
	}
}

// NewService constructs an empty workflow service.
func NewService(opts ...Option) *Service {
	s := &Service{
		workflows: make(map[string]*workflowRecord),
		logger:    noopLogger{},
		metrics:   noopMetrics{},
		tracer:    noopTracer{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NotFoundError is returned when an operation names an unknown workflow.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("workflow %q not found", e.Name)
}

// SealedError is returned when a recipe is added to a workflow that has
// already been exported or submitted.
type SealedError struct {
	Name string
}

func (e *SealedError) Error() string {
	return fmt.Sprintf("workflow %q already serialized, no further additions", e.Name)
}

// observe wraps one operation with logging, metrics and tracing.
func (s *Service) observe(ctx context.Context, operation string, fn func() error) error {
	ctx, span := s.tracer.Start(ctx, operation)
	start := time.Now()
	err := fn()
	span.End(err)
	s.metrics.Observe(ctx, operation, err == nil, time.Since(start))
	if err != nil {
		s.logger.Error(operation+" failed", "error", err)
		return err
	}
	s.logger.Debug(operation + " ok")
	return nil
}

// CreateWorkflow registers an empty workflow under name.
func (s *Service) CreateWorkflow(ctx context.Context, name string) error {
	return s.observe(ctx, "create_workflow", func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.workflows[name]; ok {
			return fmt.Errorf("workflow %q already exists", name)
		}
		wf, err := NewWorkflow(name)
		if err != nil {
			return err
		}
		s.workflows[name] = &workflowRecord{workflow: wf}
		s.logger.Info("workflow created", "name", name)
		return nil
	})
}

// AddInput admits a recipe into the named workflow. sample is the optional
// lab-sample identifier; see Workflow.AddInput for the admission rules.
func (s *Service) AddInput(ctx context.Context, name string, recipe domain.InputFile, sample *string) error {
	return s.observe(ctx, "add_input", func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		rec, ok := s.workflows[name]
		if !ok {
			return &NotFoundError{Name: name}
		}
		if rec.sealed {
			return &SealedError{Name: name}
		}
		if err := rec.workflow.AddInput(recipe, sample); err != nil {
			return err
		}
		s.logger.Info("recipe admitted",
			"workflow", name,
			"recipe", recipe.ID(),
			"crucibles", rec.workflow.RequiredCrucibles(),
			"jars", rec.workflow.RequiredJars(),
		)
		if wr, ok := s.metrics.(WorkloadRecorder); ok {
			wr.RecordWorkload(name,
				rec.workflow.RequiredCrucibles(),
				rec.workflow.RequiredJars(),
				rec.workflow.RequiredEthanolVolumeUL(),
			)
		}
		return nil
	})
}

// ExportDocument serializes the named workflow for one quadrant and seals
// it against further additions. The sample-tracking map is returned only
// when withTracking is set.
func (s *Service) ExportDocument(ctx context.Context, name string, quadrant int, availablePositions []int, withTracking bool) (domain.WorkflowDocument, map[int][]*string, error) {
	var doc domain.WorkflowDocument
	var tracking map[int][]*string
	err := s.observe(ctx, "export_document", func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		rec, ok := s.workflows[name]
		if !ok {
			return &NotFoundError{Name: name}
		}
		var err error
		doc, tracking, err = rec.workflow.Document(quadrant, availablePositions, withTracking)
		if err != nil {
			return err
		}
		rec.sealed = true
		return nil
	})
	if err != nil {
		return domain.WorkflowDocument{}, nil, err
	}
	return doc, tracking, nil
}

// Submit exports the named workflow and posts it to the instrument
// controller through the configured Submitter.
func (s *Service) Submit(ctx context.Context, name string, quadrant int, availablePositions []int) (json.RawMessage, error) {
	var ack json.RawMessage
	err := s.observe(ctx, "submit_workflow", func() error {
		if s.submitter == nil {
			return fmt.Errorf("no submitter configured")
		}
		s.mu.Lock()
		rec, ok := s.workflows[name]
		if !ok {
			s.mu.Unlock()
			return &NotFoundError{Name: name}
		}
		doc, _, err := rec.workflow.Document(quadrant, availablePositions, false)
		if err != nil {
			s.mu.Unlock()
			return err
		}
		rec.sealed = true
		s.mu.Unlock()

		// The lock is released before the network call; the record is
		// already sealed so no concurrent mutation can slip in.
		ack, err = s.submitter.SubmitWorkflow(ctx, doc)
		if err != nil {
			return err
		}
		s.logger.Info("workflow submitted", "name", name, "quadrant", quadrant)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ack, nil
}

// WorkflowStatus is a point-in-time summary of one service-owned workflow.
type WorkflowStatus struct {
	Name      string
	Tracking  TrackingMode
	Sealed    bool
	Jars      int
	Crucibles int
	EthanolUL int
	Powders   map[string]float64
}

// Status reports a snapshot of the named workflow. The live allocator never
// leaves the service lock.
func (s *Service) Status(name string) (WorkflowStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.workflows[name]
	if !ok {
		return WorkflowStatus{}, false
	}
	w := rec.workflow
	return WorkflowStatus{
		Name:      w.Name(),
		Tracking:  w.Tracking(),
		Sealed:    rec.sealed,
		Jars:      w.RequiredJars(),
		Crucibles: w.RequiredCrucibles(),
		EthanolUL: w.RequiredEthanolVolumeUL(),
		Powders:   w.RequiredPowders(),
	}, true
}
