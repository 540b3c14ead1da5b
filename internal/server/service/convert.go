package service

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"time"

	"github.com/rs/zerolog"

	"github.com/zzkydev/Convertify-PDF/internal/apperr"
	"github.com/zzkydev/Convertify-PDF/internal/engine"
	"github.com/zzkydev/Convertify-PDF/internal/metrics"
	"github.com/zzkydev/Convertify-PDF/internal/operation"
	"github.com/zzkydev/Convertify-PDF/internal/upload"
	"github.com/zzkydev/Convertify-PDF/internal/workspace"
)

// Result is a finished conversion ready to be streamed.
type Result struct {
	Path      string
	Filename  string
	MediaType string
	Size      int64
	Body      io.Reader
}

// Emitter transmits a Result to the caller. It must not return before the
// whole body has been written: the workspace is released right after.
type Emitter func(Result) error

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger for conversion events.
func WithLogger(logger zerolog.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(d *Dispatcher) { d.recorder = r }
}

// Dispatcher runs one conversion per request inside its own workspace.
type Dispatcher struct {
	workspaces *workspace.Manager
	adapters   map[operation.Kind]engine.Adapter
	recorder   metrics.Recorder
	logger     zerolog.Logger
}

// NewDispatcher creates a Dispatcher. adapters maps each offered
// operation to its engine.
func NewDispatcher(workspaces *workspace.Manager, adapters map[operation.Kind]engine.Adapter, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		workspaces: workspaces,
		adapters:   adapters,
		recorder:   metrics.Noop{},
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch validates form against op, persists the uploads into a fresh
// workspace, runs the operation's adapter and hands the output to emit.
// The workspace is released on every return path. Caller cancellation
// does not abort a running engine.
func (d *Dispatcher) Dispatch(ctx context.Context, op operation.Descriptor, form *multipart.Form, emit Emitter) (err error) {
	defer func() { d.recorder.IncConversion(string(op.Kind), outcome(err)) }()

	uploads, err := upload.Validate(form, op.UploadRule())
	if err != nil {
		return err
	}
	params, err := op.ResolveParams(form.Value)
	if err != nil {
		return err
	}
	adapter, ok := d.adapters[op.Kind]
	if !ok {
		return apperr.Engine(fmt.Sprintf("no engine configured for %s", op.Kind), nil)
	}

	ws, err := d.workspaces.Create()
	if err != nil {
		return err
	}
	defer ws.Release()

	logger := d.logger.With().
		Str("operation", string(op.Kind)).
		Str("workspace", ws.Token()).
		Logger()

	inputs := make([]string, len(uploads))
	for i := range uploads {
		if err := persist(ws, &uploads[i], i+1); err != nil {
			return err
		}
		inputs[i] = uploads[i].StoredPath
	}

	filename := op.OutputName(ws.Token(), uploads[0])
	output := ws.Path(filename)
	if err := ws.Register(output); err != nil {
		return err
	}
	scratch, err := ws.Mkdir("scratch")
	if err != nil {
		return err
	}

	job := engine.Job{
		Inputs:  inputs,
		Output:  output,
		Workdir: scratch,
		Params: engine.Params{
			Language: params[operation.ParamLang],
			DPI:      params.Int(operation.ParamDPI),
		},
	}

	start := time.Now()
	if err := adapter.Convert(context.WithoutCancel(ctx), job); err != nil {
		if apperr.KindOf(err) == apperr.KindInternal {
			err = apperr.Engine(err.Error(), err)
		}
		logger.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("conversion failed")
		return err
	}
	logger.Info().Int("inputs", len(inputs)).Dur("elapsed", time.Since(start)).Msg("conversion finished")

	f, err := ws.Open(output)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return apperr.Storage("stat output", err)
	}

	if err := emit(Result{
		Path:      output,
		Filename:  filename,
		MediaType: op.MediaType,
		Size:      info.Size(),
		Body:      f,
	}); err != nil {
		return fmt.Errorf("stream %s: %w", filename, err)
	}
	return nil
}

func persist(ws *workspace.Workspace, d *upload.Descriptor, index int) error {
	src, err := d.Header.Open()
	if err != nil {
		return apperr.Storage("open upload "+d.Safe, err)
	}
	defer src.Close()

	path, err := ws.Save(d.StoredName(index), src)
	if err != nil {
		return err
	}
	d.StoredPath = path
	return nil
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	return string(apperr.KindOf(err))
}
