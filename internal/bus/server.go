package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/simforge/simforge/internal/bridge"
	"github.com/simforge/simforge/internal/model"
	"github.com/simforge/simforge/pkg/schema"
)

type handlerFunc func(ctx context.Context, data []byte) *schema.Envelope

// Server binds every bridge operation to its subject and relays broadcast
// events to the event subjects. One Server serves one bridge.
type Server struct {
	client *Client
	bridge *bridge.Bridge
	subs   []*nats.Subscription
	unsubs []func()
}

func NewServer(client *Client, b *bridge.Bridge) *Server {
	return &Server{
		client: client,
		bridge: b,
	}
}

// Start subscribes all request handlers and event relays. ctx bounds the
// lifetime of jobs started through this server, not of the subscriptions;
// call Close to tear those down.
func (s *Server) Start(ctx context.Context) error {
	handlers := []struct {
		subject string
		fn      handlerFunc
	}{
		{schema.SubjectPresets, s.handlePresets},
		{schema.SubjectStart, s.handleStart},
		{schema.SubjectCancel, s.handleCancel},
		{schema.SubjectStatus, s.handleStatus},
		{schema.SubjectExportJSON, s.handleExportJSON},
		{schema.SubjectExportCSV, s.handleExportCSV},
	}
	for _, h := range handlers {
		if err := s.bind(ctx, h.subject, h.fn); err != nil {
			return err
		}
	}

	s.unsubs = append(s.unsubs, s.bridge.SubscribeStarted(func(evt schema.StartedEvent) {
		if err := s.client.PublishJSON(schema.SubjectEvtStarted, evt); err != nil {
			slog.ErrorContext(ctx, "publishing started event", "job_id", evt.JobID, "error", err)
		}
	}))
	s.unsubs = append(s.unsubs, s.bridge.SubscribeProgress(func(evt schema.ProgressEvent) {
		if err := s.client.PublishJSON(schema.SubjectEvtProgress, evt); err != nil {
			slog.ErrorContext(ctx, "publishing progress event", "job_id", evt.JobID, "error", err)
		}
	}))

	slog.InfoContext(ctx, "bus server ready", "subjects", len(handlers))
	return nil
}

// Close drops the event relays and request subscriptions. Safe to call
// once Start returned, even if Start failed midway.
func (s *Server) Close() {
	for _, unsub := range s.unsubs {
		unsub()
	}
	s.unsubs = nil
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	s.subs = nil
}

func (s *Server) bind(ctx context.Context, subject string, fn handlerFunc) error {
	sub, err := s.client.Conn().Subscribe(subject, func(msg *nats.Msg) {
		env := fn(ctx, msg.Data)
		raw, err := json.Marshal(env)
		if err != nil {
			slog.ErrorContext(ctx, "marshalling reply", "subject", subject, "error", err)
			return
		}
		if err := msg.Respond(raw); err != nil {
			slog.ErrorContext(ctx, "responding", "subject", subject, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("subscribing %s: %w", subject, err)
	}
	s.subs = append(s.subs, sub)
	return nil
}

func (s *Server) handlePresets(_ context.Context, _ []byte) *schema.Envelope {
	return ok(schema.PresetsReply{Presets: s.bridge.ListPresets()})
}

func (s *Server) handleStart(ctx context.Context, data []byte) *schema.Envelope {
	var req schema.StartRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return fail(schema.CodeInvalidPayload, "malformed start request: "+err.Error())
	}
	reply, err := s.bridge.StartJob(ctx, req.Params)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrAlreadyRunning):
			return fail(schema.CodeAlreadyRunning, err.Error())
		case errors.Is(err, model.ErrInvalidPayload):
			return fail(schema.CodeInvalidPayload, err.Error())
		default:
			return fail(schema.CodeInternal, err.Error())
		}
	}
	return ok(reply)
}

func (s *Server) handleCancel(_ context.Context, _ []byte) *schema.Envelope {
	return ok(schema.CancelReply{Cancelled: s.bridge.CancelJob()})
}

func (s *Server) handleStatus(_ context.Context, _ []byte) *schema.Envelope {
	return ok(s.bridge.GetStatus())
}

func (s *Server) handleExportJSON(ctx context.Context, data []byte) *schema.Envelope {
	var req schema.ExportJSONRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return fail(schema.CodeInvalidPayload, "malformed export request: "+err.Error())
	}
	reply, err := s.bridge.ExportJSON(ctx, req.Name, req.Data)
	if err != nil {
		if errors.Is(err, model.ErrInvalidPayload) {
			return fail(schema.CodeInvalidPayload, err.Error())
		}
		return fail(schema.CodeExportFailure, err.Error())
	}
	return ok(reply)
}

func (s *Server) handleExportCSV(ctx context.Context, data []byte) *schema.Envelope {
	var req schema.ExportCSVRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return fail(schema.CodeInvalidPayload, "malformed export request: "+err.Error())
	}
	reply, err := s.bridge.ExportCSV(ctx, req.Name, req.Header, req.Rows)
	if err != nil {
		if errors.Is(err, model.ErrInvalidPayload) {
			return fail(schema.CodeInvalidPayload, err.Error())
		}
		return fail(schema.CodeExportFailure, err.Error())
	}
	return ok(reply)
}

func ok(v any) *schema.Envelope {
	raw, err := json.Marshal(v)
	if err != nil {
		return fail(schema.CodeInternal, "marshalling reply data: "+err.Error())
	}
	return &schema.Envelope{OK: true, Data: raw}
}

func fail(code, message string) *schema.Envelope {
	return &schema.Envelope{
		OK:    false,
		Error: &schema.ErrorInfo{Code: code, Message: message},
	}
}
