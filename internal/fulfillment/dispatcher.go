package fulfillment

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/plangrove/voicelink/internal/domain/voice"
	"github.com/plangrove/voicelink/internal/oauth"
	"github.com/plangrove/voicelink/internal/repository"
)

// AccountLinker is the slice of the exchange service the dispatcher needs:
// bearer authentication and link removal.
type AccountLinker interface {
	ValidateAccessTokenFromHeader(ctx context.Context, header string) (*oauth.Identity, error)
	DeleteLink(ctx context.Context, userID string) error
}

// Dispatcher authenticates fulfillment requests and routes them to the four
// intent handlers. Once a request is authenticated, handlers never fail for
// expected conditions; every branch produces a protocol-valid payload.
type Dispatcher struct {
	links  AccountLinker
	plants repository.PlantRepository
	groves repository.GroveRepository
	ids    *snowflake.Node
	logger *zap.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// NewDispatcher wires dependencies.
func NewDispatcher(links AccountLinker, plants repository.PlantRepository, groves repository.GroveRepository, ids *snowflake.Node, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		links:  links,
		plants: plants,
		groves: groves,
		ids:    ids,
		logger: logger,
		tracer: otel.Tracer("github.com/plangrove/voicelink/internal/fulfillment"),
		now:    time.Now,
	}
}

// Dispatch authenticates the bearer header, then executes the request's
// intent. Authentication failures surface as voice.ErrDenied; malformed
// envelopes as voice.ErrUnsupported. Everything past that point returns a
// well-formed response.
func (d *Dispatcher) Dispatch(ctx context.Context, authHeader string, req *voice.FulfillmentRequest) (*voice.FulfillmentResponse, error) {
	ctx, span := d.startSpan(ctx, "fulfillment.Dispatch")
	defer span.End()

	identity, err := d.links.ValidateAccessTokenFromHeader(ctx, authHeader)
	if err != nil {
		return nil, voice.ErrDenied
	}

	if req == nil || len(req.Inputs) == 0 {
		return nil, voice.ErrUnsupported
	}
	input := req.Inputs[0]

	var payload any
	switch input.Intent {
	case voice.IntentSync:
		payload = d.handleSync(ctx, identity)
	case voice.IntentQuery:
		var query voice.QueryRequest
		if err := json.Unmarshal(input.Payload, &query); err != nil {
			return nil, voice.ErrUnsupported
		}
		payload = d.handleQuery(ctx, identity, query)
	case voice.IntentExecute:
		var execute voice.ExecuteRequest
		if err := json.Unmarshal(input.Payload, &execute); err != nil {
			return nil, voice.ErrUnsupported
		}
		payload = d.handleExecute(ctx, identity, execute)
	case voice.IntentDisconnect:
		payload = d.handleDisconnect(ctx, identity)
	default:
		d.log().Warn("unknown intent", zap.String("intent", input.Intent))
		return nil, voice.ErrUnsupported
	}

	return &voice.FulfillmentResponse{
		RequestID: req.RequestID,
		Payload:   payload,
	}, nil
}

func (d *Dispatcher) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if d == nil || d.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return d.tracer.Start(ctx, name)
}

func (d *Dispatcher) log() *zap.Logger {
	if d != nil && d.logger != nil {
		return d.logger
	}
	return zap.L()
}
