package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/relaymesh/gateway/pkg/auth"
	"github.com/relaymesh/gateway/pkg/engine"
	"github.com/relaymesh/gateway/pkg/project"
	"github.com/relaymesh/gateway/pkg/schema"
)

const logPrefix = "api:pipeline"

// Pipeline authenticates, validates and dispatches inbound commands.
// All collaborators are passed in explicitly so tests can run against
// fakes.
type Pipeline struct {
	projects  project.Registry
	verifier  auth.Verifier
	schemas   *schema.Set
	processor engine.Processor
}

// PipelineParams holds dependencies for NewPipeline.
type PipelineParams struct {
	Projects  project.Registry
	Verifier  auth.Verifier
	Schemas   *schema.Set
	Processor engine.Processor
}

// NewPipeline creates a Pipeline. Schemas defaults to the built-in
// command set and Verifier to HMAC-SHA256 when not given.
func NewPipeline(params PipelineParams) (*Pipeline, error) {
	if params.Projects == nil {
		return nil, fmt.Errorf("%s - project registry is required", logPrefix)
	}
	if params.Processor == nil {
		return nil, fmt.Errorf("%s - command processor is required", logPrefix)
	}
	if params.Verifier == nil {
		params.Verifier = auth.HMACVerifier{}
	}
	if params.Schemas == nil {
		params.Schemas = schema.Default()
	}
	return &Pipeline{
		projects:  params.Projects,
		verifier:  params.Verifier,
		schemas:   params.Schemas,
		processor: params.Processor,
	}, nil
}

// Execute runs the full command pipeline for a signed one-shot request.
// Stages are hard gates executed strictly in order; a failed stage
// skips all later stages. It returns either a Response (possibly
// carrying an application-tier error) or a transport-tier Fault, never
// both. info is nil when auth extraction already failed at the
// transport edge.
func (p *Pipeline) Execute(ctx context.Context, projectID string, info *auth.Info, body []byte) (*Response, *Fault) {
	// Stage 1: body presence.
	if len(body) == 0 {
		return nil, malformed("empty request")
	}

	// Stage 2: auth extraction.
	if info == nil {
		return nil, unauthorized("unauthorized")
	}

	// Stage 3: signature presence.
	if info.Sign == "" {
		return nil, unauthorized("unauthorized")
	}

	// Stage 4: project resolution.
	proj, err := p.projects.GetProjectByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, project.ErrNotFound) {
			return nil, notFound("project not found")
		}
		slog.Error(fmt.Sprintf("%s - project lookup for %q failed: %v", logPrefix, projectID, err))
		return nil, internal(err.Error())
	}

	// Stage 5: signature verification over the raw, still-encoded body.
	ok, err := p.verifier.Verify(ctx, proj, info.Sign, body)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - signature verification for project %q failed: %v", logPrefix, projectID, err))
		return nil, internal(err.Error())
	}
	if !ok {
		return nil, unauthorized("unauthorized")
	}

	// Stages 6-10.
	return p.ProcessPayload(ctx, proj, body)
}

// ProcessPayload runs stages 6-10: decode, envelope validation, method
// resolution, params validation and dispatch. It is shared between
// one-shot requests and per-connection agents; the caller is expected
// to have authenticated the payload already. The only possible fault is
// an undecodable payload; every later failure answers through the
// Response.
func (p *Pipeline) ProcessPayload(ctx context.Context, proj *project.Project, body []byte) (*Response, *Fault) {
	// Stage 6: decode.
	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, malformed("malformed data")
	}

	resp := &Response{}

	// Stage 7: envelope schema validation. UID and Method are not
	// copied on this path: validation failed before they could be
	// trusted as well-formed.
	if err := p.schemas.ValidateEnvelope(decoded); err != nil {
		resp.Error = err.Error()
		return resp, nil
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		// Shape was validated above; a second decode cannot fail.
		return nil, malformed("malformed data")
	}
	resp.UID = env.UID
	resp.Method = env.Method

	// Stage 8: method resolution.
	if !p.schemas.Has(env.Method) {
		resp.Error = "method not found"
		return resp, nil
	}

	// Stage 9: params schema validation.
	var params any
	if err := json.Unmarshal(env.Params, &params); err != nil {
		return nil, malformed("malformed data")
	}
	if err := p.schemas.ValidateParams(env.Method, params); err != nil {
		resp.Error = err.Error()
		return resp, nil
	}

	// Stage 10: dispatch.
	result, err := p.processor.Process(ctx, proj, env.Method, env.Params)
	if err != nil {
		resp.Error = err.Error()
		return resp, nil
	}
	resp.Body = result
	return resp, nil
}
