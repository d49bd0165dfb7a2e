package server

import (
	"context"
	"fmt"

	"connectrpc.com/connect"

	"github.com/chazu/jitcalc/engine"
	"github.com/chazu/jitcalc/store"
)

// EvalProcedure is the Connect procedure path of the Evaluate RPC.
const EvalProcedure = "/jitcalc.v1.EvalService/Evaluate"

// EvaluateRequest asks the service to evaluate one expression.
type EvaluateRequest struct {
	// Expression is the infix arithmetic expression to evaluate.
	Expression string `json:"expression"`
	// Engine selects the execution strategy (tree, vm, jit); empty
	// uses the server's default.
	Engine string `json:"engine,omitempty"`
	// Disassemble requests the bytecode listing in the response.
	Disassemble bool `json:"disassemble,omitempty"`
}

// EvaluateResponse carries the result of one evaluation.
type EvaluateResponse struct {
	Value   float64 `json:"value"`
	Engine  string  `json:"engine"`
	Listing string  `json:"listing,omitempty"`
}

// EvalService implements the Evaluate handler.
type EvalService struct {
	defaultKind engine.Kind
	cache       *store.Cache
	history     *store.History
}

// NewEvalService creates an EvalService. cache and history may be nil.
func NewEvalService(defaultKind engine.Kind, cache *store.Cache, history *store.History) *EvalService {
	return &EvalService{
		defaultKind: defaultKind,
		cache:       cache,
		history:     history,
	}
}

// Evaluate parses, compiles and executes an expression.
func (s *EvalService) Evaluate(
	ctx context.Context,
	req *connect.Request[EvaluateRequest],
) (*connect.Response[EvaluateResponse], error) {
	expr := req.Msg.Expression
	if expr == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("expression is required"))
	}

	kind := s.defaultKind
	if req.Msg.Engine != "" {
		k, err := engine.ParseKind(req.Msg.Engine)
		if err != nil {
			return nil, connect.NewError(connect.CodeInvalidArgument, err)
		}
		kind = k
	}

	e, err := engine.New(kind, s.cache)
	if err != nil {
		return nil, connect.NewError(connect.CodeUnimplemented, err)
	}

	value, err := e.Eval(expr)
	if s.history != nil {
		if herr := s.history.RecordEval(expr, string(kind), value, err); herr != nil {
			log.Warningf("recording evaluation: %v", herr)
		}
	}
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	resp := &EvaluateResponse{Value: value, Engine: string(kind)}
	if req.Msg.Disassemble {
		if p, err := e.Compile(expr); err == nil {
			resp.Listing = p.Disassemble()
		}
	}

	return connect.NewResponse(resp), nil
}
