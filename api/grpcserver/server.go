// Package grpcserver is the order-entry adapter in front of the router.
package grpcserver

import (
	"context"
	"log"

	"github.com/cockroachdb/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"clob/domain/orderbook"
	"clob/infra/wire"
	"clob/service"
)

type Server struct {
	router *service.Router
}

func NewServer(router *service.Router) *Server {
	return &Server{router: router}
}

// NewGRPCServer builds a grpc.Server speaking wire.Codec with the gateway
// registered.
func NewGRPCServer(router *service.Router, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{grpc.ForceServerCodec(wire.Codec{})}, opts...)
	gs := grpc.NewServer(opts...)
	gs.RegisterService(&ServiceDesc, NewServer(router))
	return gs
}

func (s *Server) Submit(ctx context.Context, req *wire.OrderEvent) (*wire.SubmitReply, error) {
	cmd, err := service.CommandFromEvent(req)
	if err != nil {
		return nil, toStatus(err)
	}

	out, err := s.router.Submit(ctx, req.Symbol, cmd)
	if err != nil {
		log.Printf("[gRPC] %s %s id=%d failed: %v", req.Symbol, cmd.Action, cmd.OrderID, err)
		return nil, toStatus(err)
	}

	return &wire.SubmitReply{
		Seq:    out.Seq,
		Result: out.Result.String(),
		Trades: uint32(len(out.Trades)),
	}, nil
}

func (s *Server) TopOfBook(ctx context.Context, req *wire.TopOfBookRequest) (*wire.Quote, error) {
	in, err := s.router.Lookup(req.Symbol)
	if err != nil {
		return nil, toStatus(err)
	}
	q, err := in.Service.TopOfBook(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return &q, nil
}

// --- errors ---

func toStatus(err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	case errors.Is(err, service.ErrUnknownInstrument):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, orderbook.ErrInvalidEvent):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, orderbook.ErrPoolExhausted):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, service.ErrHalted), errors.Is(err, service.ErrClosed):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
