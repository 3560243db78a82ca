package grpcserver

import (
	"context"

	"google.golang.org/grpc"

	"clob/infra/wire"
)

const (
	serviceName     = "clob.v1.OrderGateway"
	submitMethod    = "/" + serviceName + "/Submit"
	topOfBookMethod = "/" + serviceName + "/TopOfBook"
)

// GatewayServer is the server API of clob.v1.OrderGateway.
type GatewayServer interface {
	Submit(context.Context, *wire.OrderEvent) (*wire.SubmitReply, error)
	TopOfBook(context.Context, *wire.TopOfBookRequest) (*wire.Quote, error)
}

// ServiceDesc describes clob.v1.OrderGateway. Messages are encoded by
// wire.Codec, so servers must be built with grpc.ForceServerCodec.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*GatewayServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Submit", Handler: submitHandler},
		{MethodName: "TopOfBook", Handler: topOfBookHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "clob/v1/gateway",
}

func submitHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wire.OrderEvent)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(GatewayServer).Submit(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: submitMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(GatewayServer).Submit(ctx, req.(*wire.OrderEvent))
	}
	return interceptor(ctx, in, info, handler)
}

func topOfBookHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wire.TopOfBookRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(GatewayServer).TopOfBook(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: topOfBookMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(GatewayServer).TopOfBook(ctx, req.(*wire.TopOfBookRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// Client calls clob.v1.OrderGateway.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) Submit(ctx context.Context, in *wire.OrderEvent, opts ...grpc.CallOption) (*wire.SubmitReply, error) {
	out := new(wire.SubmitReply)
	opts = append([]grpc.CallOption{grpc.ForceCodec(wire.Codec{})}, opts...)
	if err := c.cc.Invoke(ctx, submitMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) TopOfBook(ctx context.Context, in *wire.TopOfBookRequest, opts ...grpc.CallOption) (*wire.Quote, error) {
	out := new(wire.Quote)
	opts = append([]grpc.CallOption{grpc.ForceCodec(wire.Codec{})}, opts...)
	if err := c.cc.Invoke(ctx, topOfBookMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
