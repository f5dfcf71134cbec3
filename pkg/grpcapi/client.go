package grpcapi

import (
	"context"

	"google.golang.org/grpc"
)

// Client is a typed client for the CodeAssistant service.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) Generate(ctx context.Context, in *GenerateRequest, opts ...grpc.CallOption) (*Reply, error) {
	out := new(Reply)
	if err := c.invoke(ctx, methodGenerate, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Debug(ctx context.Context, in *CodeRequest, opts ...grpc.CallOption) (*Reply, error) {
	out := new(Reply)
	if err := c.invoke(ctx, methodDebug, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Explain(ctx context.Context, in *CodeRequest, opts ...grpc.CallOption) (*Reply, error) {
	out := new(Reply)
	if err := c.invoke(ctx, methodExplain, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Optimize(ctx context.Context, in *CodeRequest, opts ...grpc.CallOption) (*Reply, error) {
	out := new(Reply)
	if err := c.invoke(ctx, methodOptimize, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Health(ctx context.Context, opts ...grpc.CallOption) (*HealthReply, error) {
	out := new(HealthReply)
	if err := c.invoke(ctx, methodHealth, &HealthRequest{}, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	return c.cc.Invoke(ctx, method, in, out, opts...)
}
