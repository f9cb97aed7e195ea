package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"Go2NetReplay/internal/session"
	"Go2NetReplay/internal/store"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// ReplayServiceName is the fully qualified gRPC service name.
const ReplayServiceName = "netreplay.v1.Replay"

// ReplayServer is the server API for the Replay service. Messages are free-form
// structs carrying the same JSON documents as the HTTP API.
type ReplayServer interface {
	View(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Aggregate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Interpolate(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterReplayServer registers srv on s.
func RegisterReplayServer(s grpc.ServiceRegistrar, srv ReplayServer) {
	s.RegisterService(&replayServiceDesc, srv)
}

var replayServiceDesc = grpc.ServiceDesc{
	ServiceName: ReplayServiceName,
	HandlerType: (*ReplayServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "View", Handler: unaryHandler("View", ReplayServer.View)},
		{MethodName: "Aggregate", Handler: unaryHandler("Aggregate", ReplayServer.Aggregate)},
		{MethodName: "Interpolate", Handler: unaryHandler("Interpolate", ReplayServer.Interpolate)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "netreplay/v1/replay.proto",
}

type replayMethod func(ReplayServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(name string, call replayMethod) grpc.MethodHandler {
	fullMethod := "/" + ReplayServiceName + "/" + name
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ReplayServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(ReplayServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ReplayClient calls the Replay service.
type ReplayClient struct {
	cc grpc.ClientConnInterface
}

// NewReplayClient creates a client over cc.
func NewReplayClient(cc grpc.ClientConnInterface) *ReplayClient {
	return &ReplayClient{cc: cc}
}

func (c *ReplayClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ReplayServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// View returns the events of a frame.
func (c *ReplayClient) View(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "View", in, opts...)
}

// Aggregate returns the overview of a frame, or one part of it when "kind" is set.
func (c *ReplayClient) Aggregate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "Aggregate", in, opts...)
}

// Interpolate returns the path samples of one event.
func (c *ReplayClient) Interpolate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "Interpolate", in, opts...)
}

// ReplayService implements ReplayServer over a session controller.
type ReplayService struct {
	controller *session.Controller
	logger     logrus.FieldLogger
}

// NewReplayService creates the gRPC service implementation.
func NewReplayService(controller *session.Controller, logger logrus.FieldLogger) *ReplayService {
	return &ReplayService{controller: controller, logger: logger}
}

// NewGRPCServer builds a server with the Replay and health services registered.
func NewGRPCServer(controller *session.Controller, logger logrus.FieldLogger, opts ...grpc.ServerOption) *grpc.Server {
	s := grpc.NewServer(opts...)
	RegisterReplayServer(s, NewReplayService(controller, logger))

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ReplayServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)
	return s
}

type replayRequest struct {
	session.Query
	Frame *int   `json:"frame"`
	ID    string `json:"id"`
	Kind  string `json:"kind"`
}

func (s *ReplayService) request(in *structpb.Struct) (replayRequest, int, error) {
	var req replayRequest
	data, err := protojson.Marshal(in)
	if err != nil {
		return req, 0, status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return req, 0, status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}
	frame := s.controller.Player().SampledFrame()
	if req.Frame != nil {
		frame = *req.Frame
	}
	return req, frame, nil
}

// View implements ReplayServer.
func (s *ReplayService) View(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, frame, err := s.request(in)
	if err != nil {
		return nil, err
	}
	s.logger.WithField("frame", frame).Debug("Received View request")
	return toStruct(map[string]interface{}{
		"frame":  frame,
		"events": s.controller.View(frame, req.Query),
	})
}

// Aggregate implements ReplayServer.
func (s *ReplayService) Aggregate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, frame, err := s.request(in)
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{"frame": frame, "kind": req.Kind}).Debug("Received Aggregate request")
	overview := s.controller.Overview(frame, req.Query)
	if req.Kind == "" {
		return toStruct(overview)
	}
	part, err := overviewPart(overview, req.Kind)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	return toStruct(map[string]interface{}{"frame": frame, req.Kind: part})
}

// Interpolate implements ReplayServer.
func (s *ReplayService) Interpolate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, frame, err := s.request(in)
	if err != nil {
		return nil, err
	}
	if req.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}
	samples, err := s.controller.Interpolate(req.ID, frame, req.Selected == req.ID)
	if err != nil {
		if errors.Is(err, store.ErrUnknownEvent) {
			return nil, status.Errorf(codes.NotFound, "event %q not found", req.ID)
		}
		return nil, status.Error(codes.Internal, err.Error())
	}
	return toStruct(map[string]interface{}{"id": req.ID, "frame": frame, "samples": samples})
}

// toStruct converts a JSON-encodable object to a protobuf Struct.
func toStruct(v interface{}) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to marshal response: %v", err)
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, status.Errorf(codes.Internal, "failed to convert response: %v", err)
	}
	return out, nil
}

// FromStruct decodes a response into v.
func FromStruct(s *structpb.Struct, v interface{}) error {
	data, err := protojson.Marshal(s)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
