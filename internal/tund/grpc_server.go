package tund

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/GoSim-25-26J-441/tuning-core/pkg/config"
	"github.com/GoSim-25-26J-441/tuning-core/pkg/logger"
	"github.com/GoSim-25-26J-441/tuning-core/pkg/models"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "dsice.v1.TuningService"

// TuningServiceServer is the server API of the tuning service. Messages are
// google.protobuf.Struct documents carrying the same JSON shapes as the
// HTTP API.
type TuningServiceServer interface {
	CreateSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListSessions(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Suggest(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Tell(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetResult(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetHistory(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CloseSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	WatchSession(*structpb.Struct, grpc.ServerStream) error
}

func unaryHandler(method string, call func(TuningServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(TuningServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(TuningServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// TuningServiceDesc describes the service for grpc.Server.RegisterService
var TuningServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TuningServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("CreateSession", TuningServiceServer.CreateSession),
		unaryHandler("GetSession", TuningServiceServer.GetSession),
		unaryHandler("ListSessions", TuningServiceServer.ListSessions),
		unaryHandler("Suggest", TuningServiceServer.Suggest),
		unaryHandler("Tell", TuningServiceServer.Tell),
		unaryHandler("GetResult", TuningServiceServer.GetResult),
		unaryHandler("GetHistory", TuningServiceServer.GetHistory),
		unaryHandler("CloseSession", TuningServiceServer.CloseSession),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchSession",
			ServerStreams: true,
			Handler: func(srv any, stream grpc.ServerStream) error {
				in := new(structpb.Struct)
				if err := stream.RecvMsg(in); err != nil {
					return err
				}
				return srv.(TuningServiceServer).WatchSession(in, stream)
			},
		},
	},
}

// RegisterTuningServiceServer registers srv on s
func RegisterTuningServiceServer(s grpc.ServiceRegistrar, srv TuningServiceServer) {
	s.RegisterService(&TuningServiceDesc, srv)
}

// TuningGRPCServer implements TuningServiceServer on a SessionStore
type TuningGRPCServer struct {
	store        *SessionStore
	pollInterval time.Duration
}

// NewTuningGRPCServer creates the gRPC service backed by store
func NewTuningGRPCServer(store *SessionStore) *TuningGRPCServer {
	return &TuningGRPCServer{
		store:        store,
		pollInterval: 500 * time.Millisecond,
	}
}

// decode converts a Struct into a request type through its JSON form
func decode(in *structpb.Struct, out any) error {
	b, err := json.Marshal(in.AsMap())
	if err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	if err := json.Unmarshal(b, out); err != nil {
		return status.Error(codes.InvalidArgument, "invalid request: "+err.Error())
	}
	return nil
}

// encode converts a response value into a Struct through its JSON form
func encode(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func (s *TuningGRPCServer) fail(operation string, err error) error {
	code := errorCode(err)
	if code == codes.Internal {
		logger.Error("request failed", "operation", operation, "error", err)
	}
	s.count(operation, code)
	return status.Error(code, err.Error())
}

func (s *TuningGRPCServer) count(operation string, code codes.Code) {
	if in := s.store.Instruments(); in != nil {
		in.Request("grpc", operation, resultLabel(code))
	}
}

func (s *TuningGRPCServer) reply(operation string, v any) (*structpb.Struct, error) {
	out, err := encode(v)
	if err != nil {
		s.count(operation, codes.Internal)
		return nil, err
	}
	s.count(operation, codes.OK)
	return out, nil
}

type sessionIDRequest struct {
	SessionID string `json:"session_id"`
}

func (s *TuningGRPCServer) sessionID(operation string, req *structpb.Struct) (string, error) {
	var r sessionIDRequest
	if req != nil {
		if err := decode(req, &r); err != nil {
			s.count(operation, codes.InvalidArgument)
			return "", err
		}
	}
	if r.SessionID == "" {
		s.count(operation, codes.InvalidArgument)
		return "", status.Error(codes.InvalidArgument, "session_id is required")
	}
	return r.SessionID, nil
}

// CreateSession accepts "config" as a nested document or as YAML text
func (s *TuningGRPCServer) CreateSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil || req.Fields["config"] == nil {
		s.count("create", codes.InvalidArgument)
		return nil, status.Error(codes.InvalidArgument, "config is required")
	}
	var r struct {
		SessionID string   `json:"session_id"`
		Callback  Callback `json:"callback"`
	}
	if err := decode(req, &r); err != nil {
		s.count("create", codes.InvalidArgument)
		return nil, err
	}

	var raw []byte
	switch v := req.Fields["config"].GetKind().(type) {
	case *structpb.Value_StringValue:
		raw = []byte(v.StringValue)
	case *structpb.Value_StructValue:
		b, err := json.Marshal(v.StructValue.AsMap())
		if err != nil {
			return nil, s.fail("create", fmt.Errorf("%w: %w", ErrInvalidArgument, err))
		}
		raw = b
	default:
		s.count("create", codes.InvalidArgument)
		return nil, status.Error(codes.InvalidArgument, "config must be a document or YAML text")
	}

	cfg, err := config.ParseSessionYAML(raw)
	if err != nil {
		return nil, s.fail("create", fmt.Errorf("%w: %w", ErrInvalidArgument, err))
	}
	if _, ok := req.Fields["config"].GetKind().(*structpb.Value_StructValue); ok {
		raw = nil
	}
	sess, err := s.store.Create(ctx, r.SessionID, cfg, raw, r.Callback)
	if err != nil {
		return nil, s.fail("create", err)
	}

	info := sess.Info()
	logger.Info("session created (gRPC)", "session_id", info.ID)
	return s.reply("create", map[string]any{"session": info})
}

func (s *TuningGRPCServer) GetSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := s.sessionID("get", req)
	if err != nil {
		return nil, err
	}
	info, err := s.store.Lookup(ctx, id)
	if err != nil {
		return nil, s.fail("get", err)
	}
	return s.reply("get", map[string]any{"session": info})
}

func (s *TuningGRPCServer) ListSessions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var r struct {
		Status string `json:"status"`
		Stored bool   `json:"stored"`
	}
	if req != nil {
		if err := decode(req, &r); err != nil {
			s.count("list", codes.InvalidArgument)
			return nil, err
		}
	}
	if r.Stored {
		stored, err := s.store.ListStored(ctx)
		if err != nil {
			return nil, s.fail("list", err)
		}
		if stored == nil {
			s.count("list", codes.FailedPrecondition)
			return nil, status.Error(codes.FailedPrecondition, "persistence is disabled")
		}
		return s.reply("list", map[string]any{"sessions": stored})
	}
	return s.reply("list", map[string]any{"sessions": s.store.List(models.SessionStatus(r.Status))})
}

func (s *TuningGRPCServer) Suggest(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := s.sessionID("suggest", req)
	if err != nil {
		return nil, err
	}
	resp, err := s.store.Suggest(id)
	if err != nil {
		return nil, s.fail("suggest", err)
	}
	return s.reply("suggest", resp)
}

func (s *TuningGRPCServer) Tell(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := s.sessionID("tell", req)
	if err != nil {
		return nil, err
	}
	var r tellRequest
	if err := decode(req, &r); err != nil {
		s.count("tell", codes.InvalidArgument)
		return nil, err
	}

	var res models.Result
	switch {
	case len(r.Measurements) > 0 && len(r.Values) > 0:
		s.count("tell", codes.InvalidArgument)
		return nil, status.Error(codes.InvalidArgument, "measurements and values are exclusive")
	case len(r.Values) > 0:
		res, err = s.store.TellValues(ctx, id, r.Values)
	default:
		res, err = s.store.Tell(ctx, id, r.Measurements)
	}
	if err != nil {
		return nil, s.fail("tell", err)
	}
	return s.reply("tell", map[string]any{"result": res})
}

func (s *TuningGRPCServer) GetResult(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := s.sessionID("result", req)
	if err != nil {
		return nil, err
	}
	res, err := s.store.Result(id)
	if err != nil {
		return nil, s.fail("result", err)
	}
	return s.reply("result", map[string]any{"result": res})
}

func (s *TuningGRPCServer) GetHistory(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := s.sessionID("history", req)
	if err != nil {
		return nil, err
	}
	rounds, err := s.store.History(ctx, id)
	if err != nil {
		return nil, s.fail("history", err)
	}
	if rounds == nil {
		rounds = []models.Round{}
	}
	return s.reply("history", map[string]any{"session_id": id, "rounds": rounds})
}

func (s *TuningGRPCServer) CloseSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := s.sessionID("close", req)
	if err != nil {
		return nil, err
	}
	info, err := s.store.Close(ctx, id)
	if err != nil {
		return nil, s.fail("close", err)
	}
	logger.Info("session closed (gRPC)", "session_id", id)
	return s.reply("close", map[string]any{"session": info})
}

// WatchSession streams the session description whenever its status or
// measured count changes and ends once the session finishes or is removed.
func (s *TuningGRPCServer) WatchSession(req *structpb.Struct, stream grpc.ServerStream) error {
	id, err := s.sessionID("watch", req)
	if err != nil {
		return err
	}
	sess, err := s.store.Get(id)
	if err != nil {
		return s.fail("watch", err)
	}
	s.count("watch", codes.OK)

	interval := s.pollInterval
	var r struct {
		IntervalMs int64 `json:"interval_ms"`
	}
	if err := decode(req, &r); err == nil && r.IntervalMs > 0 {
		interval = time.Duration(r.IntervalMs) * time.Millisecond
	}

	send := func(info models.Session) error {
		msg, err := encode(map[string]any{"at_unix_ms": time.Now().UTC().UnixMilli(), "session": info})
		if err != nil {
			return err
		}
		return stream.SendMsg(msg)
	}

	last := sess.Info()
	if err := send(last); err != nil {
		return err
	}
	if last.Status != models.SessionStatusRunning {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stream.Context().Done():
			return stream.Context().Err()
		case <-ticker.C:
			cur, err := s.store.Get(id)
			if errors.Is(err, ErrSessionNotFound) {
				// closed or expired while watched
				return nil
			}
			if err != nil {
				return status.Error(codes.Internal, err.Error())
			}
			info := cur.Info()
			if info.Status == last.Status && measuredCount(info) == measuredCount(last) {
				continue
			}
			if err := send(info); err != nil {
				return err
			}
			last = info
			if info.Status != models.SessionStatusRunning {
				return nil
			}
		}
	}
}

func measuredCount(info models.Session) int {
	if info.Result == nil {
		return 0
	}
	return info.Result.Measured
}
