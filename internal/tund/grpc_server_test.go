package tund

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/GoSim-25-26J-441/tuning-core/internal/metrics"
)

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}
	return s
}

func TestGRPCCreateSessionRequiresConfig(t *testing.T) {
	srv := NewTuningGRPCServer(newTestStore())
	_, err := srv.CreateSession(context.Background(), mustStruct(t, map[string]any{"session_id": "x"}))
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
	_, err = srv.CreateSession(context.Background(), mustStruct(t, map[string]any{"config": 3.0}))
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("numeric config: expected InvalidArgument, got %v", err)
	}
	_, err = srv.CreateSession(context.Background(), mustStruct(t, map[string]any{"config": "algorithm: bogus\n"}))
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("invalid config: expected InvalidArgument, got %v", err)
	}
}

func TestGRPCSessionLifecycle(t *testing.T) {
	in := metrics.NewInstruments()
	srv := NewTuningGRPCServer(newTestStore(WithInstruments(in)))
	ctx := context.Background()

	created, err := srv.CreateSession(ctx, mustStruct(t, map[string]any{
		"session_id": "g1",
		"config": map[string]any{
			"algorithm":  "s_2018",
			"record_log": true,
			"parameters": []any{
				map[string]any{"name": "x", "values": []any{0.0, 1.0, 2.0, 3.0, 4.0}},
				map[string]any{"name": "y", "values": []any{0.0, 1.0, 2.0, 3.0, 4.0}},
			},
		},
	}))
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	sess := created.Fields["session"].GetStructValue()
	if sess.Fields["id"].GetStringValue() != "g1" || sess.Fields["status"].GetStringValue() != "running" {
		t.Fatalf("unexpected session %v", sess)
	}

	if _, err := srv.CreateSession(ctx, mustStruct(t, map[string]any{"session_id": "g1", "config": bowlConfig})); status.Code(err) != codes.AlreadyExists {
		t.Fatalf("duplicate: expected AlreadyExists, got %v", err)
	}

	id := mustStruct(t, map[string]any{"session_id": "g1"})
	finished := false
	for i := 0; i < 500 && !finished; i++ {
		sug, err := srv.Suggest(ctx, id)
		if err != nil {
			t.Fatalf("Suggest: %v", err)
		}
		var measurements []any
		for _, v := range sug.Fields["suggestions"].GetListValue().GetValues() {
			s := v.GetStructValue()
			vals := s.Fields["values"].GetListValue().GetValues()
			p := []float64{vals[0].GetNumberValue(), vals[1].GetNumberValue()}
			measurements = append(measurements, map[string]any{
				"coordinate": s.Fields["coordinate"].GetListValue().AsSlice(),
				"value":      bowlValue(p),
			})
		}
		out, err := srv.Tell(ctx, mustStruct(t, map[string]any{"session_id": "g1", "measurements": measurements}))
		if err != nil {
			t.Fatalf("Tell: %v", err)
		}
		finished = out.Fields["result"].GetStructValue().Fields["finished"].GetBoolValue()
	}
	if !finished {
		t.Fatalf("search did not finish")
	}

	res, err := srv.GetResult(ctx, id)
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	if v := res.Fields["result"].GetStructValue().Fields["value"].GetNumberValue(); v > 1 {
		t.Fatalf("expected a best value of at most 1, got %v", v)
	}

	hist, err := srv.GetHistory(ctx, id)
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	if len(hist.Fields["rounds"].GetListValue().GetValues()) == 0 {
		t.Fatalf("expected recorded rounds")
	}

	list, err := srv.ListSessions(ctx, mustStruct(t, map[string]any{"status": "finished"}))
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if n := len(list.Fields["sessions"].GetListValue().GetValues()); n != 1 {
		t.Fatalf("expected 1 finished session, got %d", n)
	}

	if _, err := srv.CloseSession(ctx, id); err != nil {
		t.Fatalf("CloseSession: %v", err)
	}
	if _, err := srv.GetSession(ctx, id); status.Code(err) != codes.NotFound {
		t.Fatalf("after close: expected NotFound, got %v", err)
	}
	if _, err := srv.Suggest(ctx, mustStruct(t, map[string]any{})); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("missing id: expected InvalidArgument, got %v", err)
	}

	if v := counterValue(t, in.Registry(), "dsice_api_requests_total",
		map[string]string{"transport": "grpc", "operation": "create", "result": "already_exists"}); v != 1 {
		t.Errorf("expected one already_exists create, got %v", v)
	}
}

func TestGRPCTellErrors(t *testing.T) {
	srv := NewTuningGRPCServer(newTestStore())
	ctx := context.Background()
	if _, err := srv.CreateSession(ctx, mustStruct(t, map[string]any{"session_id": "e", "config": bowlConfig})); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	tests := []struct {
		name string
		req  map[string]any
		want codes.Code
	}{
		{"unknown session", map[string]any{"session_id": "nope", "values": []any{1.0}}, codes.NotFound},
		{"empty", map[string]any{"session_id": "e"}, codes.InvalidArgument},
		{"mixed", map[string]any{"session_id": "e", "values": []any{1.0},
			"measurements": []any{map[string]any{"coordinate": []any{0.0, 0.0}, "value": 1.0}}}, codes.InvalidArgument},
		{"out of range", map[string]any{"session_id": "e",
			"measurements": []any{map[string]any{"coordinate": []any{9.0, 0.0}, "value": 1.0}}}, codes.InvalidArgument},
		{"bad shape", map[string]any{"session_id": "e", "values": "fast"}, codes.InvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := srv.Tell(ctx, mustStruct(t, tt.req))
			if status.Code(err) != tt.want {
				t.Fatalf("expected %s, got %v", tt.want, err)
			}
		})
	}
}

func TestGRPCOverBufconn(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	server := grpc.NewServer()
	RegisterTuningServiceServer(server, NewTuningGRPCServer(newTestStore()))
	go func() {
		_ = server.Serve(lis)
	}()
	defer server.Stop()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out := new(structpb.Struct)
	req := mustStruct(t, map[string]any{"session_id": "wire", "config": bowlConfig})
	if err := conn.Invoke(ctx, "/"+ServiceName+"/CreateSession", req, out); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if got := out.Fields["session"].GetStructValue().Fields["algorithm"].GetStringValue(); got != "S_2018" {
		t.Fatalf("unexpected algorithm %q", got)
	}

	out = new(structpb.Struct)
	if err := conn.Invoke(ctx, "/"+ServiceName+"/Suggest", mustStruct(t, map[string]any{"session_id": "wire"}), out); err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if n := len(out.Fields["suggestions"].GetListValue().GetValues()); n == 0 {
		t.Fatalf("expected suggestions")
	}

	err = conn.Invoke(ctx, "/"+ServiceName+"/GetResult", mustStruct(t, map[string]any{"session_id": "nope"}), new(structpb.Struct))
	if status.Code(err) != codes.NotFound {
		t.Fatalf("expected NotFound over the wire, got %v", err)
	}

	// watch until the session is closed
	stream, err := conn.NewStream(ctx, &TuningServiceDesc.Streams[0], "/"+ServiceName+"/WatchSession")
	if err != nil {
		t.Fatalf("NewStream: %v", err)
	}
	if err := stream.SendMsg(mustStruct(t, map[string]any{"session_id": "wire", "interval_ms": 10.0})); err != nil {
		t.Fatalf("SendMsg: %v", err)
	}
	if err := stream.CloseSend(); err != nil {
		t.Fatalf("CloseSend: %v", err)
	}
	first := new(structpb.Struct)
	if err := stream.RecvMsg(first); err != nil {
		t.Fatalf("RecvMsg: %v", err)
	}
	if got := first.Fields["session"].GetStructValue().Fields["status"].GetStringValue(); got != "running" {
		t.Fatalf("expected a running snapshot first, got %q", got)
	}

	if err := conn.Invoke(ctx, "/"+ServiceName+"/CloseSession", mustStruct(t, map[string]any{"session_id": "wire"}), new(structpb.Struct)); err != nil {
		t.Fatalf("CloseSession: %v", err)
	}
	// the stream ends once the session is gone
	for {
		msg := new(structpb.Struct)
		if err := stream.RecvMsg(msg); err != nil {
			if !errors.Is(err, io.EOF) {
				t.Fatalf("stream ended with %v", err)
			}
			break
		}
	}
}
