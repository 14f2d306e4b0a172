// Package rpcapi exposes the compiler Pipeline as an embeddable gRPC
// service surface (spec.md §6, "CLI surface (driver external collaborator)":
// the out-of-scope CLI driver is a client of this, not part of the core).
//
// The service handler shapes here follow exactly what protoc-gen-go-grpc
// would generate (method handler closures decoding a request message,
// invoking the server implementation, wrapping it for interceptors) but are
// hand-written against google.golang.org/protobuf/types/known/structpb.Struct
// as the wire message, rather than a hand-authored .proto-derived message
// type with its own ProtoReflect() descriptor machinery — see DESIGN.md for
// why.
package rpcapi

import (
	"bytes"
	"context"
	"encoding/base64"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/plutolang/pluto/compiler"
	"github.com/plutolang/pluto/container"
)

// ServiceName is the fully-qualified gRPC service name advertised by
// ServiceDesc.
const ServiceName = "pluto.rpcapi.Compiler"

// CompilerServer is the interface RegisterCompilerServer expects; Service
// below is the only implementation, but tests may substitute another.
type CompilerServer interface {
	Compile(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Run(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Test(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// Service implements CompilerServer over an in-process compiler.Pipeline.
type Service struct {
	pipeline *compiler.Pipeline
}

// New returns a Service driving p.
func New(p *compiler.Pipeline) *Service {
	return &Service{pipeline: p}
}

var _ CompilerServer = (*Service)(nil)

// Compile compiles the source carried in req's "source" field, returning
// the base64-encoded PLTO v3 container in the response's "container_b64"
// field, or a diagnostic message in "error" on failure.
func (s *Service) Compile(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	src, err := stringField(req, "source")
	if err != nil {
		return nil, err
	}

	result, compileErr := s.pipeline.Compile(ctx, []byte(src))
	if compileErr != nil {
		return responseWithError(compileErr)
	}

	var buf bytes.Buffer
	if err := container.Write(&buf, result.Container); err != nil {
		return nil, status.Errorf(codes.Internal, "encode container: %v", err)
	}
	return structpb.NewStruct(map[string]any{
		"ok":             true,
		"container_b64":  base64.StdEncoding.EncodeToString(buf.Bytes()),
		"declaration_count": float64(len(result.Container.Derived.Decls)),
	})
}

// Run lowers req's "source" field to IR and reports basic shape
// information back to the caller. Actually executing lowered IR against a
// linked native runtime is outside rpcapi's scope; that is the job of the
// compiled program itself once linked, not this embeddable service.
func (s *Service) Run(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	src, err := stringField(req, "source")
	if err != nil {
		return nil, err
	}

	_, mod, lowerErr := s.pipeline.Lower(ctx, []byte(src))
	if lowerErr != nil {
		return responseWithError(lowerErr)
	}
	return structpb.NewStruct(map[string]any{
		"ok":          true,
		"func_count":  float64(len(mod.Funcs)),
	})
}

// Test compiles req's "source" field and reports whether it compiles
// cleanly; it is the phase-1 stand-in for a future Temporal-backed test
// runner that would actually execute `test` declarations against the
// runtime/concurrency/engine/inmem scheduler.
func (s *Service) Test(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.Compile(ctx, req)
}

func stringField(req *structpb.Struct, name string) (string, error) {
	if req == nil {
		return "", status.Errorf(codes.InvalidArgument, "%s is required", name)
	}
	f, ok := req.Fields[name]
	if !ok || f.GetStringValue() == "" {
		return "", status.Errorf(codes.InvalidArgument, "%s is required", name)
	}
	return f.GetStringValue(), nil
}

func responseWithError(err error) (*structpb.Struct, error) {
	msg := err.Error()
	if b := compiler.DiagnosticsOf(err); b != nil {
		msg = b.Error()
	}
	return structpb.NewStruct(map[string]any{
		"ok":    false,
		"error": msg,
	})
}

// ServiceDesc is the hand-authored grpc.ServiceDesc for CompilerServer,
// matching the shape protoc-gen-go-grpc emits for a unary-only service.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CompilerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Compile", Handler: _Compiler_Compile_Handler},
		{MethodName: "Run", Handler: _Compiler_Run_Handler},
		{MethodName: "Test", Handler: _Compiler_Test_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pluto/rpcapi/service.proto",
}

func _Compiler_Compile_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CompilerServer).Compile(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Compile"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CompilerServer).Compile(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _Compiler_Run_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CompilerServer).Run(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Run"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CompilerServer).Run(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _Compiler_Test_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CompilerServer).Test(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Test"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CompilerServer).Test(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// RegisterCompilerServer registers srv on s, the same call shape
// protoc-gen-go-grpc emits.
func RegisterCompilerServer(s grpc.ServiceRegistrar, srv CompilerServer) {
	s.RegisterService(&ServiceDesc, srv)
}
