package rpcapi_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/plutolang/pluto/compiler"
	"github.com/plutolang/pluto/rpcapi"
)

func TestCompileSucceedsForValidSource(t *testing.T) {
	svc := rpcapi.New(compiler.New())
	req, err := structpb.NewStruct(map[string]any{
		"source": "fn add(a: int, b: int) int {\n\treturn a + b\n}\n",
	})
	require.NoError(t, err)

	resp, err := svc.Compile(context.Background(), req)
	require.NoError(t, err)
	require.True(t, resp.Fields["ok"].GetBoolValue())
	require.NotEmpty(t, resp.Fields["container_b64"].GetStringValue())
}

func TestCompileReportsErrorForInvalidSource(t *testing.T) {
	svc := rpcapi.New(compiler.New())
	req, err := structpb.NewStruct(map[string]any{
		"source": "fn (( not valid",
	})
	require.NoError(t, err)

	resp, err := svc.Compile(context.Background(), req)
	require.NoError(t, err)
	require.False(t, resp.Fields["ok"].GetBoolValue())
	require.NotEmpty(t, resp.Fields["error"].GetStringValue())
}

func TestCompileRequiresSourceField(t *testing.T) {
	svc := rpcapi.New(compiler.New())
	req, _ := structpb.NewStruct(map[string]any{})
	_, err := svc.Compile(context.Background(), req)
	require.Error(t, err)
}

func TestRunReportsFuncCount(t *testing.T) {
	svc := rpcapi.New(compiler.New())
	req, err := structpb.NewStruct(map[string]any{
		"source": "fn main() {\n\tlet x = 1\n}\n",
	})
	require.NoError(t, err)

	resp, err := svc.Run(context.Background(), req)
	require.NoError(t, err)
	require.True(t, resp.Fields["ok"].GetBoolValue())
	require.GreaterOrEqual(t, resp.Fields["func_count"].GetNumberValue(), float64(1))
}

func TestServiceDescAdvertisesThreeMethods(t *testing.T) {
	require.Len(t, rpcapi.ServiceDesc.Methods, 3)
	require.Equal(t, rpcapi.ServiceName, rpcapi.ServiceDesc.ServiceName)
}
