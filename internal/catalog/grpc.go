// Servidor y cliente RPC (gRPC) del catálogo
package catalog

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/ahinestrog/rocketshoes/internal/cart"
)

// The service speaks well-known types only: requests are Int64Value product
// ids and responses are Structs shaped like the HTTP JSON bodies.
const (
	serviceName      = "rocketshoes.catalog.Catalog"
	getStockMethod   = "/" + serviceName + "/GetStock"
	getProductMethod = "/" + serviceName + "/GetProduct"
)

type CatalogServer interface {
	GetStock(ctx context.Context, req *wrapperspb.Int64Value) (*structpb.Struct, error)
	GetProduct(ctx context.Context, req *wrapperspb.Int64Value) (*structpb.Struct, error)
}

var catalogServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*CatalogServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetStock", Handler: unaryHandler(getStockMethod, CatalogServer.GetStock)},
		{MethodName: "GetProduct", Handler: unaryHandler(getProductMethod, CatalogServer.GetProduct)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "rocketshoes/catalog",
}

type methodHandler = func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error)

func unaryHandler(method string, call func(CatalogServer, context.Context, *wrapperspb.Int64Value) (*structpb.Struct, error)) methodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(wrapperspb.Int64Value)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(CatalogServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(CatalogServer), ctx, req.(*wrapperspb.Int64Value))
		}
		return interceptor(ctx, in, info, handler)
	}
}

type GRPCServer struct {
	repo Repository
}

func RegisterGRPC(s *grpc.Server, repo Repository) {
	s.RegisterService(&catalogServiceDesc, &GRPCServer{repo: repo})
}

func (s *GRPCServer) GetStock(ctx context.Context, req *wrapperspb.Int64Value) (*structpb.Struct, error) {
	st, err := s.repo.GetStock(ctx, req.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(map[string]any{"id": st.ID, "amount": st.Amount})
}

func (s *GRPCServer) GetProduct(ctx context.Context, req *wrapperspb.Int64Value) (*structpb.Struct, error) {
	p, err := s.repo.GetProduct(ctx, req.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(map[string]any{
		"id":    p.ID,
		"title": p.Title,
		"price": p.Price,
		"image": p.Image,
	})
}

func toStatus(err error) error {
	if errors.Is(err, ErrNotFound) {
		return status.Error(codes.NotFound, err.Error())
	}
	log.Error().Err(err).Msg("catalog rpc failed")
	return status.Error(codes.Internal, "internal error")
}

// GRPCClient implements cart.CatalogService over the catalog gRPC service.
type GRPCClient struct {
	cc grpc.ClientConnInterface
}

func NewGRPCClient(cc grpc.ClientConnInterface) *GRPCClient {
	return &GRPCClient{cc: cc}
}

func DialGRPC(target string) (*grpc.ClientConn, error) {
	return grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
}

func (c *GRPCClient) GetStock(ctx context.Context, productID int64) (cart.Stock, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, getStockMethod, wrapperspb.Int64(productID), out); err != nil {
		return cart.Stock{}, fromStatus(err)
	}
	amount, err := integer(out, "amount")
	if err != nil {
		return cart.Stock{}, fmt.Errorf("stock %d: %w", productID, err)
	}
	s := Stock{ID: productID, Amount: int(amount)}
	if _, ok := out.GetFields()["id"]; ok {
		id, err := integer(out, "id")
		if err != nil {
			return cart.Stock{}, fmt.Errorf("stock %d: %w", productID, err)
		}
		s.ID = id
	}
	return s.toCart(), nil
}

func (c *GRPCClient) GetProduct(ctx context.Context, productID int64) (cart.Product, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, getProductMethod, wrapperspb.Int64(productID), out); err != nil {
		return cart.Product{}, fromStatus(err)
	}
	id, err := integer(out, "id")
	if err != nil {
		return cart.Product{}, fmt.Errorf("product %d: %w", productID, err)
	}
	price, err := number(out, "price")
	if err != nil {
		return cart.Product{}, fmt.Errorf("product %d: %w", productID, err)
	}
	fields := out.GetFields()
	p := Product{
		ID:    id,
		Title: fields["title"].GetStringValue(),
		Price: price,
		Image: fields["image"].GetStringValue(),
	}
	if p.Title == "" {
		return cart.Product{}, fmt.Errorf("product %d: %w: missing title", productID, ErrMalformed)
	}
	return p.toCart(), nil
}

func number(s *structpb.Struct, name string) (float64, error) {
	v, ok := s.GetFields()[name]
	if !ok {
		return 0, fmt.Errorf("%w: missing %s", ErrMalformed, name)
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("%w: %s is not a number", ErrMalformed, name)
	}
	return n.NumberValue, nil
}

// maxExact is the largest magnitude a Struct number holds without losing integer precision.
const maxExact = 1 << 53

// integer is number restricted to whole values.
func integer(s *structpb.Struct, name string) (int64, error) {
	n, err := number(s, name)
	if err != nil {
		return 0, err
	}
	if math.Trunc(n) != n || math.Abs(n) > maxExact {
		return 0, fmt.Errorf("%w: %s is not an integer: %v", ErrMalformed, name, n)
	}
	return int64(n), nil
}

func fromStatus(err error) error {
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%s: %w", status.Convert(err).Message(), ErrNotFound)
	}
	return err
}
