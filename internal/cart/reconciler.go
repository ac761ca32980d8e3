package cart

import (
	"context"
	"errors"
	"fmt"
)

// CatalogService is the remote source of truth for products and stock.
type CatalogService interface {
	GetStock(ctx context.Context, productID int64) (Stock, error)
	GetProduct(ctx context.Context, productID int64) (Product, error)
}

type FailureKind int

const (
	UnknownFailure FailureKind = iota
	FetchFailure
	InsufficientStock
	NotFound
)

func (k FailureKind) String() string {
	switch k {
	case FetchFailure:
		return "fetch_failure"
	case InsufficientStock:
		return "insufficient_stock"
	case NotFound:
		return "not_found"
	default:
		return "unknown_failure"
	}
}

type Op string

const (
	OpAdd    Op = "add"
	OpRemove Op = "remove"
	OpUpdate Op = "update"
)

// Failure is returned by every Reconciler operation that does not commit.
type Failure struct {
	Kind      FailureKind
	Op        Op
	ProductID int64
	Err       error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("%s product %d: %s", f.Op, f.ProductID, f.Kind)
	}
	return fmt.Sprintf("%s product %d: %s: %v", f.Op, f.ProductID, f.Kind, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// KindOf classifies err. Errors that are not a *Failure are UnknownFailure.
func KindOf(err error) FailureKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return UnknownFailure
}

// Reconciler validates mutations against live stock and computes the next
// snapshot. It holds no cart state of its own.
type Reconciler struct {
	catalog CatalogService
}

func NewReconciler(catalog CatalogService) *Reconciler {
	return &Reconciler{catalog: catalog}
}

func (r *Reconciler) AddOne(ctx context.Context, c Cart, productID int64) (next Cart, err error) {
	defer recoverUnknown(OpAdd, productID, &next, &err)

	stock, err := r.fetchStock(ctx, productID)
	if err != nil {
		return nil, fail(OpAdd, productID, err)
	}

	if current, ok := Find(c, productID); ok {
		if !CanSatisfy(current.Amount+1, stock) {
			return nil, &Failure{Kind: InsufficientStock, Op: OpAdd, ProductID: productID}
		}
		return UpsertIncrement(c, productID, current), nil
	}

	product, err := r.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, fail(OpAdd, productID, fetchErr(err))
	}
	if product.ID != 0 && product.ID != productID {
		return nil, fail(OpAdd, productID, fetchErr(fmt.Errorf("catalog returned product %d", product.ID)))
	}
	if !CanSatisfy(1, stock) {
		return nil, &Failure{Kind: InsufficientStock, Op: OpAdd, ProductID: productID}
	}
	return UpsertIncrement(c, productID, product), nil
}

func (r *Reconciler) RemoveOne(c Cart, productID int64) (Cart, error) {
	next, err := Remove(c, productID)
	if err != nil {
		return nil, fail(OpRemove, productID, err)
	}
	return next, nil
}

// SetAmount overwrites the amount of a product already in the cart. Non-positive
// amounts are ignored and the cart is returned as is.
func (r *Reconciler) SetAmount(ctx context.Context, c Cart, productID int64, amount int) (next Cart, err error) {
	if amount <= 0 {
		return c, nil
	}
	defer recoverUnknown(OpUpdate, productID, &next, &err)

	stock, err := r.fetchStock(ctx, productID)
	if err != nil {
		return nil, fail(OpUpdate, productID, err)
	}
	if _, ok := Find(c, productID); !ok {
		return nil, fail(OpUpdate, productID, ErrNotFound)
	}
	if !CanSatisfy(amount, stock) {
		return nil, &Failure{Kind: InsufficientStock, Op: OpUpdate, ProductID: productID}
	}
	next, err = SetAmount(c, productID, amount)
	if err != nil {
		return nil, fail(OpUpdate, productID, err)
	}
	return next, nil
}

func (r *Reconciler) fetchStock(ctx context.Context, productID int64) (Stock, error) {
	stock, err := r.catalog.GetStock(ctx, productID)
	if err != nil {
		return Stock{}, fetchErr(err)
	}
	if stock.ID != 0 && stock.ID != productID {
		return Stock{}, fetchErr(fmt.Errorf("catalog returned stock for %d", stock.ID))
	}
	return stock, nil
}

// errFetch marks errors coming out of the catalog.
type errFetch struct{ err error }

func (e errFetch) Error() string { return e.err.Error() }
func (e errFetch) Unwrap() error { return e.err }

func fetchErr(err error) error { return errFetch{err: err} }

func fail(op Op, productID int64, err error) *Failure {
	f := &Failure{Kind: UnknownFailure, Op: op, ProductID: productID, Err: err}
	var fe errFetch
	switch {
	case errors.As(err, &fe):
		f.Kind = FetchFailure
		f.Err = fe.err
	case errors.Is(err, ErrNotFound):
		f.Kind = NotFound
	}
	return f
}

func recoverUnknown(op Op, productID int64, next *Cart, err *error) {
	if p := recover(); p != nil {
		*next = nil
		*err = &Failure{Kind: UnknownFailure, Op: op, ProductID: productID, Err: fmt.Errorf("panic: %v", p)}
	}
}
