package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrMalformed = errors.New("malformed catalog record")
)

type Repository interface {
	Init(ctx context.Context) error
	Seed(ctx context.Context) error
	List(ctx context.Context) ([]Product, error)
	GetProduct(ctx context.Context, id int64) (Product, error)
	GetStock(ctx context.Context, id int64) (Stock, error)
	SetStock(ctx context.Context, id int64, amount int) error
}

const schema = `
CREATE TABLE IF NOT EXISTS products(
  id    INTEGER PRIMARY KEY,
  title TEXT    NOT NULL,
  price REAL    NOT NULL,
  image TEXT    NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS stock(
  product_id INTEGER PRIMARY KEY,
  amount     INTEGER NOT NULL DEFAULT 0,
  updated_at INTEGER NOT NULL DEFAULT (strftime('%s','now'))
);
`

type sqlRepo struct{ db *sql.DB }

// NewSQLRepo works on any sqlite driver registered with database/sql.
func NewSQLRepo(db *sql.DB) Repository { return &sqlRepo{db: db} }

func (r *sqlRepo) Init(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, schema)
	return err
}

const imageBase = "https://rocketseat-cdn.s3-sa-east-1.amazonaws.com/modulo-redux/"

// seed inicial, el catálogo de RocketShoes
var seedProducts = []struct {
	p      Product
	amount int
}{
	{Product{1, "Tênis de Caminhada Leve Confortável", 179.9, imageBase + "tenis1.jpg"}, 3},
	{Product{2, "Tênis VR Caminhada Confortável Detalhes Couro Masculino", 139.9, imageBase + "tenis2.jpg"}, 5},
	{Product{3, "Tênis Adidas Duramo Lite 2.0", 219.9, imageBase + "tenis3.jpg"}, 2},
	{Product{4, "Tênis VR Caminhada Confortável Detalhes Couro Masculino", 139.9, imageBase + "tenis2.jpg"}, 1},
	{Product{5, "Tênis VR Caminhada Confortável Detalhes Couro Masculino", 139.9, imageBase + "tenis2.jpg"}, 5},
	{Product{6, "Tênis Adidas Duramo Lite 2.0", 219.9, imageBase + "tenis3.jpg"}, 10},
}

func (r *sqlRepo) Seed(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, s := range seedProducts {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO products(id,title,price,image) VALUES(?,?,?,?)
ON CONFLICT(id) DO NOTHING`, s.p.ID, s.p.Title, s.p.Price, s.p.Image); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO stock(product_id,amount) VALUES(?,?)
ON CONFLICT(product_id) DO NOTHING`, s.p.ID, s.amount); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *sqlRepo) List(ctx context.Context) ([]Product, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id,title,price,image FROM products ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Title, &p.Price, &p.Image); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *sqlRepo) GetProduct(ctx context.Context, id int64) (Product, error) {
	var p Product
	err := r.db.QueryRowContext(ctx, `SELECT id,title,price,image FROM products WHERE id=?`, id).
		Scan(&p.ID, &p.Title, &p.Price, &p.Image)
	if errors.Is(err, sql.ErrNoRows) {
		return Product{}, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	return p, err
}

func (r *sqlRepo) GetStock(ctx context.Context, id int64) (Stock, error) {
	s := Stock{ID: id}
	err := r.db.QueryRowContext(ctx, `SELECT amount FROM stock WHERE product_id=?`, id).Scan(&s.Amount)
	if errors.Is(err, sql.ErrNoRows) {
		return Stock{}, fmt.Errorf("stock %d: %w", id, ErrNotFound)
	}
	return s, err
}

func (r *sqlRepo) SetStock(ctx context.Context, id int64, amount int) error {
	if amount < 0 {
		amount = 0
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO stock(product_id,amount,updated_at) VALUES(?,?,strftime('%s','now'))
ON CONFLICT(product_id) DO UPDATE SET amount=excluded.amount, updated_at=excluded.updated_at`, id, amount)
	return err
}
