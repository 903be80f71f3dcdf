package services

import (
	"context"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"qrshop/internal/domain"
	"qrshop/internal/repos"
)

// StockService records manual inventory movements. Each movement and its
// stock effect share one transaction.
type StockService struct {
	DB        *sqlx.DB
	Stock     *repos.StockRepo
	Movements *repos.MovementRepo
	Log       *zap.Logger
}

func NewStockService(db *sqlx.DB, stock *repos.StockRepo, movements *repos.MovementRepo, log *zap.Logger) *StockService {
	return &StockService{DB: db, Stock: stock, Movements: movements, Log: log}
}

type MovementInput struct {
	ProductID int64
	Kind      domain.MovementKind
	Quantity  int
	Note      string
}

func (in MovementInput) check() error {
	if in.ProductID <= 0 {
		return domain.Invalid("product_id", "is required")
	}
	if !in.Kind.Valid() {
		return domain.Invalid("kind", "must be ingreso or salida")
	}
	if in.Quantity <= 0 {
		return domain.Invalid("quantity", "must be greater than zero")
	}
	return nil
}

func (s *StockService) List(ctx context.Context, limit int) ([]domain.Movement, error) {
	return s.Movements.List(ctx, limit)
}

func (s *StockService) Create(ctx context.Context, in MovementInput) (domain.Movement, error) {
	if err := in.check(); err != nil {
		return domain.Movement{}, err
	}
	var out domain.Movement
	err := repos.WithTx(ctx, s.DB, func(tx *sqlx.Tx) error {
		if err := s.Stock.Apply(ctx, tx, in.ProductID, in.Kind.Delta(in.Quantity)); err != nil {
			return err
		}
		id, err := s.Movements.Insert(ctx, tx, domain.Movement{ProductID: in.ProductID, Kind: in.Kind, Quantity: in.Quantity, Note: in.Note})
		if err != nil {
			return err
		}
		out, err = s.Movements.Get(ctx, tx, id)
		return err
	})
	if err != nil {
		return domain.Movement{}, err
	}
	s.Log.Info("stock movement created", zap.Int64("movement_id", out.ID), zap.Int64("product_id", out.ProductID),
		zap.String("kind", string(out.Kind)), zap.Int("quantity", out.Quantity))
	return out, nil
}

// Update replaces a movement. The old effect is reversed and the new one
// applied; on the same product only the net difference touches stock.
func (s *StockService) Update(ctx context.Context, id int64, in MovementInput) (domain.Movement, error) {
	if err := in.check(); err != nil {
		return domain.Movement{}, err
	}
	var out domain.Movement
	err := repos.WithTx(ctx, s.DB, func(tx *sqlx.Tx) error {
		old, err := s.Movements.Get(ctx, tx, id)
		if err != nil {
			return err
		}
		oldDelta, newDelta := old.Kind.Delta(old.Quantity), in.Kind.Delta(in.Quantity)
		if old.ProductID == in.ProductID {
			if err := s.Stock.Apply(ctx, tx, in.ProductID, newDelta-oldDelta); err != nil {
				return err
			}
		} else {
			if err := s.Stock.Apply(ctx, tx, old.ProductID, -oldDelta); err != nil {
				return err
			}
			if err := s.Stock.Apply(ctx, tx, in.ProductID, newDelta); err != nil {
				return err
			}
		}
		if err := s.Movements.Update(ctx, tx, domain.Movement{ID: id, ProductID: in.ProductID, Kind: in.Kind, Quantity: in.Quantity, Note: in.Note}); err != nil {
			return err
		}
		out, err = s.Movements.Get(ctx, tx, id)
		return err
	})
	if err != nil {
		return domain.Movement{}, err
	}
	s.Log.Info("stock movement updated", zap.Int64("movement_id", id))
	return out, nil
}

// Delete reverses a movement's effect and removes it.
func (s *StockService) Delete(ctx context.Context, id int64) error {
	err := repos.WithTx(ctx, s.DB, func(tx *sqlx.Tx) error {
		old, err := s.Movements.Get(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := s.Stock.Apply(ctx, tx, old.ProductID, -old.Kind.Delta(old.Quantity)); err != nil {
			return err
		}
		return s.Movements.Delete(ctx, tx, id)
	})
	if err == nil {
		s.Log.Info("stock movement deleted", zap.Int64("movement_id", id))
	}
	return err
}
