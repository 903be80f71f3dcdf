package services

import (
	"context"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"qrshop/internal/domain"
	"qrshop/internal/events"
	"qrshop/internal/gateway"
	"qrshop/internal/repos"
)

// StatusQuerier is the polling half of the provider adapter.
type StatusQuerier interface {
	QueryStatus(ctx context.Context, transactionID string) (gateway.Status, error)
}

// PaymentService reconciles sale status from relayed callbacks and from
// client polling. Both paths coordinate only through conditional updates on
// the sale row.
type PaymentService struct {
	DB       *sqlx.DB
	Sales    *repos.SaleRepo
	Stock    *repos.StockRepo
	Gateway  StatusQuerier
	Events   events.Publisher
	Recorder Recorder
	Log      *zap.Logger

	// VerifyFinalize makes Finalize confirm with the provider first.
	VerifyFinalize bool
}

func (s *PaymentService) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

func (s *PaymentService) rec() Recorder {
	if s.Recorder == nil {
		return nopRecorder{}
	}
	return s.Recorder
}

func (s *PaymentService) publish(ctx context.Context, e events.SaleEvent) {
	if s.Events == nil {
		return
	}
	_ = s.Events.Publish(ctx, e)
}

type CallbackInput struct {
	Reference     string
	Code          int
	TransactionID string
}

type CallbackOutcome struct {
	SaleID   int64
	Resolved bool
	Applied  bool
	Status   domain.SaleStatus
	Message  string
}

// HandleCallback applies a relayed provider notification. Unresolvable
// references are not errors: the relay must not retry them.
func (s *PaymentService) HandleCallback(ctx context.Context, in CallbackInput) (CallbackOutcome, error) {
	log := s.logger().With(zap.String("reference", in.Reference), zap.Int("code", in.Code), zap.String("transaction_id", in.TransactionID))

	id, err := ParseReference(in.Reference)
	if err != nil {
		log.Warn("callback reference unresolved")
		s.rec().ObserveCallback("unresolved")
		return CallbackOutcome{Message: "Venta no encontrada"}, nil
	}
	target := domain.StatusForCallbackCode(in.Code)
	out := CallbackOutcome{SaleID: id}
	var (
		from     domain.SaleStatus
		mismatch bool
	)

	err = repos.WithTx(ctx, s.DB, func(tx *sqlx.Tx) error {
		sale, err := s.Sales.GetWith(ctx, tx, id)
		if err != nil {
			return err
		}
		out.Resolved = true
		out.Status = sale.Status
		from = sale.Status

		if !matchesRecorded(sale, in) {
			mismatch = true
			out.Message = "Referencia no coincide"
			return nil
		}
		if sale.Status == target {
			out.Message = "Estado ya registrado"
			return nil
		}
		// a direct sale never went through the provider
		if sale.Status == domain.StatusCompleted && sale.TransactionID == nil {
			out.Message = "Venta sin pago QR"
			return nil
		}
		if !domain.SourceCallback.CanMove(sale.Status, target) {
			log.Warn("callback contradicts recorded status", zap.String("status", string(sale.Status)), zap.String("wanted", string(target)))
			out.Message = "Estado ya registrado"
			return nil
		}
		ok, err := s.Sales.Transition(ctx, tx, id, []domain.SaleStatus{sale.Status}, target)
		if err != nil {
			return err
		}
		if !ok {
			out.Message = "Estado ya registrado"
			return nil
		}
		if target == domain.StatusFailed {
			for _, l := range sale.Lines {
				if err := s.Stock.Release(ctx, tx, l.ProductID, l.Quantity); err != nil {
					return err
				}
			}
		}
		if sale.TransactionID == nil && in.TransactionID != "" {
			if err := s.Sales.SetTransaction(ctx, tx, id, in.TransactionID, in.Reference); err != nil {
				return err
			}
		}
		out.Applied = true
		out.Status = target
		out.Message = "Estado actualizado"
		return nil
	})
	if domain.IsNotFound(err) {
		log.Warn("callback sale not found", zap.Int64("sale_id", id))
		s.rec().ObserveCallback("unresolved")
		return CallbackOutcome{SaleID: id, Message: "Venta no encontrada"}, nil
	}
	if err != nil {
		s.rec().ObserveCallback("error")
		return out, err
	}
	if mismatch {
		s.rec().ObserveCallback("mismatch")
		log.Warn("callback does not match the recorded payment", zap.Int64("sale_id", id))
		return out, nil
	}
	if !out.Applied {
		s.rec().ObserveCallback("ignored")
		log.Info("callback left sale unchanged", zap.Int64("sale_id", id), zap.String("status", string(out.Status)))
		return out, nil
	}
	s.rec().ObserveCallback("applied")
	s.rec().ObserveTransition(string(domain.SourceCallback), string(target))
	log.Info("sale status updated by callback", zap.Int64("sale_id", id), zap.String("from", string(from)), zap.String("to", string(target)))
	s.publish(ctx, events.SaleEvent{
		Type:          events.TypeSaleStatusChanged,
		SaleID:        id,
		Status:        string(target),
		PreviousState: string(from),
		Source:        string(domain.SourceCallback),
		TransactionID: in.TransactionID,
	})
	return out, nil
}

// matchesRecorded checks a callback against what checkout stored: the full
// reference must be the one sent to the provider, and a transaction id, when
// the relay passes one, must be the provider's.
func matchesRecorded(sale domain.Sale, in CallbackInput) bool {
	if sale.Reference != nil && *sale.Reference != in.Reference {
		return false
	}
	if sale.TransactionID != nil && in.TransactionID != "" && *sale.TransactionID != in.TransactionID {
		return false
	}
	return true
}

const (
	PollPaid    = "paid"
	PollPending = "pending"
	PollUnknown = "unknown"
)

type PollResult struct {
	SaleID     int64             `json:"sale_id"`
	SaleStatus domain.SaleStatus `json:"sale_status"`
	State      string            `json:"state"`
	Code       int               `json:"code"`
	Message    string            `json:"message"`
}

// PollStatus asks the provider about a transaction owned by userID. Provider
// failures come back as an "unknown" state, not as an error.
func (s *PaymentService) PollStatus(ctx context.Context, userID int64, transactionID string) (PollResult, error) {
	sale, err := s.Sales.ByTransaction(ctx, transactionID)
	if err != nil {
		return PollResult{}, err
	}
	if sale.UserID != userID {
		return PollResult{}, domain.NotFound("sale", transactionID)
	}
	res := PollResult{SaleID: sale.ID, SaleStatus: sale.Status}
	st, err := s.Gateway.QueryStatus(ctx, transactionID)
	res.Code, res.Message = st.Code, st.Message
	switch {
	case err != nil:
		s.logger().Warn("status poll degraded", zap.String("transaction_id", transactionID), zap.Error(err))
		res.State = PollUnknown
	case st.Paid():
		res.State = PollPaid
	case st.Known:
		res.State = PollPending
	default:
		res.State = PollUnknown
	}
	return res, nil
}

type FinalizeResult struct {
	SaleID  int64             `json:"sale_id"`
	Status  domain.SaleStatus `json:"status"`
	Applied bool              `json:"applied"`
}

// Finalize marks a pending sale completado after the client saw it paid.
// Sales already settled by a callback keep their status.
func (s *PaymentService) Finalize(ctx context.Context, userID, saleID int64) (FinalizeResult, error) {
	sale, err := s.Sales.Get(ctx, saleID)
	if err != nil {
		return FinalizeResult{}, err
	}
	if sale.UserID != userID {
		return FinalizeResult{}, domain.NotFound("sale", saleID)
	}
	res := FinalizeResult{SaleID: sale.ID, Status: sale.Status}
	if sale.Status != domain.StatusPendingPayment {
		return res, nil
	}
	if s.VerifyFinalize && sale.TransactionID != nil {
		st, err := s.Gateway.QueryStatus(ctx, *sale.TransactionID)
		if err != nil || !st.Paid() {
			s.logger().Info("finalize before payment confirmed", zap.Int64("sale_id", saleID), zap.Int("code", st.Code), zap.Error(err))
			return res, domain.ErrPaymentPending
		}
	}

	var applied bool
	err = repos.WithTx(ctx, s.DB, func(tx *sqlx.Tx) error {
		ok, err := s.Sales.Transition(ctx, tx, saleID, domain.SourcePolling.AllowedFrom(), domain.StatusCompleted)
		if err != nil {
			return err
		}
		applied = ok
		if !ok {
			cur, err := s.Sales.GetWith(ctx, tx, saleID)
			if err != nil {
				return err
			}
			res.Status = cur.Status
		}
		return nil
	})
	if err != nil {
		return FinalizeResult{}, err
	}
	if !applied {
		return res, nil
	}
	res.Status, res.Applied = domain.StatusCompleted, true
	s.rec().ObserveTransition(string(domain.SourcePolling), string(domain.StatusCompleted))
	s.logger().Info("sale finalized by polling", zap.Int64("sale_id", saleID))
	s.publish(ctx, events.SaleEvent{
		Type:          events.TypeSaleStatusChanged,
		SaleID:        saleID,
		UserID:        userID,
		Status:        string(domain.StatusCompleted),
		PreviousState: string(domain.StatusPendingPayment),
		Source:        string(domain.SourcePolling),
	})
	return res, nil
}
