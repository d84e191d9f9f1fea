package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/alkuinvito/kasirin/internal/kafka"
)

const (
	DefaultPaymentWindow = 5 * time.Minute
	DefaultReadGrace     = 5 * time.Minute

	// maxQuantity is the largest stock value the products table can hold.
	maxQuantity = math.MaxInt32
)

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	Publish(topic string, key, value []byte, headers ...kafkago.Header)
}

// Service is the checkout engine: it admits carts into pending transactions,
// confirms payment inside the payment window and presents transactions with
// read-time status correction.
type Service struct {
	Store  Store
	Cache  Cache     // optional
	Events Publisher // optional
	Log    *slog.Logger
	// Outcomes is labelled by operation and result; optional.
	Outcomes *prometheus.CounterVec

	Now            func() time.Time
	PaymentWindow  time.Duration
	ReadGrace      time.Duration
	RestockExpired bool
	ServiceName    string
}

// Admit decrements stock for every intent and records a pending transaction
// for cashierID, all in one unit of work. It returns the transaction id.
func (s *Service) Admit(ctx context.Context, cashierID string, intents []OrderIntent) (string, error) {
	need, err := validateIntents(cashierID, intents)
	if err != nil {
		return "", err
	}

	// Lock in a stable order so concurrent carts sharing products cannot deadlock.
	productIDs := make([]string, 0, len(need))
	for id := range need {
		productIDs = append(productIDs, id)
	}
	sort.Strings(productIDs)

	t := &Transaction{
		ID:        uuid.NewString(),
		UserID:    cashierID,
		Status:    StatusPending,
		CreatedAt: s.now(),
	}

	err = s.Store.WithinTx(ctx, func(ctx context.Context, uow UnitOfWork) error {
		products := make(map[string]LockedProduct, len(productIDs))
		for _, id := range productIDs {
			p, err := uow.LockProduct(ctx, id)
			if err != nil {
				return err
			}
			if need[id] > p.Stock {
				return &StockError{ProductID: id, Requested: need[id], Available: p.Stock}
			}
			if err := uow.DecrementStock(ctx, id, need[id]); err != nil {
				return err
			}
			products[id] = p
		}

		t.Lines = make([]OrderLine, 0, len(intents))
		for _, in := range intents {
			p := products[in.ProductID]
			opts, err := uow.ResolveOptions(ctx, p.ID, dedupe(in.OptionItemIDs))
			if err != nil {
				return err
			}
			unit := p.Price
			for _, o := range opts {
				unit += o.Price
			}
			if opts == nil {
				opts = []SelectedOption{}
			}
			t.Lines = append(t.Lines, OrderLine{
				ID:          uuid.NewString(),
				ProductID:   p.ID,
				ProductName: p.Name,
				Quantity:    in.Quantity,
				UnitPrice:   unit,
				Notes:       in.Notes,
				Options:     opts,
			})
		}
		return uow.InsertTransaction(ctx, t)
	})
	if err != nil {
		s.outcome("admit", reason(err))
		return "", err
	}

	s.outcome("admit", "ok")
	s.log().Info("transaction admitted", "transaction_id", t.ID, "user_id", cashierID, "lines", len(t.Lines))
	s.emit(TopicTransactionAdmitted, EventTransactionAdmitted, t.ID, TransactionAdmittedPayload{
		TransactionID: t.ID,
		UserID:        t.UserID,
		Lines:         lineQtys(t.Lines),
		Subtotal:      t.Subtotal(),
	})
	return t.ID, nil
}

// ConfirmPayment moves a pending transaction to done. A transaction at or past
// the payment window is deleted instead and ErrExpired is returned; with
// RestockExpired its quantities go back to stock in the same unit of work.
func (s *Service) ConfirmPayment(ctx context.Context, transactionID string, method Method) (*Transaction, error) {
	if !method.Valid() {
		return nil, invalid(fmt.Sprintf("unknown payment method %q", method))
	}
	now := s.now()

	var (
		out       *Transaction
		expired   bool
		restocked bool
	)
	err := s.Store.WithinTx(ctx, func(ctx context.Context, uow UnitOfWork) error {
		t, err := uow.LockTransaction(ctx, transactionID)
		if err != nil {
			return err
		}
		if t.Status == StatusDone {
			return ErrAlreadyPaid
		}

		if !CanTransition(t.Status, StatusDone) || now.Sub(t.CreatedAt) >= s.window() {
			if s.RestockExpired {
				if err := restock(ctx, uow, t.Lines); err != nil {
					return err
				}
				restocked = true
			}
			if err := uow.DeleteTransaction(ctx, t.ID); err != nil {
				return err
			}
			out, expired = t, true
			return nil
		}

		ids, err := lineProducts(t.Lines)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if _, err := uow.LockProduct(ctx, id); err != nil {
				return err
			}
		}
		if err := uow.MarkPaid(ctx, t.ID, method, now); err != nil {
			return err
		}
		t.Status = StatusDone
		t.Method = &method
		t.PaidAt = &now
		out = t
		return nil
	})
	if err != nil {
		s.outcome("pay", reason(err))
		return nil, err
	}
	s.invalidate(ctx, transactionID)

	if expired {
		s.outcome("pay", "expired")
		s.log().Info("transaction expired on payment", "transaction_id", transactionID, "restocked", restocked)
		s.emit(TopicTransactionExpired, EventTransactionExpired, transactionID, TransactionExpiredPayload{
			TransactionID: transactionID,
			Restocked:     restocked,
			Lines:         lineQtys(out.Lines),
		})
		return nil, fmt.Errorf("%w: %s", ErrExpired, transactionID)
	}

	s.outcome("pay", "ok")
	s.log().Info("transaction paid", "transaction_id", transactionID, "method", string(method))
	s.emit(TopicTransactionPaid, EventTransactionPaid, transactionID, TransactionPaidPayload{
		TransactionID: out.ID,
		UserID:        out.UserID,
		Method:        method,
		PaidAt:        now,
		Lines:         lineQtys(out.Lines),
		Subtotal:      out.Subtotal(),
	})
	return out, nil
}

// Get returns the transaction as seen now, priced against the live fee list.
func (s *Service) Get(ctx context.Context, id string) (*View, error) {
	t, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	fees, err := s.Store.ListFees(ctx)
	if err != nil {
		return nil, err
	}
	s.present(ctx, t, s.now())
	v := NewView(*t, fees)
	return &v, nil
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]View, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	txs, err := s.Store.ListTransactions(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	fees, err := s.Store.ListFees(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]View, 0, len(txs))
	for i := range txs {
		s.present(ctx, &txs[i], now)
		out = append(out, NewView(txs[i], fees))
	}
	return out, nil
}

func (s *Service) load(ctx context.Context, id string) (*Transaction, error) {
	if s.Cache != nil {
		if t, ok := s.Cache.GetTransaction(ctx, id); ok {
			return t, nil
		}
	}
	t, err := s.Store.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	// Only done is terminal; anything else may change under a concurrent payment.
	if s.Cache != nil && t.Status == StatusDone {
		s.Cache.PutTransaction(ctx, t)
	}
	return t, nil
}

// present applies the read-time status view. Observing a pending transaction
// past the window also persists expired; the reverse correction never writes.
func (s *Service) present(ctx context.Context, t *Transaction, now time.Time) {
	shown := presentStatus(t.Status, t.CreatedAt, now, s.window(), s.grace())
	if shown != t.Status && CanTransition(t.Status, shown) {
		if err := s.Store.MarkExpired(ctx, t.ID); err != nil {
			s.log().Warn("persist expired status", "transaction_id", t.ID, "err", err)
		} else {
			s.invalidate(ctx, t.ID)
		}
	}
	t.Status = shown
}

// lineProducts returns the distinct products of lines in the same order Admit
// locks them. A line whose product was deleted fails the whole payment.
func lineProducts(lines []OrderLine) ([]string, error) {
	seen := make(map[string]bool, len(lines))
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		if l.ProductID == "" {
			return nil, &NotFoundError{Kind: "product", ID: l.ProductName}
		}
		if !seen[l.ProductID] {
			seen[l.ProductID] = true
			ids = append(ids, l.ProductID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func restock(ctx context.Context, uow UnitOfWork, lines []OrderLine) error {
	qty := map[string]int{}
	for _, l := range lines {
		if l.ProductID != "" {
			qty[l.ProductID] += l.Quantity
		}
	}
	ids := make([]string, 0, len(qty))
	for id := range qty {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if err := uow.RestoreStock(ctx, id, qty[id]); err != nil {
			return err
		}
	}
	return nil
}

// validateIntents checks shape and sums quantity per product.
func validateIntents(cashierID string, intents []OrderIntent) (map[string]int, error) {
	if _, err := uuid.Parse(cashierID); err != nil {
		return nil, invalid("cashier id is required")
	}
	if len(intents) == 0 {
		return nil, invalid("orders must not be empty")
	}
	need := make(map[string]int, len(intents))
	for i := range intents {
		intents[i].ProductID = strings.TrimSpace(intents[i].ProductID)
		in := intents[i]
		if in.ProductID == "" {
			return nil, invalid(fmt.Sprintf("orders[%d]: productId is required", i))
		}
		if in.Quantity < 1 || in.Quantity > maxQuantity {
			return nil, invalid(fmt.Sprintf("orders[%d]: quantity must be between 1 and %d", i, maxQuantity))
		}
		if need[in.ProductID] > maxQuantity-in.Quantity {
			return nil, invalid(fmt.Sprintf("orders[%d]: total quantity for %s exceeds %d", i, in.ProductID, maxQuantity))
		}
		need[in.ProductID] += in.Quantity
	}
	return need, nil
}

func dedupe(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func reason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return "invalid"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrAlreadyPaid):
		return "already_paid"
	}
	return "error"
}

func (s *Service) emit(topic, eventType, transactionID string, payload any) {
	if s.Events == nil {
		return
	}
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    s.now().UTC(),
		Producer:      s.ServiceName,
		CorrelationID: transactionID,
		Payload:       kafkax.MustMarshal(payload),
	}
	s.Events.Publish(topic, PartitionKey(transactionID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (s *Service) outcome(op, result string) {
	if s.Outcomes != nil {
		s.Outcomes.WithLabelValues(op, result).Inc()
	}
}

func (s *Service) invalidate(ctx context.Context, id string) {
	if s.Cache != nil {
		s.Cache.Invalidate(ctx, id)
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) window() time.Duration {
	if s.PaymentWindow > 0 {
		return s.PaymentWindow
	}
	return DefaultPaymentWindow
}

func (s *Service) grace() time.Duration {
	if s.ReadGrace > 0 {
		return s.ReadGrace
	}
	return DefaultReadGrace
}

func (s *Service) log() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}
