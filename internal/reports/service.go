package reports

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/alkuinvito/kasirin/internal/checkout"
	kafkax "github.com/alkuinvito/kasirin/internal/kafka"
	"github.com/alkuinvito/kasirin/internal/redisx"
)

const dayLayout = "2006-01-02"

type Counter interface {
	Record(ctx context.Context, day string, revenue int64, lines []redisx.SoldQty) error
	Day(ctx context.Context, day string, top int) (redisx.DaySales, error)
}

type Deduper interface {
	First(ctx context.Context, id string) (bool, error)
	Forget(ctx context.Context, id string) error
}

// Service folds paid transactions into daily sales counters. Revenue is the
// captured subtotal; fees are computed at read time and are not booked here.
type Service struct {
	Sales    Counter
	Dedup    Deduper
	Location *time.Location
	Log      *slog.Logger
	// Consumed is labelled by event type and result; optional.
	Consumed *prometheus.CounterVec
	Now      func() time.Time
}

// HandleEvent is the consumer handler. Events other than TransactionPaid are
// acknowledged without effect.
func (s *Service) HandleEvent(ctx context.Context, m kafkago.Message) error {
	var env checkout.Envelope
	if err := kafkax.UnmarshalEnvelope(m.Value, &env); err != nil {
		// Poison messages are acknowledged and dropped.
		s.log().Error("drop malformed event", "topic", m.Topic, "offset", m.Offset, "err", err)
		s.count("unknown", "malformed")
		return nil
	}
	if env.EventType != checkout.EventTransactionPaid {
		s.count(env.EventType, "ignored")
		return nil
	}

	p, err := kafkax.UnwrapPayload[checkout.TransactionPaidPayload](env.Payload)
	if err != nil {
		s.log().Error("drop malformed payload", "event_id", env.EventID, "err", err)
		s.count(env.EventType, "malformed")
		return nil
	}

	first, err := s.Dedup.First(ctx, env.EventID)
	if err != nil {
		return fmt.Errorf("dedup %s: %w", env.EventID, err)
	}
	if !first {
		s.count(env.EventType, "duplicate")
		return nil
	}

	lines := make([]redisx.SoldQty, 0, len(p.Lines))
	for _, l := range p.Lines {
		lines = append(lines, redisx.SoldQty{ProductID: l.ProductID, Quantity: int64(l.Quantity)})
	}
	day := p.PaidAt.In(s.loc()).Format(dayLayout)
	if err := s.Sales.Record(ctx, day, p.Subtotal, lines); err != nil {
		if ferr := s.Dedup.Forget(ctx, env.EventID); ferr != nil {
			s.log().Warn("release dedup claim", "event_id", env.EventID, "err", ferr)
		}
		s.count(env.EventType, "error")
		return err
	}
	s.count(env.EventType, "ok")
	s.log().Info("sale recorded", "transaction_id", p.TransactionID, "day", day, "subtotal", p.Subtotal)
	return nil
}

type DaySummary struct {
	Date string `json:"date"`
	redisx.DaySales
}

// Summary reads one day's counters. An empty date means today.
func (s *Service) Summary(ctx context.Context, date string, top int) (*DaySummary, error) {
	if date == "" {
		date = s.now().In(s.loc()).Format(dayLayout)
	}
	if _, err := time.Parse(dayLayout, date); err != nil {
		return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", checkout.ErrInvalidInput)
	}
	day, err := s.Sales.Day(ctx, date, top)
	if err != nil {
		return nil, err
	}
	return &DaySummary{Date: date, DaySales: day}, nil
}

// Topics lists what the reporter subscribes to.
func Topics() []string {
	return []string{checkout.TopicTransactionPaid}
}

func (s *Service) count(eventType, result string) {
	if s.Consumed != nil {
		s.Consumed.WithLabelValues(eventType, result).Inc()
	}
}

func (s *Service) loc() *time.Location {
	if s.Location != nil {
		return s.Location
	}
	return time.UTC
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) log() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}
