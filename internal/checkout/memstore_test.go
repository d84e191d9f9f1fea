package checkout

import (
	"context"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

type memProduct struct {
	LockedProduct
	options map[string]SelectedOption
}

type memState struct {
	products map[string]memProduct
	txs      map[string]Transaction
}

func (s memState) clone() memState {
	out := memState{
		products: make(map[string]memProduct, len(s.products)),
		txs:      make(map[string]Transaction, len(s.txs)),
	}
	for k, v := range s.products {
		out.products[k] = v
	}
	for k, v := range s.txs {
		out.txs[k] = v
	}
	return out
}

// memStore serialises every unit of work behind one mutex, which is what row
// locks give the Postgres store for the rows a unit touches.
type memStore struct {
	mu    sync.Mutex
	state memState
	fees  []Fee
	// markExpired counts persisted lazy expiries; markCalls counts every attempt.
	markExpired int
	markCalls   int
	// lastLocks is the product lock order of the latest unit of work.
	lastLocks []string
}

func newMemStore() *memStore {
	return &memStore{state: memState{products: map[string]memProduct{}, txs: map[string]Transaction{}}}
}

func (s *memStore) addProduct(id, name string, price int64, stock int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.products[id] = memProduct{
		LockedProduct: LockedProduct{ID: id, Name: name, Price: price, Stock: stock},
		options:       map[string]SelectedOption{},
	}
}

func (s *memStore) addOption(productID, id, name string, price int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.products[productID].options[id] = SelectedOption{ID: id, Name: name, Price: price}
}

func (s *memStore) setPrice(id string, price int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.state.products[id]
	p.Price = price
	s.state.products[id] = p
}

// deleteProduct mirrors ON DELETE SET NULL on order_lines.product_id.
func (s *memStore) deleteProduct(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.state.products, id)
	for k, t := range s.state.txs {
		lines := append([]OrderLine(nil), t.Lines...)
		for i := range lines {
			if lines[i].ProductID == id {
				lines[i].ProductID = ""
			}
		}
		t.Lines = lines
		s.state.txs[k] = t
	}
}

func (s *memStore) setStatus(id string, st Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.state.txs[id]
	t.Status = st
	s.state.txs[id] = t
}

func (s *memStore) stock(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.products[id].Stock
}

func (s *memStore) locks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lastLocks...)
}

func (s *memStore) txCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.txs)
}

func (s *memStore) stored(id string) (Transaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.state.txs[id]
	return t, ok
}

func (s *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &memUnit{st: s.state.clone()}
	err := fn(ctx, u)
	s.lastLocks = u.locks
	if err != nil {
		return err
	}
	s.state = u.st
	return nil
}

func (s *memStore) GetTransaction(_ context.Context, id string) (*Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.state.txs[id]
	if !ok {
		return nil, &NotFoundError{Kind: "transaction", ID: id}
	}
	return &t, nil
}

func (s *memStore) ListTransactions(_ context.Context, limit, offset int) ([]Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Transaction
	for _, t := range s.state.txs {
		out = append(out, t)
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) MarkExpired(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markCalls++
	t, ok := s.state.txs[id]
	if ok && t.Status == StatusPending {
		t.Status = StatusExpired
		s.state.txs[id] = t
		s.markExpired++
	}
	return nil
}

func (s *memStore) ListFees(context.Context) ([]Fee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Fee(nil), s.fees...), nil
}

type memUnit struct {
	st    memState
	locks []string
}

func (u *memUnit) LockProduct(_ context.Context, id string) (LockedProduct, error) {
	u.locks = append(u.locks, id)
	p, ok := u.st.products[id]
	if !ok {
		return LockedProduct{}, &NotFoundError{Kind: "product", ID: id}
	}
	return p.LockedProduct, nil
}

func (u *memUnit) DecrementStock(_ context.Context, id string, qty int) error {
	p := u.st.products[id]
	if p.Stock < qty {
		return &StockError{ProductID: id, Requested: qty, Available: p.Stock}
	}
	p.Stock -= qty
	u.st.products[id] = p
	return nil
}

func (u *memUnit) RestoreStock(_ context.Context, id string, qty int) error {
	if p, ok := u.st.products[id]; ok {
		p.Stock += qty
		u.st.products[id] = p
	}
	return nil
}

func (u *memUnit) ResolveOptions(_ context.Context, productID string, ids []string) ([]SelectedOption, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	p := u.st.products[productID]
	out := make([]SelectedOption, 0, len(ids))
	for _, id := range ids {
		o, ok := p.options[id]
		if !ok {
			return nil, &NotFoundError{Kind: "variant", ID: id}
		}
		out = append(out, o)
	}
	return out, nil
}

func (u *memUnit) InsertTransaction(_ context.Context, t *Transaction) error {
	c := *t
	c.Lines = append([]OrderLine(nil), t.Lines...)
	u.st.txs[t.ID] = c
	return nil
}

func (u *memUnit) LockTransaction(_ context.Context, id string) (*Transaction, error) {
	t, ok := u.st.txs[id]
	if !ok {
		return nil, &NotFoundError{Kind: "transaction", ID: id}
	}
	return &t, nil
}

func (u *memUnit) MarkPaid(_ context.Context, id string, method Method, at time.Time) error {
	t := u.st.txs[id]
	if t.Status != StatusPending {
		return ErrAlreadyPaid
	}
	t.Status = StatusDone
	t.Method = &method
	t.PaidAt = &at
	u.st.txs[id] = t
	return nil
}

func (u *memUnit) DeleteTransaction(_ context.Context, id string) error {
	delete(u.st.txs, id)
	return nil
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type published struct {
	topic string
	key   string
	value []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
}

func (p *fakePublisher) Publish(topic string, key, value []byte, _ ...kafkago.Header) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, published{topic: topic, key: string(key), value: value})
}

func (p *fakePublisher) topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.msgs))
	for _, m := range p.msgs {
		out = append(out, m.topic)
	}
	return out
}

type fakeCache struct {
	mu          sync.Mutex
	items       map[string]Transaction
	invalidated []string
}

func newFakeCache() *fakeCache { return &fakeCache{items: map[string]Transaction{}} }

func (c *fakeCache) GetTransaction(_ context.Context, id string) (*Transaction, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.items[id]
	return &t, ok
}

func (c *fakeCache) PutTransaction(_ context.Context, t *Transaction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[t.ID] = *t
}

func (c *fakeCache) Invalidate(_ context.Context, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, id)
	c.invalidated = append(c.invalidated, id)
}

func pct(v string) decimal.Decimal { return decimal.RequireFromString(v) }
