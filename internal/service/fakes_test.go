package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"storefront/internal/airtable"
	"storefront/internal/cartstore"
	"storefront/internal/checkout"
	"storefront/internal/fedex"
	"storefront/internal/models"
	"storefront/internal/payment"
	"storefront/internal/session"
	"storefront/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

var errInjected = errors.New("injected failure")

type outboxRow struct {
	EventID     string
	EventType   string
	AggregateID string
	Payload     interface{}
}

// fakeRepo is an in-memory Repository; WithTx rolls back on error.
type fakeRepo struct {
	mu        sync.Mutex
	customers map[string]models.Customer
	checkouts map[string]models.CheckoutRecord
	orders    []models.Order
	intents   map[string]string
	outbox    []outboxRow
	nextID    int64
	failOn    string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		customers: map[string]models.Customer{},
		checkouts: map[string]models.CheckoutRecord{},
		intents:   map[string]string{},
	}
}

type repoSnapshot struct {
	customers map[string]models.Customer
	checkouts map[string]models.CheckoutRecord
	orders    []models.Order
	intents   map[string]string
	outbox    []outboxRow
	nextID    int64
}

func (r *fakeRepo) snapshot() repoSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := repoSnapshot{
		customers: make(map[string]models.Customer, len(r.customers)),
		checkouts: make(map[string]models.CheckoutRecord, len(r.checkouts)),
		orders:    append([]models.Order(nil), r.orders...),
		intents:   make(map[string]string, len(r.intents)),
		outbox:    append([]outboxRow(nil), r.outbox...),
		nextID:    r.nextID,
	}
	for k, v := range r.intents {
		s.intents[k] = v
	}
	for k, v := range r.customers {
		s.customers[k] = v
	}
	for k, v := range r.checkouts {
		s.checkouts[k] = v
	}
	return s
}

func (r *fakeRepo) restore(s repoSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.customers = s.customers
	r.checkouts = s.checkouts
	r.orders = s.orders
	r.intents = s.intents
	r.outbox = s.outbox
	r.nextID = s.nextID
}

func (r *fakeRepo) fail(op string) error {
	if r.failOn == op {
		return errInjected
	}
	return nil
}

func (r *fakeRepo) WithTx(ctx context.Context, fn func(tx Repository) error) error {
	snap := r.snapshot()
	if err := fn(r); err != nil {
		r.restore(snap)
		return err
	}
	return nil
}

func (r *fakeRepo) UpsertCustomer(ctx context.Context, c *models.Customer) error {
	if err := r.fail("UpsertCustomer"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cur := r.customers[c.SessionID]
	cur.SessionID = c.SessionID
	merge := func(dst *string, src string) {
		if src != "" {
			*dst = src
		}
	}
	merge(&cur.FirstName, c.FirstName)
	merge(&cur.LastName, c.LastName)
	merge(&cur.Email, c.Email)
	merge(&cur.Phone, c.Phone)
	merge(&cur.Address, c.Address)
	merge(&cur.City, c.City)
	merge(&cur.State, c.State)
	merge(&cur.Zip, c.Zip)
	merge(&cur.Country, c.Country)
	merge(&cur.ShippingMethod, c.ShippingMethod)
	r.customers[c.SessionID] = cur
	*c = cur
	return nil
}

func (r *fakeRepo) InsertCheckout(ctx context.Context, c *models.CheckoutRecord) error {
	if err := r.fail("InsertCheckout"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	r.checkouts[c.CheckoutID] = *c
	return nil
}

func (r *fakeRepo) UpdateCheckout(ctx context.Context, c *models.CheckoutRecord, from string) error {
	if err := r.fail("UpdateCheckout"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.checkouts[c.CheckoutID]
	if !ok {
		return store.ErrNotFound
	}
	if cur.Status != from {
		return store.ErrStatusConflict
	}
	c.CreatedAt = cur.CreatedAt
	c.UpdatedAt = time.Now()
	c.MirrorRecordID = cur.MirrorRecordID
	r.checkouts[c.CheckoutID] = *c
	return nil
}

func (r *fakeRepo) GetCheckout(ctx context.Context, id string) (*models.CheckoutRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.checkouts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (r *fakeRepo) ListStaleCheckouts(ctx context.Context, cutoff time.Time, limit int) ([]models.CheckoutRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.CheckoutRecord
	for _, c := range r.checkouts {
		if checkout.Status(c.Status).Terminal() || !c.UpdatedAt.Before(cutoff) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeRepo) InsertOrderLine(ctx context.Context, o *models.Order) error {
	if err := r.fail("InsertOrderLine"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	o.ID = r.nextID
	o.CreatedAt = time.Now()
	o.UpdatedAt = o.CreatedAt
	r.orders = append(r.orders, *o)
	return nil
}

func (r *fakeRepo) ListOrders(ctx context.Context, f store.OrderFilter) ([]models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Order
	for i := len(r.orders) - 1; i >= 0; i-- {
		o := r.orders[i]
		if f.Search != "" && !strings.Contains(strings.ToLower(o.OrderID+" "+o.Email), strings.ToLower(f.Search)) {
			continue
		}
		out = append(out, o)
	}
	if f.Offset < len(out) {
		out = out[f.Offset:]
	} else {
		out = nil
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *fakeRepo) CountOrders(ctx context.Context, search string) (int64, error) {
	orders, err := r.ListOrders(ctx, store.OrderFilter{Search: search})
	return int64(len(orders)), err
}

func (r *fakeRepo) GetOrderLine(ctx context.Context, id int64) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.ID == id {
			line := o
			return &line, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *fakeRepo) GetOrderLines(ctx context.Context, orderID string) ([]models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Order
	for _, o := range r.orders {
		if o.OrderID == orderID {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return nil, store.ErrNotFound
	}
	return out, nil
}

func (r *fakeRepo) UpdateOrderPaymentStatus(ctx context.Context, orderID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for i := range r.orders {
		if r.orders[i].OrderID == orderID {
			r.orders[i].PaymentStatus = status
			n++
		}
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *fakeRepo) UpdatePaymentStatusByIntent(ctx context.Context, intentID, status string) ([]string, error) {
	if err := r.fail("UpdatePaymentStatusByIntent"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := map[string]bool{}
	ids := []string{}
	for i := range r.orders {
		o := &r.orders[i]
		if o.PaymentIntentID != intentID || o.PaymentStatus == status {
			continue
		}
		o.PaymentStatus = status
		if !seen[o.OrderID] {
			seen[o.OrderID] = true
			ids = append(ids, o.OrderID)
		}
	}
	return ids, nil
}

func (r *fakeRepo) ClaimPaymentIntent(ctx context.Context, intentID, orderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.intents[intentID]; ok {
		return store.ErrIntentUsed
	}
	r.intents[intentID] = orderID
	return nil
}

func (r *fakeRepo) OrderForIntent(ctx context.Context, intentID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	orderID, ok := r.intents[intentID]
	if !ok {
		return "", store.ErrNotFound
	}
	return orderID, nil
}

func (r *fakeRepo) AppendOutbox(ctx context.Context, eventID, eventType, aggregateID string, payload interface{}) error {
	if err := r.fail("AppendOutbox"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outbox = append(r.outbox, outboxRow{EventID: eventID, EventType: eventType, AggregateID: aggregateID, Payload: payload})
	return nil
}

func (r *fakeRepo) eventsOfType(eventType string) []outboxRow {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []outboxRow
	for _, row := range r.outbox {
		if row.EventType == eventType {
			out = append(out, row)
		}
	}
	return out
}

func (r *fakeRepo) checkout(id string) (models.CheckoutRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.checkouts[id]
	return c, ok
}

// fakeCatalog serves products from a map.
type fakeCatalog struct {
	mu       sync.Mutex
	products map[string]*models.Product
}

func newFakeCatalog(products ...*models.Product) *fakeCatalog {
	c := &fakeCatalog{products: map[string]*models.Product{}}
	for _, p := range products {
		c.products[p.ID] = p
	}
	return c
}

func (c *fakeCatalog) ProductsByIDs(ctx context.Context, ids []string) (map[string]*models.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]*models.Product, len(ids))
	for _, id := range ids {
		if p, ok := c.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (c *fakeCatalog) remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.products, id)
}

// fakeLister serves affiliate rows.
type fakeLister struct {
	records []airtable.Record
	err     error
	tables  []string
}

func (l *fakeLister) List(ctx context.Context, table string, q airtable.Query) ([]airtable.Record, error) {
	l.tables = append(l.tables, table)
	if l.err != nil {
		return nil, l.err
	}
	return l.records, nil
}

// mockGateway is a testify mock of payment.Gateway.
type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) CreateIntent(ctx context.Context, amountCents int64, metadata map[string]string) (*payment.Intent, error) {
	args := m.Called(ctx, amountCents, metadata)
	intent, _ := args.Get(0).(*payment.Intent)
	return intent, args.Error(1)
}

func (m *mockGateway) GetIntent(ctx context.Context, id string) (*payment.Intent, error) {
	args := m.Called(ctx, id)
	intent, _ := args.Get(0).(*payment.Intent)
	return intent, args.Error(1)
}

func (m *mockGateway) ParseWebhook(payload []byte, signature string) (*payment.Event, error) {
	args := m.Called(payload, signature)
	evt, _ := args.Get(0).(*payment.Event)
	return evt, args.Error(1)
}

// memoryDeduper mimics the Redis idempotency keys.
type memoryDeduper struct {
	mu   sync.Mutex
	keys map[string]bool
}

func newMemoryDeduper() *memoryDeduper {
	return &memoryDeduper{keys: map[string]bool{}}
}

func (d *memoryDeduper) MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.keys[key] {
		return false, nil
	}
	d.keys[key] = true
	return true, nil
}

func (d *memoryDeduper) ForgetOnce(ctx context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.keys, key)
	return nil
}

type fakeResolver struct {
	res *fedex.Resolution
	err error
	got []fedex.Address
}

func (f *fakeResolver) ResolveAddress(ctx context.Context, addr fedex.Address) (*fedex.Resolution, error) {
	f.got = append(f.got, addr)
	return f.res, f.err
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func product(id, price string) *models.Product {
	return &models.Product{ID: id, Slug: id, Name: "Product " + id, Price: dec(price), InStock: true}
}

func affiliateRecord(code, discount string, active bool) airtable.Record {
	return airtable.Record{ID: "rec" + code, Fields: map[string]any{
		"Code":     code,
		"Discount": discount,
		"Active":   active,
		"Name":     "Partner " + code,
	}}
}

// checkoutFixture wires the checkout services over in-memory fakes.
type checkoutFixture struct {
	repo     *fakeRepo
	catalog  *fakeCatalog
	carts    *CartService
	gateway  *mockGateway
	claims   *memoryDeduper
	checkout *CheckoutService
	sess     *session.Session
}

func newCheckoutFixture(products ...*models.Product) *checkoutFixture {
	repo := newFakeRepo()
	catalog := newFakeCatalog(products...)
	carts := NewCartService(cartstore.NewMemory(time.Hour), catalog)
	gw := &mockGateway{}
	lister := &fakeLister{records: []airtable.Record{
		affiliateRecord("SAVE10", "10", true),
		affiliateRecord("OLD", "15", false),
	}}
	claims := newMemoryDeduper()
	svc := NewCheckoutService(repo, carts, NewAffiliateService(lister, "Affiliates"), gw, NewOrderWriter(), claims, CheckoutOptions{
		Wallets: map[string]string{"BTC": "bc1qexample"},
	})
	svc.opts.Bank.BankName = "First Bank"
	return &checkoutFixture{
		repo:     repo,
		catalog:  catalog,
		carts:    carts,
		gateway:  gw,
		claims:   claims,
		checkout: svc,
		sess:     session.NewSession(),
	}
}
