package worker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"storefront/internal/airtable"
	"storefront/internal/broker"
	"storefront/internal/models"
	"storefront/internal/util"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// MirrorConsumer is the consumer name recorded in processed_events.
const MirrorConsumer = "mirror"

const (
	mirrorAttempts = 3
	mirrorBackoff  = time.Second
)

// RecordWriter writes rows to the external mirror tables.
type RecordWriter interface {
	List(ctx context.Context, table string, q airtable.Query) ([]airtable.Record, error)
	Create(ctx context.Context, table string, fields map[string]any) (*airtable.Record, error)
	Update(ctx context.Context, table, id string, fields map[string]any) (*airtable.Record, error)
}

// MirrorStore is the local state the mirror reads and updates.
type MirrorStore interface {
	ProcessedStore
	GetCheckout(ctx context.Context, checkoutID string) (*models.CheckoutRecord, error)
	SetCheckoutMirrorID(ctx context.Context, checkoutID, recordID string) error
}

// MirrorTables names the external tables.
type MirrorTables struct {
	Checkouts string
	Orders    string
}

// MirrorWorker copies checkouts and order lines to the external tables.
// Each write is retried a bounded number of times; exhaustion is logged and
// counted and the event is acknowledged so the customer never waits on it.
type MirrorWorker struct {
	records RecordWriter
	store   MirrorStore
	tables  MirrorTables
	backoff func() retry.Backoff
	logger  *zap.Logger
}

// NewMirrorWorker creates a new mirror worker
func NewMirrorWorker(records RecordWriter, store MirrorStore, tables MirrorTables) *MirrorWorker {
	return &MirrorWorker{
		records: records,
		store:   store,
		tables:  tables,
		backoff: func() retry.Backoff {
			return retry.WithMaxRetries(mirrorAttempts-1, retry.NewConstant(mirrorBackoff))
		},
		logger: util.GetLogger(),
	}
}

// Register wires the mirror into an event handler.
func (m *MirrorWorker) Register(h *broker.EventHandler) {
	h.OnCheckoutUpdated(m.HandleCheckoutUpdated)
	h.OnOrderLineCreated(m.HandleOrderLineCreated)
	h.OnOrderPaymentStatus(m.HandleOrderPaymentStatus)
}

// HandleCheckoutUpdated overwrites the mirrored checkout with the snapshot.
func (m *MirrorWorker) HandleCheckoutUpdated(ctx context.Context, evt *models.CheckoutUpdatedEvent) error {
	return once(ctx, m.store, MirrorConsumer, evt.EventID, evt.EventType, func() error {
		rec, err := m.store.GetCheckout(ctx, evt.CheckoutID)
		if err != nil {
			return fmt.Errorf("load checkout %s: %w", evt.CheckoutID, err)
		}
		fields := checkoutFields(evt)

		if rec.MirrorRecordID != "" {
			m.write(ctx, "checkout_update", func(ctx context.Context) error {
				_, err := m.records.Update(ctx, m.tables.Checkouts, rec.MirrorRecordID, fields)
				return err
			})
			return nil
		}

		var created *airtable.Record
		ok := m.write(ctx, "checkout_create", func(ctx context.Context) error {
			var err error
			created, err = m.records.Create(ctx, m.tables.Checkouts, fields)
			return err
		})
		if ok && created != nil {
			if err := m.store.SetCheckoutMirrorID(ctx, evt.CheckoutID, created.ID); err != nil {
				return fmt.Errorf("store mirror id: %w", err)
			}
		}
		return nil
	})
}

// HandleOrderLineCreated appends one row per order line.
func (m *MirrorWorker) HandleOrderLineCreated(ctx context.Context, evt *models.OrderLineCreatedEvent) error {
	return once(ctx, m.store, MirrorConsumer, evt.EventID, evt.EventType, func() error {
		fields := orderLineFields(evt.Line)
		m.write(ctx, "order_line", func(ctx context.Context) error {
			_, err := m.records.Create(ctx, m.tables.Orders, fields)
			return err
		})
		return nil
	})
}

// HandleOrderPaymentStatus copies a payment status change onto every
// mirrored line of the order.
func (m *MirrorWorker) HandleOrderPaymentStatus(ctx context.Context, evt *models.OrderPaymentStatusEvent) error {
	return once(ctx, m.store, MirrorConsumer, evt.EventID, evt.EventType, func() error {
		var lines []airtable.Record
		ok := m.write(ctx, "order_lookup", func(ctx context.Context) error {
			var err error
			lines, err = m.records.List(ctx, m.tables.Orders, airtable.Query{Formula: orderFormula(evt.OrderID)})
			return err
		})
		if !ok {
			return nil
		}
		if len(lines) == 0 {
			m.logger.Warn("No mirrored lines for order", zap.String("order_id", evt.OrderID))
			return nil
		}

		fields := map[string]any{"Payment Status": evt.PaymentStatus}
		for _, line := range lines {
			id := line.ID
			m.write(ctx, "order_payment_status", func(ctx context.Context) error {
				_, err := m.records.Update(ctx, m.tables.Orders, id, fields)
				return err
			})
		}
		return nil
	})
}

func orderFormula(orderID string) string {
	return fmt.Sprintf("{Order ID} = '%s'", strings.ReplaceAll(orderID, "'", `\'`))
}

// write runs fn with the bounded retry and reports success.
func (m *MirrorWorker) write(ctx context.Context, target string, fn func(ctx context.Context) error) bool {
	attempt := 0
	err := retry.Do(ctx, m.backoff(), func(ctx context.Context) error {
		attempt++
		if err := fn(ctx); err != nil {
			m.logger.Warn("Mirror write failed",
				zap.String("target", target),
				zap.Int("attempt", attempt),
				zap.Error(err))
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		util.MirrorWritesTotal.WithLabelValues(target, "exhausted").Inc()
		m.logger.Error("Mirror write gave up",
			zap.String("target", target),
			zap.Int("attempts", attempt),
			zap.Error(err))
		return false
	}
	util.MirrorWritesTotal.WithLabelValues(target, "ok").Inc()
	return true
}

func checkoutFields(evt *models.CheckoutUpdatedEvent) map[string]any {
	fields := map[string]any{
		"Checkout ID": evt.CheckoutID,
		"Session ID":  evt.SessionID,
		"Status":      evt.Status,
	}
	copyField(fields, "First Name", evt.Personal, "firstName")
	copyField(fields, "Last Name", evt.Personal, "lastName")
	copyField(fields, "Email", evt.Personal, "email")
	copyField(fields, "Phone", evt.Personal, "phone")
	copyField(fields, "Address", evt.Shipping, "address")
	copyField(fields, "City", evt.Shipping, "city")
	copyField(fields, "State", evt.Shipping, "state")
	copyField(fields, "Zip", evt.Shipping, "zip")
	copyField(fields, "Country", evt.Shipping, "country")
	copyField(fields, "Shipping Method", evt.Shipping, "method")
	copyField(fields, "Shipping Price", evt.Shipping, "shippingPrice")
	copyField(fields, "Payment Method", evt.Payment, "method")
	copyField(fields, "Total", evt.Payment, "total")
	copyField(fields, "Payment Intent", evt.Payment, "paymentIntentId")
	return fields
}

func copyField(dst map[string]any, name string, src map[string]any, key string) {
	if v, ok := src[key]; ok && v != nil && v != "" {
		dst[name] = v
	}
}

func orderLineFields(o models.Order) map[string]any {
	fields := map[string]any{
		"Order ID":        o.OrderID,
		"Customer Name":   joinName(o.FirstName, o.LastName),
		"Email":           o.Email,
		"Phone":           o.Phone,
		"Address":         o.Address,
		"City":            o.City,
		"State":           o.State,
		"Zip":             o.Zip,
		"Country":         o.Country,
		"Product ID":      o.ProductID,
		"Product":         o.ProductName,
		"Quantity":        o.Quantity,
		"Weight":          o.Weight,
		"Unit Price":      o.UnitPrice.InexactFloat64(),
		"Line Total":      o.LineTotal.InexactFloat64(),
		"Shipping Method": o.ShippingMethod,
		"Shipping Price":  o.ShippingPrice.InexactFloat64(),
		"Payment Method":  o.PaymentMethod,
		"Payment Status":  o.PaymentStatus,
	}
	if o.DiscountCode != "" {
		fields["Discount Code"] = o.DiscountCode
	}
	if o.DiscountPercent.Valid {
		fields["Discount Percent"] = o.DiscountPercent.Decimal.InexactFloat64()
	}
	return fields
}

func joinName(first, last string) string {
	if last == "" {
		return first
	}
	if first == "" {
		return last
	}
	return first + " " + last
}
