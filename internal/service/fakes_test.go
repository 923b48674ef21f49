package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/krismos64/Staka-livres-sub003/internal/datamodels/conversation"
	"github.com/krismos64/Staka-livres-sub003/internal/datamodels/file"
	"github.com/krismos64/Staka-livres-sub003/internal/datamodels/invoice"
	"github.com/krismos64/Staka-livres-sub003/internal/datamodels/notification"
	"github.com/krismos64/Staka-livres-sub003/internal/datamodels/order"
	"github.com/krismos64/Staka-livres-sub003/internal/datamodels/outbox"
	"github.com/krismos64/Staka-livres-sub003/internal/datamodels/pendingorder"
	"github.com/krismos64/Staka-livres-sub003/internal/datamodels/servicepack"
	"github.com/krismos64/Staka-livres-sub003/internal/datamodels/user"
	"github.com/krismos64/Staka-livres-sub003/internal/notify"
)

// memState is the shared in-memory backing of all fake repositories,
// mirroring the invariants the MySQL layer enforces (unique session
// index, conditional claim, transactional task writes).
type memState struct {
	mu     sync.Mutex
	nextID int64

	users         map[int64]*user.User
	orders        map[int64]*order.Order
	pendings      map[int64]*pendingorder.PendingOrder
	packs         map[int64]*servicepack.ServicePack
	tasks         []*outbox.Task
	invoices      []*invoice.Invoice
	files         []*file.File
	messages      []*conversation.Message
	notifications []*notification.Notification

	// failure hooks
	failUserCreate  error
	failMaterialize error
	failInvoiceSave error
}

func newMemState() *memState {
	return &memState{
		users:    make(map[int64]*user.User),
		orders:   make(map[int64]*order.Order),
		pendings: make(map[int64]*pendingorder.PendingOrder),
		packs:    make(map[int64]*servicepack.ServicePack),
	}
}

func (s *memState) id() int64 {
	s.nextID++
	return s.nextID
}

// --- users ---

type fakeUsers struct{ s *memState }

func (f *fakeUsers) GetByID(_ context.Context, id int64) (*user.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if u, ok := f.s.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, user.ErrNotFound
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*user.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, u := range f.s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, user.ErrNotFound
}

func (f *fakeUsers) Create(_ context.Context, u *user.User) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.failUserCreate != nil {
		return f.s.failUserCreate
	}
	for _, existing := range f.s.users {
		if existing.Email == u.Email {
			return user.ErrDuplicateEmail
		}
	}
	u.ID = f.s.id()
	cp := *u
	f.s.users[u.ID] = &cp
	return nil
}

func (f *fakeUsers) Update(_ context.Context, u *user.User) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if _, ok := f.s.users[u.ID]; !ok {
		return user.ErrNotFound
	}
	cp := *u
	f.s.users[u.ID] = &cp
	return nil
}

func (f *fakeUsers) ListAll(_ context.Context) ([]*user.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []*user.User
	for _, u := range f.s.users {
		cp := *u
		out = append(out, &cp)
	}
	return out, nil
}

// --- orders ---

type fakeOrders struct{ s *memState }

func (f *fakeOrders) Create(_ context.Context, o *order.Order) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if o.CheckoutSessionID != "" && f.sessionTakenLocked(o.CheckoutSessionID) {
		return order.ErrDuplicateSession
	}
	o.ID = f.s.id()
	cp := *o
	f.s.orders[o.ID] = &cp
	return nil
}

func (f *fakeOrders) sessionTakenLocked(sessionID string) bool {
	for _, o := range f.s.orders {
		if o.CheckoutSessionID == sessionID {
			return true
		}
	}
	return false
}

func (f *fakeOrders) MaterializeGuest(_ context.Context, o *order.Order, tasks []*outbox.Task, pendingOrderID int64) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.failMaterialize != nil {
		return f.s.failMaterialize
	}
	if f.sessionTakenLocked(o.CheckoutSessionID) {
		return order.ErrDuplicateSession
	}
	o.ID = f.s.id()
	cp := *o
	f.s.orders[o.ID] = &cp
	for _, t := range tasks {
		t.ID = f.s.id()
		t.OrderID = o.ID
		f.s.tasks = append(f.s.tasks, t)
	}
	if p, ok := f.s.pendings[pendingOrderID]; ok {
		uid, oid := o.UserID, o.ID
		p.UserID = &uid
		p.OrderID = &oid
	}
	return nil
}

func (f *fakeOrders) MarkPaidWithTasks(_ context.Context, o *order.Order, tasks []*outbox.Task) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	stored, ok := f.s.orders[o.ID]
	if !ok {
		return order.ErrNotFound
	}
	*stored = *o
	for _, t := range tasks {
		t.ID = f.s.id()
		t.OrderID = o.ID
		f.s.tasks = append(f.s.tasks, t)
	}
	return nil
}

func (f *fakeOrders) SetPaymentFailed(_ context.Context, id int64) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	o, ok := f.s.orders[id]
	if !ok {
		return order.ErrNotFound
	}
	o.PaymentStatus = order.PaymentFailed
	return nil
}

func (f *fakeOrders) GetByID(_ context.Context, id int64) (*order.Order, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if o, ok := f.s.orders[id]; ok {
		cp := *o
		return &cp, nil
	}
	return nil, order.ErrNotFound
}

func (f *fakeOrders) GetByCheckoutSession(_ context.Context, sessionID string) (*order.Order, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, o := range f.s.orders {
		if o.CheckoutSessionID == sessionID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, order.ErrNotFound
}

func (f *fakeOrders) ListByUser(_ context.Context, userID int64) ([]*order.Order, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []*order.Order
	for _, o := range f.s.orders {
		if o.UserID == userID {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeOrders) ListRecent(_ context.Context, limit int) ([]*order.Order, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []*order.Order
	for _, o := range f.s.orders {
		cp := *o
		out = append(out, &cp)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// --- pending orders ---

type fakePendings struct{ s *memState }

func (f *fakePendings) Create(_ context.Context, p *pendingorder.PendingOrder) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	p.ID = f.s.id()
	cp := *p
	f.s.pendings[p.ID] = &cp
	return nil
}

func (f *fakePendings) GetByID(_ context.Context, id int64) (*pendingorder.PendingOrder, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if p, ok := f.s.pendings[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, pendingorder.ErrNotFound
}

func (f *fakePendings) GetUnprocessedBySession(_ context.Context, sessionID string) (*pendingorder.PendingOrder, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, p := range f.s.pendings {
		if p.CheckoutSessionID == sessionID && !p.IsProcessed {
			cp := *p
			return &cp, nil
		}
	}
	return nil, pendingorder.ErrNotFound
}

func (f *fakePendings) GetByActivationToken(_ context.Context, token string) (*pendingorder.PendingOrder, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, p := range f.s.pendings {
		if p.ActivationToken == token {
			cp := *p
			return &cp, nil
		}
	}
	return nil, pendingorder.ErrNotFound
}

func (f *fakePendings) Claim(_ context.Context, id int64) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	p, ok := f.s.pendings[id]
	if !ok || p.IsProcessed {
		return false, nil
	}
	p.IsProcessed = true
	return true, nil
}

func (f *fakePendings) Release(_ context.Context, id int64) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if p, ok := f.s.pendings[id]; ok {
		p.IsProcessed = false
	}
	return nil
}

func (f *fakePendings) UpdateActivation(_ context.Context, id int64, token string, expiry time.Time) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	p, ok := f.s.pendings[id]
	if !ok {
		return pendingorder.ErrNotFound
	}
	p.ActivationToken = token
	p.ActivationExpiry = expiry
	return nil
}

func (f *fakePendings) ListUnprocessed(_ context.Context, limit int) ([]*pendingorder.PendingOrder, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []*pendingorder.PendingOrder
	for _, p := range f.s.pendings {
		if !p.IsProcessed {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

// --- service packs ---

type fakePacks struct{ s *memState }

func (f *fakePacks) GetByID(_ context.Context, id int64) (*servicepack.ServicePack, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if p, ok := f.s.packs[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, servicepack.ErrNotFound
}

func (f *fakePacks) ListActive(_ context.Context) ([]*servicepack.ServicePack, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []*servicepack.ServicePack
	for _, p := range f.s.packs {
		if p.Active {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakePacks) Create(_ context.Context, p *servicepack.ServicePack) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	p.ID = f.s.id()
	cp := *p
	f.s.packs[p.ID] = &cp
	return nil
}

func (f *fakePacks) Update(_ context.Context, p *servicepack.ServicePack) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if _, ok := f.s.packs[p.ID]; !ok {
		return servicepack.ErrNotFound
	}
	cp := *p
	f.s.packs[p.ID] = &cp
	return nil
}

// --- outbox ---

type fakeOutbox struct{ s *memState }

func (f *fakeOutbox) ClaimDue(_ context.Context, now time.Time, limit int) ([]*outbox.Task, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []*outbox.Task
	for _, t := range f.s.tasks {
		if t.Status == outbox.StatusPending && !t.AvailableAt.After(now) {
			t.AvailableAt = now.Add(2 * time.Minute)
			cp := *t
			out = append(out, &cp)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeOutbox) MarkDone(_ context.Context, id int64) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, t := range f.s.tasks {
		if t.ID == id {
			t.Status = outbox.StatusDone
			return nil
		}
	}
	return outbox.ErrNotFound
}

func (f *fakeOutbox) MarkFailed(_ context.Context, id int64, taskErr string, retryAt time.Time, final bool) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, t := range f.s.tasks {
		if t.ID == id {
			t.Attempts++
			t.LastError = taskErr
			t.AvailableAt = retryAt
			if final {
				t.Status = outbox.StatusFailed
			}
			return nil
		}
	}
	return outbox.ErrNotFound
}

func (f *fakeOutbox) Requeue(_ context.Context, id int64) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, t := range f.s.tasks {
		if t.ID == id {
			t.Status = outbox.StatusPending
			t.AvailableAt = time.Now()
			return nil
		}
	}
	return outbox.ErrNotFound
}

func (f *fakeOutbox) GetByID(_ context.Context, id int64) (*outbox.Task, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, t := range f.s.tasks {
		if t.ID == id {
			cp := *t
			return &cp, nil
		}
	}
	return nil, outbox.ErrNotFound
}

func (f *fakeOutbox) ListRecent(_ context.Context, limit int) ([]*outbox.Task, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []*outbox.Task
	for _, t := range f.s.tasks {
		cp := *t
		out = append(out, &cp)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeOutbox) ListByOrder(_ context.Context, orderID int64) ([]*outbox.Task, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []*outbox.Task
	for _, t := range f.s.tasks {
		if t.OrderID == orderID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

// --- invoices ---

type fakeInvoices struct{ s *memState }

func (f *fakeInvoices) Create(_ context.Context, inv *invoice.Invoice) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.failInvoiceSave != nil {
		return f.s.failInvoiceSave
	}
	inv.ID = f.s.id()
	cp := *inv
	f.s.invoices = append(f.s.invoices, &cp)
	return nil
}

func (f *fakeInvoices) GetByOrderID(_ context.Context, orderID int64) (*invoice.Invoice, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, inv := range f.s.invoices {
		if inv.OrderID == orderID {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, invoice.ErrNotFound
}

func (f *fakeInvoices) ExistsForOrder(_ context.Context, orderID int64) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, inv := range f.s.invoices {
		if inv.OrderID == orderID {
			return true, nil
		}
	}
	return false, nil
}

// --- files ---

type fakeFiles struct{ s *memState }

func (f *fakeFiles) Create(_ context.Context, rec *file.File) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	rec.ID = f.s.id()
	cp := *rec
	f.s.files = append(f.s.files, &cp)
	return nil
}

func (f *fakeFiles) ListPendingByPendingOrder(_ context.Context, pendingOrderID int64) ([]*file.File, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []*file.File
	marker := file.PendingDescription(pendingOrderID, "")
	for _, rec := range f.s.files {
		if rec.Description == marker || strings.HasPrefix(rec.Description, marker+"|") {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeFiles) Update(_ context.Context, rec *file.File) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, stored := range f.s.files {
		if stored.ID == rec.ID {
			*stored = *rec
			return nil
		}
	}
	return errors.New("file not found")
}

func (f *fakeFiles) ListByOrder(_ context.Context, orderID int64) ([]*file.File, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []*file.File
	for _, rec := range f.s.files {
		if rec.OrderID != nil && *rec.OrderID == orderID {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

// --- conversation ---

type fakeMessages struct{ s *memState }

func (f *fakeMessages) Create(_ context.Context, m *conversation.Message) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	m.ID = f.s.id()
	cp := *m
	f.s.messages = append(f.s.messages, &cp)
	return nil
}

func (f *fakeMessages) ListByUser(_ context.Context, userID, afterID int64, limit int) ([]*conversation.Message, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []*conversation.Message
	for _, m := range f.s.messages {
		if m.UserID == userID && m.ID > afterID {
			cp := *m
			out = append(out, &cp)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// --- notifications ---

type fakeNotifications struct{ s *memState }

func (f *fakeNotifications) Create(_ context.Context, n *notification.Notification) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	n.ID = f.s.id()
	cp := *n
	f.s.notifications = append(f.s.notifications, &cp)
	return nil
}

func (f *fakeNotifications) ListByAudience(_ context.Context, audience string, limit int) ([]*notification.Notification, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []*notification.Notification
	for _, n := range f.s.notifications {
		if n.Audience == audience {
			cp := *n
			out = append(out, &cp)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeNotifications) ListByUser(_ context.Context, userID int64, limit int) ([]*notification.Notification, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []*notification.Notification
	for _, n := range f.s.notifications {
		if n.UserID != nil && *n.UserID == userID {
			cp := *n
			out = append(out, &cp)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeNotifications) MarkRead(_ context.Context, id int64) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, n := range f.s.notifications {
		if n.ID == id {
			now := time.Now()
			n.ReadAt = &now
			return nil
		}
	}
	return errors.New("notification not found")
}

// recordingMailer captures outbound mail.
type recordingMailer struct {
	mu   sync.Mutex
	sent []notify.Email
}

func (m *recordingMailer) Send(_ context.Context, e notify.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, e)
	return nil
}

func (m *recordingMailer) to() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.sent {
		out = append(out, e.To)
	}
	return out
}
