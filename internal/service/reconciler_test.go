package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/krismos64/Staka-livres-sub003/internal/config"
	"github.com/krismos64/Staka-livres-sub003/internal/datamodels/order"
	"github.com/krismos64/Staka-livres-sub003/internal/datamodels/outbox"
	"github.com/krismos64/Staka-livres-sub003/internal/datamodels/pendingorder"
	"github.com/krismos64/Staka-livres-sub003/internal/datamodels/servicepack"
	"github.com/krismos64/Staka-livres-sub003/internal/datamodels/user"
	"github.com/krismos64/Staka-livres-sub003/internal/notify"
	"github.com/krismos64/Staka-livres-sub003/internal/payments"
	"github.com/krismos64/Staka-livres-sub003/internal/pdf"
)

func newTestReconciler(s *memState) *Reconciler {
	return NewReconciler(ReconcilerDeps{
		Orders:   &fakeOrders{s},
		Pendings: &fakePendings{s},
		Users:    &fakeUsers{s},
		Packs:    &fakePacks{s},
	})
}

func seedPack(s *memState) *servicepack.ServicePack {
	p := &servicepack.ServicePack{
		Name:        "Pack Relecture Avancée",
		Description: "Correction complète avec retours sur le style.",
		PriceCents:  48000,
		Active:      true,
	}
	s.mu.Lock()
	p.ID = s.id()
	s.packs[p.ID] = p
	s.mu.Unlock()
	return p
}

func seedPending(s *memState, packID int64, session string) *pendingorder.PendingOrder {
	p := &pendingorder.PendingOrder{
		Name:              "Alice Brun",
		Email:             "a@b.com",
		PasswordHash:      pendingorder.PasswordPendingActivation,
		ServicePackID:     packID,
		CheckoutSessionID: session,
		Description:       "Roman de 320 pages.",
		PageCount:         320,
		ActivationToken:   "tok-test",
		ActivationExpiry:  time.Now().Add(72 * time.Hour),
	}
	s.mu.Lock()
	p.ID = s.id()
	s.pendings[p.ID] = p
	s.mu.Unlock()
	return p
}

func checkoutEvent(id, session string, amount int64) payments.CheckoutSessionCompleted {
	return payments.CheckoutSessionCompleted{
		EventID:       id,
		SessionID:     session,
		AmountTotal:   amount,
		PaymentStatus: "paid",
	}
}

func taskKinds(s *memState) map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int)
	for _, t := range s.tasks {
		out[t.Kind]++
	}
	return out
}

func TestGuestCheckoutMaterializesOrder(t *testing.T) {
	s := newMemState()
	pack := seedPack(s)
	pending := seedPending(s, pack.ID, "cs_123")
	r := newTestReconciler(s)

	outcome, err := r.HandleEvent(context.Background(), checkoutEvent("evt_1", "cs_123", 48000))
	if err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if outcome != OutcomeHandled {
		t.Fatalf("outcome = %s, want handled", outcome)
	}

	o, err := (&fakeOrders{s}).GetByCheckoutSession(context.Background(), "cs_123")
	if err != nil {
		t.Fatalf("order not materialized: %v", err)
	}
	if o.PaymentStatus != order.PaymentPaid || o.Status != order.StatusPaid {
		t.Errorf("order status = %s/%s, want paid/paid", o.Status, o.PaymentStatus)
	}
	if o.AmountCents != 48000 || o.PageCount != 320 {
		t.Errorf("order amount/pages = %d/%d", o.AmountCents, o.PageCount)
	}
	if o.AmountMismatch {
		t.Error("amount mismatch flagged on matching totals")
	}

	u, err := (&fakeUsers{s}).GetByEmail(context.Background(), "a@b.com")
	if err != nil {
		t.Fatalf("user not provisioned: %v", err)
	}
	if u.IsActive {
		t.Error("provisioned guest user must start inactive")
	}
	if u.PasswordHash == pendingorder.PasswordPendingActivation || u.PasswordHash == "" {
		t.Error("sentinel password must not be stored as a credential")
	}
	if o.UserID != u.ID {
		t.Errorf("order owner = %d, want %d", o.UserID, u.ID)
	}

	p, _ := (&fakePendings{s}).GetByID(context.Background(), pending.ID)
	if !p.IsProcessed {
		t.Error("pending order not marked processed")
	}
	if p.UserID == nil || *p.UserID != u.ID || p.OrderID == nil || *p.OrderID != o.ID {
		t.Error("pending order not linked back to user and order")
	}

	kinds := taskKinds(s)
	for _, k := range []string{outbox.KindInvoice, outbox.KindStaffNotification, outbox.KindFileMigration, outbox.KindActivationEmail, outbox.KindWelcomeConversation} {
		if kinds[k] != 1 {
			t.Errorf("task %s count = %d, want 1", k, kinds[k])
		}
	}
	if kinds[outbox.KindClientNotification] != 0 {
		t.Error("client notification queued for a brand-new account")
	}
}

func TestDuplicateDeliveryIsNoop(t *testing.T) {
	s := newMemState()
	pack := seedPack(s)
	seedPending(s, pack.ID, "cs_123")
	r := newTestReconciler(s)
	ctx := context.Background()

	if _, err := r.HandleEvent(ctx, checkoutEvent("evt_1", "cs_123", 48000)); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	firstKinds := taskKinds(s)

	outcome, err := r.HandleEvent(ctx, checkoutEvent("evt_1b", "cs_123", 48000))
	if err != nil {
		t.Fatalf("second delivery: %v", err)
	}
	if outcome != OutcomeDuplicate {
		t.Fatalf("outcome = %s, want duplicate", outcome)
	}

	s.mu.Lock()
	orderCount := len(s.orders)
	userCount := len(s.users)
	s.mu.Unlock()
	if orderCount != 1 {
		t.Errorf("orders = %d, want 1", orderCount)
	}
	if userCount != 1 {
		t.Errorf("users = %d, want 1", userCount)
	}
	for k, n := range taskKinds(s) {
		if n != firstKinds[k] {
			t.Errorf("task %s duplicated: %d", k, n)
		}
	}
}

func TestReturningCustomerKeepsAccount(t *testing.T) {
	s := newMemState()
	pack := seedPack(s)
	seedPending(s, pack.ID, "cs_ret")

	existing := &user.User{Name: "Alice Brun", Email: "a@b.com", PasswordHash: "$2a$10$real", IsActive: true, Role: user.RoleClient}
	s.mu.Lock()
	existing.ID = s.id()
	s.users[existing.ID] = existing
	s.mu.Unlock()

	r := newTestReconciler(s)
	if _, err := r.HandleEvent(context.Background(), checkoutEvent("evt_2", "cs_ret", 48000)); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	u, _ := (&fakeUsers{s}).GetByID(context.Background(), existing.ID)
	if !u.IsActive || u.PasswordHash != "$2a$10$real" {
		t.Error("existing account was modified by the guest path")
	}

	kinds := taskKinds(s)
	if kinds[outbox.KindActivationEmail] != 0 || kinds[outbox.KindWelcomeConversation] != 0 {
		t.Error("activation/welcome queued for an existing account")
	}
	if kinds[outbox.KindClientNotification] != 1 {
		t.Errorf("client notification count = %d, want 1", kinds[outbox.KindClientNotification])
	}
}

func TestExistingOrderMarkedPaid(t *testing.T) {
	s := newMemState()
	u := &user.User{Name: "Marc", Email: "m@c.fr", PasswordHash: "x", IsActive: true, Role: user.RoleClient}
	s.mu.Lock()
	u.ID = s.id()
	s.users[u.ID] = u
	o := &order.Order{
		UserID:            u.ID,
		Title:             "Relecture mémoire",
		Status:            order.StatusAwaiting,
		PaymentStatus:     order.PaymentUnpaid,
		CheckoutSessionID: "cs_known",
		AmountCents:       35000,
		PageCount:         90,
	}
	o.ID = s.id()
	s.orders[o.ID] = o
	s.mu.Unlock()

	r := newTestReconciler(s)
	outcome, err := r.HandleEvent(context.Background(), checkoutEvent("evt_3", "cs_known", 35000))
	if err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if outcome != OutcomeHandled {
		t.Fatalf("outcome = %s, want handled", outcome)
	}

	got, _ := (&fakeOrders{s}).GetByID(context.Background(), o.ID)
	if got.PaymentStatus != order.PaymentPaid || got.Status != order.StatusInProgress {
		t.Errorf("order = %s/%s, want in_progress/paid", got.Status, got.PaymentStatus)
	}

	kinds := taskKinds(s)
	if kinds[outbox.KindInvoice] != 1 || kinds[outbox.KindStaffNotification] != 1 || kinds[outbox.KindClientNotification] != 1 {
		t.Errorf("unexpected task set: %v", kinds)
	}

	// Redelivery after the transition is a no-op.
	outcome, err = r.HandleEvent(context.Background(), checkoutEvent("evt_3b", "cs_known", 35000))
	if err != nil || outcome != OutcomeDuplicate {
		t.Fatalf("redelivery = %s, %v; want duplicate, nil", outcome, err)
	}
}

func TestUnknownSessionIsTerminal(t *testing.T) {
	s := newMemState()
	r := newTestReconciler(s)

	_, err := r.HandleEvent(context.Background(), checkoutEvent("evt_4", "cs_ghost", 1000))
	if !errors.Is(err, ErrUnknownSession) {
		t.Fatalf("err = %v, want ErrUnknownSession", err)
	}
}

func TestAmountMismatchFlagsOrder(t *testing.T) {
	s := newMemState()
	pack := seedPack(s)
	seedPending(s, pack.ID, "cs_mismatch")
	r := newTestReconciler(s)

	// Provider reports 50000 where the pack costs 48000.
	if _, err := r.HandleEvent(context.Background(), checkoutEvent("evt_5", "cs_mismatch", 50000)); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	o, err := (&fakeOrders{s}).GetByCheckoutSession(context.Background(), "cs_mismatch")
	if err != nil {
		t.Fatalf("order not materialized: %v", err)
	}
	if !o.AmountMismatch {
		t.Error("mismatch not flagged")
	}
	if o.PaymentStatus != order.PaymentPaid {
		t.Error("mismatch must not block the transition")
	}
	if r.Monitor().Snapshot().AmountMismatches != 1 {
		t.Error("mismatch counter not incremented")
	}
}

func TestProvisioningFailureReleasesClaim(t *testing.T) {
	s := newMemState()
	pack := seedPack(s)
	pending := seedPending(s, pack.ID, "cs_fail")
	s.failUserCreate = errors.New("db down")
	r := newTestReconciler(s)

	if _, err := r.HandleEvent(context.Background(), checkoutEvent("evt_6", "cs_fail", 48000)); err == nil {
		t.Fatal("expected error from failed provisioning")
	}

	p, _ := (&fakePendings{s}).GetByID(context.Background(), pending.ID)
	if p.IsProcessed {
		t.Error("claim not released after failure; redelivery would be lost")
	}

	// Redelivery succeeds once the fault clears.
	s.mu.Lock()
	s.failUserCreate = nil
	s.mu.Unlock()
	outcome, err := r.HandleEvent(context.Background(), checkoutEvent("evt_6b", "cs_fail", 48000))
	if err != nil || outcome != OutcomeHandled {
		t.Fatalf("redelivery = %s, %v; want handled, nil", outcome, err)
	}
}

func TestPaymentFailedTransitions(t *testing.T) {
	s := newMemState()
	o := &order.Order{UserID: 1, Title: "T", Status: order.StatusAwaiting, PaymentStatus: order.PaymentUnpaid}
	s.mu.Lock()
	o.ID = s.id()
	s.orders[o.ID] = o
	s.mu.Unlock()
	r := newTestReconciler(s)
	ctx := context.Background()

	outcome, err := r.HandleEvent(ctx, payments.PaymentIntentFailed{EventID: "evt_7", OrderID: o.ID, HasOrderID: true})
	if err != nil || outcome != OutcomeHandled {
		t.Fatalf("outcome = %s, %v", outcome, err)
	}
	got, _ := (&fakeOrders{s}).GetByID(ctx, o.ID)
	if got.PaymentStatus != order.PaymentFailed {
		t.Errorf("payment status = %s, want failed", got.PaymentStatus)
	}

	// No order reference: acknowledged, nothing to do.
	outcome, err = r.HandleEvent(ctx, payments.PaymentIntentFailed{EventID: "evt_8"})
	if err != nil || outcome != OutcomeIgnored {
		t.Fatalf("outcome = %s, %v; want ignored, nil", outcome, err)
	}

	// Unknown order: acknowledged so the provider stops retrying.
	outcome, err = r.HandleEvent(ctx, payments.PaymentIntentFailed{EventID: "evt_9", OrderID: 9999, HasOrderID: true})
	if err != nil || outcome != OutcomeIgnored {
		t.Fatalf("outcome = %s, %v; want ignored, nil", outcome, err)
	}
}

// failingMailer simulates an unreachable mail transport.
type failingMailer struct{}

func (failingMailer) Send(context.Context, notify.Email) error {
	return errors.New("smtp unreachable")
}

func TestSideEffectFailureDoesNotBlockReconciliation(t *testing.T) {
	s := newMemState()
	pack := seedPack(s)
	seedPending(s, pack.ID, "cs_mail")

	runner := NewSideEffectRunner(SideEffectDeps{
		Tasks:         &fakeOutbox{s},
		Orders:        &fakeOrders{s},
		Users:         &fakeUsers{s},
		Pendings:      &fakePendings{s},
		Invoices:      &fakeInvoices{s},
		Files:         &fakeFiles{s},
		Messages:      &fakeMessages{s},
		Notifications: &fakeNotifications{s},
		Mailer:        failingMailer{},
		Renderer:      pdf.TextRenderer{},
		Store:         newMemObjectStore(),
		App: &config.AppConfig{
			FrontendBaseURL: "http://localhost:3000",
			SupportEmail:    "support@staka-livres.fr",
		},
	})
	r := NewReconciler(ReconcilerDeps{
		Orders:   &fakeOrders{s},
		Pendings: &fakePendings{s},
		Users:    &fakeUsers{s},
		Packs:    &fakePacks{s},
		Effects:  runner,
	})

	// The inline drain hits the broken mailer, yet the event itself must
	// come back as handled so the provider gets its 200.
	outcome, err := r.HandleEvent(context.Background(), checkoutEvent("evt_mail", "cs_mail", 48000))
	if err != nil || outcome != OutcomeHandled {
		t.Fatalf("outcome = %s, %v; want handled, nil", outcome, err)
	}

	if _, err := (&fakeOrders{s}).GetByCheckoutSession(context.Background(), "cs_mail"); err != nil {
		t.Fatalf("order not durable despite side-effect failure: %v", err)
	}
	if _, err := (&fakeUsers{s}).GetByEmail(context.Background(), "a@b.com"); err != nil {
		t.Fatalf("user not durable despite side-effect failure: %v", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	pendingRetries := 0
	for _, task := range s.tasks {
		switch task.Kind {
		case outbox.KindInvoice, outbox.KindActivationEmail, outbox.KindStaffNotification:
			// Mail-dependent steps failed; they must stay queued.
			if task.Status != outbox.StatusPending || task.Attempts != 1 {
				t.Errorf("task %s = %s/%d attempts, want pending/1", task.Kind, task.Status, task.Attempts)
			}
			pendingRetries++
		case outbox.KindWelcomeConversation, outbox.KindFileMigration:
			if task.Status != outbox.StatusDone {
				t.Errorf("task %s = %s, want done", task.Kind, task.Status)
			}
		}
	}
	if pendingRetries != 3 {
		t.Errorf("mail-dependent tasks queued for retry = %d, want 3", pendingRetries)
	}
	// The invoice row itself was written before the mail step failed;
	// the retry will skip regeneration.
	if len(s.invoices) != 1 {
		t.Errorf("invoices = %d, want 1", len(s.invoices))
	}
}

func TestUnhandledEventAcknowledged(t *testing.T) {
	s := newMemState()
	r := newTestReconciler(s)

	outcome, err := r.HandleEvent(context.Background(), payments.Unhandled{EventID: "evt_10", Type: "customer.created"})
	if err != nil || outcome != OutcomeIgnored {
		t.Fatalf("outcome = %s, %v; want ignored, nil", outcome, err)
	}
	if r.Monitor().Snapshot().WebhookUnhandled != 1 {
		t.Error("unhandled counter not incremented")
	}
}
