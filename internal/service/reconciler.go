package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/google/uuid"

	"github.com/krismos64/Staka-livres-sub003/internal/datamodels/order"
	"github.com/krismos64/Staka-livres-sub003/internal/datamodels/outbox"
	"github.com/krismos64/Staka-livres-sub003/internal/datamodels/pendingorder"
	"github.com/krismos64/Staka-livres-sub003/internal/datamodels/servicepack"
	"github.com/krismos64/Staka-livres-sub003/internal/datamodels/user"
	"github.com/krismos64/Staka-livres-sub003/internal/infra/mq"
	"github.com/krismos64/Staka-livres-sub003/internal/payments"
)

// ErrUnknownSession — the checkout session matches neither an order nor
// an unprocessed pending order. Terminal by policy: the provider must
// not retry an event that does not belong to us (maps to HTTP 404).
var ErrUnknownSession = errors.New("checkout session matches no order or pending order")

// Outcome of handling one verified event.
type Outcome string

const (
	// OutcomeHandled the event changed business state.
	OutcomeHandled Outcome = "handled"
	// OutcomeDuplicate a redelivery of already-applied work; no-op.
	OutcomeDuplicate Outcome = "duplicate"
	// OutcomeIgnored the event is acknowledged without acting on it.
	OutcomeIgnored Outcome = "ignored"
)

// ReconcilerDeps wires the engine. Repositories are required; Guard,
// Effects, MQ and Monitor are optional.
type ReconcilerDeps struct {
	Orders   order.Repository
	Pendings pendingorder.Repository
	Users    user.Repository
	Packs    servicepack.Repository

	Guard   *EventGuard
	Effects *SideEffectRunner
	MQConn  *amqp.Connection
	Monitor *Monitor
}

// Reconciler converts asynchronous payment-provider events into durable
// business state, exactly once. The durable anchors are the atomic
// pending-order claim, the unique checkout-session index and the order
// payment status; everything else (redis guard, MQ wakeup) is advisory.
type Reconciler struct {
	orders   order.Repository
	pendings pendingorder.Repository
	users    user.Repository
	packs    servicepack.Repository

	guard   *EventGuard
	effects *SideEffectRunner
	mqConn  *amqp.Connection
	monitor *Monitor
}

// NewReconciler creates the engine.
func NewReconciler(deps ReconcilerDeps) *Reconciler {
	if deps.Monitor == nil {
		deps.Monitor = NewMonitor()
	}
	return &Reconciler{
		orders:   deps.Orders,
		pendings: deps.Pendings,
		users:    deps.Users,
		packs:    deps.Packs,
		guard:    deps.Guard,
		effects:  deps.Effects,
		mqConn:   deps.MQConn,
		monitor:  deps.Monitor,
	}
}

// Monitor exposes the engine's counters.
func (s *Reconciler) Monitor() *Monitor {
	return s.monitor
}

// HandleEvent routes one verified event. Errors other than
// ErrUnknownSession are transient: the caller answers 500 so the
// provider redelivers.
func (s *Reconciler) HandleEvent(ctx context.Context, ev payments.Event) (Outcome, error) {
	s.monitor.RecordWebhookReceived()

	switch e := ev.(type) {
	case payments.CheckoutSessionCompleted:
		return s.handleCheckoutCompleted(ctx, e)
	case payments.PaymentIntentFailed:
		return s.handlePaymentFailed(ctx, e)
	case payments.InvoicePaymentSucceeded:
		zap.L().Info("invoice payment succeeded (informational)",
			zap.String("event_id", e.EventID))
		return OutcomeIgnored, nil
	case payments.InvoicePaymentFailed:
		zap.L().Info("invoice payment failed (informational)",
			zap.String("event_id", e.EventID))
		return OutcomeIgnored, nil
	case payments.Unhandled:
		s.monitor.RecordWebhookUnhandled()
		zap.L().Info("unhandled event type acknowledged",
			zap.String("event_id", e.EventID),
			zap.String("type", e.Type))
		return OutcomeIgnored, nil
	default:
		zap.L().Warn("event variant without handler")
		return OutcomeIgnored, nil
	}
}

func (s *Reconciler) handleCheckoutCompleted(ctx context.Context, e payments.CheckoutSessionCompleted) (Outcome, error) {
	if !s.guard.Begin(e.EventID) {
		s.monitor.RecordWebhookDuplicate()
		zap.L().Info("event suppressed by dedupe guard",
			zap.String("event_id", e.EventID),
			zap.String("session_id", e.SessionID))
		return OutcomeDuplicate, nil
	}

	o, err := s.orders.GetByCheckoutSession(ctx, e.SessionID)
	switch {
	case err == nil:
		return s.applyToExistingOrder(ctx, e, o)
	case errors.Is(err, order.ErrNotFound):
		return s.materializeGuestOrder(ctx, e)
	default:
		s.fail(e.EventID)
		return OutcomeHandled, err
	}
}

// applyToExistingOrder is the path for orders created first by a
// logged-in customer, where checkout was only the payment step.
func (s *Reconciler) applyToExistingOrder(ctx context.Context, e payments.CheckoutSessionCompleted, o *order.Order) (Outcome, error) {
	if o.PaymentStatus == order.PaymentPaid {
		s.guard.Done(e.EventID)
		s.monitor.RecordWebhookDuplicate()
		zap.L().Info("order already paid, redelivery ignored",
			zap.Int64("order_id", o.ID),
			zap.String("event_id", e.EventID))
		return OutcomeDuplicate, nil
	}

	if e.PaymentStatus != "" && e.PaymentStatus != "paid" {
		// Logged, not acted on: the transition is unconditional.
		zap.L().Warn("provider payment_status is not paid",
			zap.Int64("order_id", o.ID),
			zap.String("payment_status", e.PaymentStatus))
	}
	s.checkAmount(o, e.AmountTotal, o.AmountCents)

	o.PaymentStatus = order.PaymentPaid
	o.Status = order.StatusInProgress

	tasks := []*outbox.Task{
		s.newTask(outbox.KindInvoice, o.UserID, nil),
		s.newTask(outbox.KindStaffNotification, o.UserID, nil),
		s.newTask(outbox.KindClientNotification, o.UserID, nil),
	}
	if err := s.orders.MarkPaidWithTasks(ctx, o, tasks); err != nil {
		s.fail(e.EventID)
		return OutcomeHandled, err
	}

	zap.L().Info("existing order reconciled as paid",
		zap.Int64("order_id", o.ID),
		zap.String("session_id", e.SessionID),
		zap.String("event_id", e.EventID))
	s.afterCommit(ctx, e.EventID)
	return OutcomeHandled, nil
}

// materializeGuestOrder is the guest path: claim the pending order,
// provision the account, create the order, all anchored on the atomic
// claim so a concurrent duplicate delivery no-ops.
func (s *Reconciler) materializeGuestOrder(ctx context.Context, e payments.CheckoutSessionCompleted) (Outcome, error) {
	p, err := s.pendings.GetUnprocessedBySession(ctx, e.SessionID)
	if err != nil {
		s.guard.Abort(e.EventID)
		if errors.Is(err, pendingorder.ErrNotFound) {
			zap.L().Warn("checkout session resolves to nothing",
				zap.String("session_id", e.SessionID),
				zap.String("event_id", e.EventID))
			return OutcomeHandled, ErrUnknownSession
		}
		s.monitor.RecordWebhookFailure()
		return OutcomeHandled, err
	}

	won, err := s.pendings.Claim(ctx, p.ID)
	if err != nil {
		s.fail(e.EventID)
		return OutcomeHandled, err
	}
	if !won {
		s.guard.Abort(e.EventID)
		s.monitor.RecordWebhookDuplicate()
		zap.L().Info("pending order already claimed, duplicate delivery",
			zap.Int64("pending_order_id", p.ID),
			zap.String("event_id", e.EventID))
		return OutcomeDuplicate, nil
	}

	u, created, err := s.provisionUser(ctx, p)
	if err != nil {
		s.releaseClaim(ctx, p.ID)
		s.fail(e.EventID)
		return OutcomeHandled, err
	}

	pack, err := s.packs.GetByID(ctx, p.ServicePackID)
	if err != nil {
		s.releaseClaim(ctx, p.ID)
		s.fail(e.EventID)
		return OutcomeHandled, err
	}

	description := pack.Description
	if p.Description != "" {
		description += "\n\n" + p.Description
	}

	o := &order.Order{
		UserID:            u.ID,
		Title:             pack.Name,
		Description:       description,
		Status:            order.StatusPaid,
		PaymentStatus:     order.PaymentPaid,
		CheckoutSessionID: e.SessionID,
		AmountCents:       e.AmountTotal,
		PageCount:         p.PageCount,
		ServicePackID:     pack.ID,
	}
	s.checkAmount(o, e.AmountTotal, pack.PriceCents)

	tasks := []*outbox.Task{
		s.newTask(outbox.KindInvoice, u.ID, nil),
		s.newTask(outbox.KindStaffNotification, u.ID, nil),
		s.newTask(outbox.KindFileMigration, u.ID, &p.ID),
	}
	if created {
		tasks = append(tasks,
			s.newTask(outbox.KindActivationEmail, u.ID, &p.ID),
			s.newTask(outbox.KindWelcomeConversation, u.ID, nil),
		)
	} else {
		tasks = append(tasks, s.newTask(outbox.KindClientNotification, u.ID, nil))
	}

	err = s.orders.MaterializeGuest(ctx, o, tasks, p.ID)
	if errors.Is(err, order.ErrDuplicateSession) {
		// Another delivery inserted the order between our lookup and
		// this write. Its claim stands; nothing to undo.
		s.guard.Abort(e.EventID)
		s.monitor.RecordWebhookDuplicate()
		zap.L().Warn("session materialized concurrently, duplicate delivery",
			zap.String("session_id", e.SessionID),
			zap.String("event_id", e.EventID))
		return OutcomeDuplicate, nil
	}
	if err != nil {
		s.releaseClaim(ctx, p.ID)
		s.fail(e.EventID)
		return OutcomeHandled, err
	}

	zap.L().Info("guest order materialized",
		zap.Int64("order_id", o.ID),
		zap.Int64("user_id", u.ID),
		zap.Bool("new_account", created),
		zap.String("session_id", e.SessionID),
		zap.String("event_id", e.EventID))
	s.afterCommit(ctx, e.EventID)
	return OutcomeHandled, nil
}

// provisionUser finds the account by the pending order's email or
// creates it inactive. A returning customer who went through the guest
// flow keeps their account untouched.
func (s *Reconciler) provisionUser(ctx context.Context, p *pendingorder.PendingOrder) (*user.User, bool, error) {
	u, err := s.users.GetByEmail(ctx, p.Email)
	if err == nil {
		return u, false, nil
	}
	if !errors.Is(err, user.ErrNotFound) {
		return nil, false, err
	}

	hash := p.PasswordHash
	if hash == "" || hash == pendingorder.PasswordPendingActivation {
		// The sentinel must never become a usable credential: hash a
		// random placeholder until the activation flow sets a real one.
		raw, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.DefaultCost)
		if err != nil {
			return nil, false, err
		}
		hash = string(raw)
	}

	u = &user.User{
		Name:         p.Name,
		Email:        p.Email,
		PasswordHash: hash,
		IsActive:     false,
		Role:         user.RoleClient,
	}
	if err := s.users.Create(ctx, u); err != nil {
		// A concurrent delivery may have created the account first.
		if existing, lookupErr := s.users.GetByEmail(ctx, p.Email); lookupErr == nil {
			return existing, false, nil
		}
		return nil, false, err
	}
	return u, true, nil
}

func (s *Reconciler) handlePaymentFailed(ctx context.Context, e payments.PaymentIntentFailed) (Outcome, error) {
	if !e.HasOrderID {
		zap.L().Info("payment failure without order reference",
			zap.String("event_id", e.EventID))
		return OutcomeIgnored, nil
	}
	err := s.orders.SetPaymentFailed(ctx, e.OrderID)
	if errors.Is(err, order.ErrNotFound) {
		zap.L().Info("payment failure for unknown order",
			zap.Int64("order_id", e.OrderID),
			zap.String("event_id", e.EventID))
		return OutcomeIgnored, nil
	}
	if err != nil {
		s.monitor.RecordWebhookFailure()
		return OutcomeHandled, err
	}
	s.monitor.RecordWebhookHandled()
	zap.L().Info("order marked payment-failed",
		zap.Int64("order_id", e.OrderID),
		zap.String("event_id", e.EventID))
	return OutcomeHandled, nil
}

// checkAmount logs and flags a provider/record total divergence without
// blocking the transition. Flagged orders surface in the admin list for
// manual reconciliation.
func (s *Reconciler) checkAmount(o *order.Order, providerTotal, expected int64) {
	if providerTotal <= 0 || expected <= 0 || providerTotal == expected {
		return
	}
	o.AmountMismatch = true
	s.monitor.RecordAmountMismatch()
	zap.L().Warn("provider amount differs from recorded amount",
		zap.String("session_id", o.CheckoutSessionID),
		zap.Int64("provider_total", providerTotal),
		zap.Int64("expected", expected))
}

func (s *Reconciler) newTask(kind string, userID int64, pendingOrderID *int64) *outbox.Task {
	return &outbox.Task{
		Kind:           kind,
		UserID:         userID,
		PendingOrderID: pendingOrderID,
		Status:         outbox.StatusPending,
		AvailableAt:    time.Now(),
	}
}

// afterCommit runs the advisory post-commit steps: nudge the worker,
// drain once inline, mark the event done.
func (s *Reconciler) afterCommit(ctx context.Context, eventID string) {
	s.publishWakeup(ctx)
	if s.effects != nil {
		if _, err := s.effects.Drain(ctx); err != nil {
			zap.L().Warn("inline side-effect drain failed", zap.Error(err))
		}
	}
	s.guard.Done(eventID)
	s.monitor.RecordWebhookHandled()
}

func (s *Reconciler) fail(eventID string) {
	s.guard.Abort(eventID)
	s.monitor.RecordWebhookFailure()
}

func (s *Reconciler) releaseClaim(ctx context.Context, pendingOrderID int64) {
	if err := s.pendings.Release(ctx, pendingOrderID); err != nil {
		zap.L().Error("failed to release pending-order claim",
			zap.Int64("pending_order_id", pendingOrderID),
			zap.Error(err))
	}
}

type wakeupMessage struct {
	Reason string `json:"reason"`
}

// publishWakeup nudges the outbox worker. Best-effort: the worker also
// polls, so failures here only delay side effects.
func (s *Reconciler) publishWakeup(ctx context.Context) {
	if s.mqConn == nil {
		return
	}
	ch, err := s.mqConn.Channel()
	if err != nil {
		zap.L().Warn("mq channel open failed", zap.Error(err))
		return
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(mq.SideEffectsQueue, true, false, false, false, nil); err != nil {
		zap.L().Warn("mq queue declare failed", zap.Error(err))
		return
	}

	body, err := json.Marshal(&wakeupMessage{Reason: "payment"})
	if err != nil {
		return
	}
	if err := ch.PublishWithContext(ctx, "", mq.SideEffectsQueue, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	}); err != nil {
		zap.L().Warn("mq publish failed", zap.Error(err))
	}
}
