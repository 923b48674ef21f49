package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/krismos64/Staka-livres-sub003/internal/config"
	"github.com/krismos64/Staka-livres-sub003/internal/datamodels/conversation"
	"github.com/krismos64/Staka-livres-sub003/internal/datamodels/file"
	"github.com/krismos64/Staka-livres-sub003/internal/datamodels/invoice"
	"github.com/krismos64/Staka-livres-sub003/internal/datamodels/notification"
	"github.com/krismos64/Staka-livres-sub003/internal/datamodels/order"
	"github.com/krismos64/Staka-livres-sub003/internal/datamodels/outbox"
	"github.com/krismos64/Staka-livres-sub003/internal/datamodels/pendingorder"
	"github.com/krismos64/Staka-livres-sub003/internal/datamodels/user"
	"github.com/krismos64/Staka-livres-sub003/internal/notify"
	"github.com/krismos64/Staka-livres-sub003/internal/pdf"
	"github.com/krismos64/Staka-livres-sub003/internal/storage"
)

// activationTokenTTL validity window for account-activation links.
const activationTokenTTL = 72 * time.Hour

// drainBatchSize tasks claimed per drain pass.
const drainBatchSize = 20

// SideEffectDeps wires the runner.
type SideEffectDeps struct {
	Tasks         outbox.Repository
	Orders        order.Repository
	Users         user.Repository
	Pendings      pendingorder.Repository
	Invoices      invoice.Repository
	Files         file.Repository
	Messages      conversation.Repository
	Notifications notification.Repository

	Mailer   notify.Mailer
	Renderer pdf.Renderer
	Store    storage.ObjectStore

	App     *config.AppConfig
	Monitor *Monitor
}

// SideEffectRunner drains the outbox: invoice generation, activation
// and notification emails, welcome-conversation seeding and temp-file
// migration. Every task is fault-isolated — one failing step never
// blocks its siblings or the already-committed order state.
type SideEffectRunner struct {
	tasks         outbox.Repository
	orders        order.Repository
	users         user.Repository
	pendings      pendingorder.Repository
	invoices      invoice.Repository
	files         file.Repository
	messages      conversation.Repository
	notifications notification.Repository

	mailer   notify.Mailer
	renderer pdf.Renderer
	store    storage.ObjectStore

	app     *config.AppConfig
	monitor *Monitor
}

// NewSideEffectRunner creates the runner.
func NewSideEffectRunner(deps SideEffectDeps) *SideEffectRunner {
	if deps.Monitor == nil {
		deps.Monitor = NewMonitor()
	}
	if deps.Mailer == nil {
		deps.Mailer = notify.LogMailer{}
	}
	return &SideEffectRunner{
		tasks:         deps.Tasks,
		orders:        deps.Orders,
		users:         deps.Users,
		pendings:      deps.Pendings,
		invoices:      deps.Invoices,
		files:         deps.Files,
		messages:      deps.Messages,
		notifications: deps.Notifications,
		mailer:        deps.Mailer,
		renderer:      deps.Renderer,
		store:         deps.Store,
		app:           deps.App,
		monitor:       deps.Monitor,
	}
}

// Drain claims due tasks and executes them, isolating each failure.
// Returns how many tasks completed.
func (r *SideEffectRunner) Drain(ctx context.Context) (int, error) {
	claimed, err := r.tasks.ClaimDue(ctx, time.Now(), drainBatchSize)
	if err != nil {
		return 0, err
	}

	completed := 0
	for _, t := range claimed {
		if err := r.execute(ctx, t); err != nil {
			r.monitor.RecordSideEffectFailure()
			zap.L().Error("side effect failed",
				zap.Int64("task_id", t.ID),
				zap.String("kind", t.Kind),
				zap.Int64("order_id", t.OrderID),
				zap.Int("attempts", t.Attempts+1),
				zap.Error(err))
			final := t.Attempts+1 >= outbox.MaxAttempts
			retryAt := time.Now().Add(retryBackoff(t.Attempts + 1))
			if mErr := r.tasks.MarkFailed(ctx, t.ID, err.Error(), retryAt, final); mErr != nil {
				zap.L().Error("failed to record task failure", zap.Error(mErr))
			}
			continue
		}
		if err := r.tasks.MarkDone(ctx, t.ID); err != nil {
			zap.L().Error("failed to mark task done", zap.Error(err))
			continue
		}
		r.monitor.RecordTaskProcessed()
		completed++
	}
	return completed, nil
}

// retryBackoff grows roughly exponentially: 1m, 2m, 4m, 8m...
func retryBackoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Minute << (attempt - 1)
}

func (r *SideEffectRunner) execute(ctx context.Context, t *outbox.Task) error {
	switch t.Kind {
	case outbox.KindInvoice:
		return r.generateInvoice(ctx, t)
	case outbox.KindActivationEmail:
		return r.sendActivationEmail(ctx, t)
	case outbox.KindWelcomeConversation:
		return r.seedWelcomeConversation(ctx, t)
	case outbox.KindStaffNotification:
		return r.notifyStaff(ctx, t)
	case outbox.KindClientNotification:
		return r.notifyClient(ctx, t)
	case outbox.KindFileMigration:
		return r.migrateFiles(ctx, t)
	default:
		return fmt.Errorf("unknown task kind %q", t.Kind)
	}
}

// generateInvoice renders, stores and records the invoice, then mails
// it. Skips cleanly when a previous attempt already created it.
func (r *SideEffectRunner) generateInvoice(ctx context.Context, t *outbox.Task) error {
	exists, err := r.invoices.ExistsForOrder(ctx, t.OrderID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	o, err := r.orders.GetByID(ctx, t.OrderID)
	if err != nil {
		return err
	}
	u, err := r.users.GetByID(ctx, t.UserID)
	if err != nil {
		return err
	}

	number := "FACT-" + strings.ToUpper(uuid.NewString()[:8])
	doc, err := r.renderer.RenderInvoice(ctx, pdf.InvoiceData{
		Number:       number,
		OrderTitle:   o.Title,
		CustomerName: u.Name,
		Email:        u.Email,
		AmountCents:  o.AmountCents,
		IssuedAt:     time.Now(),
	})
	if err != nil {
		return fmt.Errorf("render invoice: %w", err)
	}

	location, err := r.store.Put(ctx, fmt.Sprintf("invoices/%s.pdf", number), doc)
	if err != nil {
		return fmt.Errorf("store invoice: %w", err)
	}

	if err := r.invoices.Create(ctx, &invoice.Invoice{
		OrderID:     o.ID,
		Number:      number,
		AmountCents: o.AmountCents,
		PDFPath:     location,
	}); err != nil {
		return err
	}

	return r.mailer.Send(ctx, notify.Email{
		To:      u.Email,
		Subject: fmt.Sprintf("Votre facture %s", number),
		Body: fmt.Sprintf(
			"Bonjour %s,\n\nVotre paiement pour « %s » a bien été reçu.\nVous trouverez votre facture %s dans votre espace client.\n\nL'équipe Staka Livres",
			u.Name, o.Title, number),
	})
}

// sendActivationEmail mails the single-use activation link, renewing
// the token when the stored one expired.
func (r *SideEffectRunner) sendActivationEmail(ctx context.Context, t *outbox.Task) error {
	if t.PendingOrderID == nil {
		return errors.New("activation task without pending order")
	}
	p, err := r.pendings.GetByID(ctx, *t.PendingOrderID)
	if err != nil {
		return err
	}
	u, err := r.users.GetByID(ctx, t.UserID)
	if err != nil {
		return err
	}
	if u.IsActive {
		return nil
	}

	token := p.ActivationToken
	if token == "" || time.Now().After(p.ActivationExpiry) {
		token = uuid.NewString()
		if err := r.pendings.UpdateActivation(ctx, p.ID, token, time.Now().Add(activationTokenTTL)); err != nil {
			return err
		}
	}

	link := strings.TrimRight(r.app.FrontendBaseURL, "/") + "/activation?token=" + token
	return r.mailer.Send(ctx, notify.Email{
		To:      u.Email,
		Subject: "Activez votre compte Staka Livres",
		Body: fmt.Sprintf(
			"Bonjour %s,\n\nVotre commande est confirmée. Activez votre compte pour suivre votre projet :\n%s\n\nCe lien expire sous 72 heures.\n\nL'équipe Staka Livres",
			u.Name, link),
	})
}

// seedWelcomeConversation writes the two system messages for a new
// account. Skips when a previous attempt already seeded the thread.
func (r *SideEffectRunner) seedWelcomeConversation(ctx context.Context, t *outbox.Task) error {
	existing, err := r.messages.ListByUser(ctx, t.UserID, 0, 1)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	welcome := &conversation.Message{
		UserID:  t.UserID,
		Author:  conversation.AuthorSystem,
		Content: "Bienvenue chez Staka Livres ! Votre commande a bien été enregistrée et notre équipe va prendre en charge votre manuscrit.",
	}
	if err := r.messages.Create(ctx, welcome); err != nil {
		return err
	}
	next := &conversation.Message{
		UserID:  t.UserID,
		Author:  conversation.AuthorSystem,
		Content: "Prochaines étapes : un correcteur vous sera attribué sous 24h. Vous pouvez répondre à ce message pour toute question sur votre projet.",
	}
	return r.messages.Create(ctx, next)
}

func (r *SideEffectRunner) notifyStaff(ctx context.Context, t *outbox.Task) error {
	o, err := r.orders.GetByID(ctx, t.OrderID)
	if err != nil {
		return err
	}
	if err := r.notifications.Create(ctx, &notification.Notification{
		Audience: notification.AudienceStaff,
		OrderID:  o.ID,
		Title:    "Nouveau paiement reçu",
		Body:     fmt.Sprintf("Commande #%d « %s » payée (%.2f EUR).", o.ID, o.Title, float64(o.AmountCents)/100),
	}); err != nil {
		return err
	}
	if r.app.SupportEmail == "" {
		return nil
	}
	return r.mailer.Send(ctx, notify.Email{
		To:      r.app.SupportEmail,
		Subject: fmt.Sprintf("Nouveau paiement — commande #%d", o.ID),
		Body:    fmt.Sprintf("La commande #%d « %s » vient d'être payée (%.2f EUR).", o.ID, o.Title, float64(o.AmountCents)/100),
	})
}

func (r *SideEffectRunner) notifyClient(ctx context.Context, t *outbox.Task) error {
	o, err := r.orders.GetByID(ctx, t.OrderID)
	if err != nil {
		return err
	}
	u, err := r.users.GetByID(ctx, t.UserID)
	if err != nil {
		return err
	}
	if err := r.notifications.Create(ctx, &notification.Notification{
		Audience: notification.AudienceClient,
		UserID:   &u.ID,
		OrderID:  o.ID,
		Title:    "Votre projet a été créé",
		Body:     fmt.Sprintf("Votre commande « %s » est confirmée et va être prise en charge.", o.Title),
	}); err != nil {
		return err
	}
	return r.mailer.Send(ctx, notify.Email{
		To:      u.Email,
		Subject: "Votre projet a été créé",
		Body: fmt.Sprintf(
			"Bonjour %s,\n\nVotre commande « %s » est confirmée. Suivez son avancement depuis votre espace client.\n\nL'équipe Staka Livres",
			u.Name, o.Title),
	})
}

// migrateFiles re-parents uploads made against the pending order: owner
// and order set, sentinel stripped from the description.
func (r *SideEffectRunner) migrateFiles(ctx context.Context, t *outbox.Task) error {
	if t.PendingOrderID == nil {
		return errors.New("file migration task without pending order")
	}
	files, err := r.files.ListPendingByPendingOrder(ctx, *t.PendingOrderID)
	if err != nil {
		return err
	}
	for _, f := range files {
		userID := t.UserID
		orderID := t.OrderID
		f.UserID = &userID
		f.OrderID = &orderID
		f.Description = file.StripPending(f.Description)
		if err := r.files.Update(ctx, f); err != nil {
			return fmt.Errorf("re-parent file %d: %w", f.ID, err)
		}
	}
	return nil
}
