// internal/app/notify/notify.go
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/dalemusser/watchd/internal/app/store/notifyprefs"
	"github.com/dalemusser/watchd/internal/app/system/mailer"
	"github.com/dalemusser/watchd/internal/domain/models"
	"go.uber.org/zap"
)

// taskTimeout bounds one background notification task. Fan-out is
// best-effort: a slow mail server must not pile up goroutines forever.
const taskTimeout = 30 * time.Second

// Sender is the outbound email boundary. *mailer.Mailer satisfies it;
// tests substitute a capture fake.
type Sender interface {
	Send(e mailer.Email) bool
}

// Task is one unit of outbound notification work, run off the request
// path. Failures are logged, never propagated to the triggering write.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Notifier dispatches notification tasks on background goroutines.
type Notifier struct {
	prefs    *notifyprefstore.Store
	sender   Sender
	log      *zap.Logger
	siteName string
	baseURL  string

	wg sync.WaitGroup
}

func New(prefs *notifyprefstore.Store, sender Sender, log *zap.Logger, siteName, baseURL string) *Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{
		prefs:    prefs,
		sender:   sender,
		log:      log,
		siteName: siteName,
		baseURL:  baseURL,
	}
}

// Dispatch runs a task on its own goroutine with a bounded context.
func (n *Notifier) Dispatch(t Task) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), taskTimeout)
		defer cancel()
		if err := t.Run(ctx); err != nil {
			n.log.Warn("notification task failed",
				zap.String("task", t.Name),
				zap.Error(err))
		}
	}()
}

// Wait blocks until all in-flight tasks finish. Called during shutdown.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

// EntryShared fans out an instant notification to every circle member who
// opted in, excluding the actor. Fire and forget: the triggering request
// returns before any mail moves.
func (n *Notifier) EntryShared(group models.Group, entry models.WatchEntry, actorName string) {
	n.Dispatch(Task{
		Name: "entry-shared",
		Run: func(ctx context.Context) error {
			recips, err := n.prefs.InstantRecipients(ctx, group.ID, entry.UserID)
			if err != nil {
				return err
			}
			note := ""
			if entry.Review != nil {
				note = *entry.Review
			}
			for _, r := range recips {
				e := mailer.BuildGroupUpdateEmail(mailer.GroupUpdateEmailData{
					SiteName:  n.siteName,
					GroupName: group.Name,
					Title:     entry.Title,
					AddedBy:   actorName,
					Note:      note,
					FeedURL:   n.baseURL + "/circles/" + group.Slug,
				})
				e.To = r.Email
				if !n.sender.Send(e) {
					n.log.Warn("instant notification not delivered",
						zap.String("to", r.Email),
						zap.String("group", group.Slug))
				}
			}
			return nil
		},
	})
}

// SendInvite emails the invite link to its target and reports whether
// the mail went out. Runs on the request path so the inviter learns
// immediately when the token has to be shared by hand; a failed send
// never invalidates the token.
func (n *Notifier) SendInvite(group models.Group, invite models.GroupInvite, inviterName string) bool {
	e := mailer.BuildInviteEmail(mailer.InviteEmailData{
		SiteName:    n.siteName,
		GroupName:   group.Name,
		InviterName: inviterName,
		Role:        invite.InviteRole,
		AcceptURL:   n.baseURL + "/join/" + invite.Token,
		ExpiresIn:   "7 days",
	})
	e.To = invite.Email
	if !n.sender.Send(e) {
		n.log.Warn("invite email not delivered",
			zap.String("to", invite.Email),
			zap.String("group", group.Slug))
		return false
	}
	return true
}
