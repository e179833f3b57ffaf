// internal/app/notify/digest.go
package notify

import (
	"context"
	"sort"
	"time"

	"github.com/dalemusser/watchd/internal/app/store/entries"
	"github.com/dalemusser/watchd/internal/app/store/groups"
	"github.com/dalemusser/watchd/internal/app/store/notifyprefs"
	"github.com/dalemusser/watchd/internal/app/store/reactions"
	"github.com/dalemusser/watchd/internal/app/store/users"
	"github.com/dalemusser/watchd/internal/app/system/mailer"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// digestWindow is the trailing period a weekly digest covers.
const digestWindow = 7 * 24 * time.Hour

// DigestBuilder assembles and sends the weekly digest: one email per
// opted-in recipient covering all their subscribed circles.
type DigestBuilder struct {
	prefs     *notifyprefstore.Store
	entries   *entrystore.Store
	reactions *reactionstore.Store
	users     *userstore.Store
	groups    *groupstore.Store
	sender    Sender
	log       *zap.Logger
	siteName  string
	baseURL   string
}

func NewDigestBuilder(
	prefs *notifyprefstore.Store,
	entries *entrystore.Store,
	reactions *reactionstore.Store,
	users *userstore.Store,
	groups *groupstore.Store,
	sender Sender,
	log *zap.Logger,
	siteName, baseURL string,
) *DigestBuilder {
	if log == nil {
		log = zap.NewNop()
	}
	return &DigestBuilder{
		prefs:     prefs,
		entries:   entries,
		reactions: reactions,
		users:     users,
		groups:    groups,
		sender:    sender,
		log:       log,
		siteName:  siteName,
		baseURL:   baseURL,
	}
}

type digestEntry struct {
	item      mailer.DigestItem
	createdAt time.Time
}

// Run builds and sends the digest for activity in the trailing week.
// Recipients whose circles had no activity get nothing. Returns the number
// of emails handed to the sender.
func (d *DigestBuilder) Run(ctx context.Context) (int, error) {
	subs, err := d.prefs.WeeklySubscriptions(ctx)
	if err != nil {
		return 0, err
	}
	if len(subs) == 0 {
		return 0, nil
	}
	since := time.Now().UTC().Add(-digestWindow)

	// Pull each circle's week once, shared across its subscribers.
	perGroup := make(map[primitive.ObjectID][]digestEntry)
	for _, sub := range subs {
		if _, done := perGroup[sub.GroupID]; done {
			continue
		}
		items, err := d.groupWeek(ctx, sub.GroupID, since)
		if err != nil {
			d.log.Warn("skipping circle in digest",
				zap.String("group_id", sub.GroupID.Hex()),
				zap.Error(err))
			items = nil
		}
		perGroup[sub.GroupID] = items
	}

	// One email per recipient, batching all their circles.
	type recipient struct {
		email string
		items []digestEntry
	}
	order := []string{}
	byEmail := map[string]*recipient{}
	for _, sub := range subs {
		r, ok := byEmail[sub.Email]
		if !ok {
			r = &recipient{email: sub.Email}
			byEmail[sub.Email] = r
			order = append(order, sub.Email)
		}
		r.items = append(r.items, perGroup[sub.GroupID]...)
	}

	sent := 0
	for _, email := range order {
		r := byEmail[email]
		if len(r.items) == 0 {
			continue
		}
		sort.SliceStable(r.items, func(i, j int) bool {
			if r.items[i].item.Likes != r.items[j].item.Likes {
				return r.items[i].item.Likes > r.items[j].item.Likes
			}
			return r.items[i].createdAt.After(r.items[j].createdAt)
		})
		items := make([]mailer.DigestItem, len(r.items))
		for i, it := range r.items {
			items[i] = it.item
		}
		e := mailer.BuildWeeklyDigestEmail(mailer.WeeklyDigestData{
			SiteName: d.siteName,
			Items:    items,
			FeedURL:  d.baseURL + "/",
		})
		e.To = r.email
		if d.sender.Send(e) {
			sent++
		} else {
			d.log.Warn("weekly digest not delivered", zap.String("to", r.email))
		}
	}
	return sent, nil
}

func (d *DigestBuilder) groupWeek(ctx context.Context, groupID primitive.ObjectID, since time.Time) ([]digestEntry, error) {
	rows, err := d.entries.GroupEntriesSince(ctx, groupID, since)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	g, err := d.groups.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}

	entryIDs := make([]primitive.ObjectID, len(rows))
	authorIDs := make([]primitive.ObjectID, 0, len(rows))
	seen := map[primitive.ObjectID]bool{}
	for i, row := range rows {
		entryIDs[i] = row.ID
		if !seen[row.UserID] {
			seen[row.UserID] = true
			authorIDs = append(authorIDs, row.UserID)
		}
	}
	likes, err := d.reactions.LikeCounts(ctx, entryIDs)
	if err != nil {
		return nil, err
	}
	names, err := d.users.NamesByIDs(ctx, authorIDs)
	if err != nil {
		return nil, err
	}

	out := make([]digestEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, digestEntry{
			item: mailer.DigestItem{
				GroupName: g.Name,
				Title:     row.Title,
				AddedBy:   names[row.UserID],
				Likes:     likes[row.ID],
			},
			createdAt: row.CreatedAt,
		})
	}
	return out, nil
}
