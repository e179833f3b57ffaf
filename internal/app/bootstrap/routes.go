// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"
	"strconv"
	"time"

	allowlistadminfeature "github.com/dalemusser/watchd/internal/app/features/allowlistadmin"
	authgooglefeature "github.com/dalemusser/watchd/internal/app/features/authgoogle"
	circlesfeature "github.com/dalemusser/watchd/internal/app/features/circles"
	healthfeature "github.com/dalemusser/watchd/internal/app/features/health"
	loginfeature "github.com/dalemusser/watchd/internal/app/features/login"
	logoutfeature "github.com/dalemusser/watchd/internal/app/features/logout"
	notificationsfeature "github.com/dalemusser/watchd/internal/app/features/notifications"
	profilefeature "github.com/dalemusser/watchd/internal/app/features/profile"
	titlesfeature "github.com/dalemusser/watchd/internal/app/features/titles"
	watchlistfeature "github.com/dalemusser/watchd/internal/app/features/watchlist"
	"github.com/dalemusser/watchd/internal/app/notify"
	allowliststore "github.com/dalemusser/watchd/internal/app/store/allowlist"
	commentstore "github.com/dalemusser/watchd/internal/app/store/comments"
	entrystore "github.com/dalemusser/watchd/internal/app/store/entries"
	groupstore "github.com/dalemusser/watchd/internal/app/store/groups"
	invitestore "github.com/dalemusser/watchd/internal/app/store/invites"
	membershipstore "github.com/dalemusser/watchd/internal/app/store/memberships"
	notifyprefstore "github.com/dalemusser/watchd/internal/app/store/notifyprefs"
	"github.com/dalemusser/watchd/internal/app/store/oauthstate"
	reactionstore "github.com/dalemusser/watchd/internal/app/store/reactions"
	userstore "github.com/dalemusser/watchd/internal/app/store/users"
	"github.com/dalemusser/watchd/internal/app/system/auth"
	"github.com/dalemusser/watchd/internal/app/system/imdb"
	"github.com/dalemusser/watchd/internal/app/system/mailer"
	"github.com/dalemusser/watchd/internal/app/system/ratelimit"
	"github.com/dalemusser/watchd/internal/app/system/tasks"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const sessionMaxAge = 30 * 24 * time.Hour

// notifier and taskRunner are kept package-level so Shutdown can drain
// in-flight sends and stop background jobs.
var (
	notifier   *notify.Notifier
	taskRunner *tasks.Runner
)

// BuildHandler constructs the root HTTP handler for the service.
//
// WAFFLE calls this after configuration, DB connections, schema setup,
// and any Startup hooks have completed. It builds the session manager,
// the stores, the outbound notifier, and mounts one router per feature.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, sessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	db := deps.MongoDatabase

	users := userstore.New(db)
	groups := groupstore.New(db)
	memberships := membershipstore.New(db)
	invites := invitestore.New(db)
	allowlist := allowliststore.New(db)
	entries := entrystore.New(db)
	reactions := reactionstore.New(db)
	comments := commentstore.New(db)
	prefs := notifyprefstore.New(db)
	oauthStates := oauthstate.New(db)

	// Sessions resolve against the user record on every request so role
	// changes and deletions take effect immediately.
	sessionMgr.SetUserFetcher(users.SessionFetcher())

	mail := mailer.New(mailer.Config{
		Host:     appCfg.MailSMTPHost,
		Port:     strconv.Itoa(appCfg.MailSMTPPort),
		Username: appCfg.MailSMTPUser,
		Password: appCfg.MailSMTPPass,
		From:     appCfg.MailFrom,
		FromName: appCfg.MailFromName,
	}, logger)

	notifier = notify.New(prefs, mail, logger, appCfg.SiteName, appCfg.BaseURL)
	digest := notify.NewDigestBuilder(prefs, entries, reactions, users, groups, mail, logger, appCfg.SiteName, appCfg.BaseURL)

	titleClient := imdb.New(appCfg.OMDbAPIKey, deps.TitleCache, logger)

	taskRunner = tasks.NewRunner(logger)
	taskRunner.Add(tasks.OAuthStateCleanupJob(oauthStates, logger))
	if appCfg.CronSecret == "" {
		// No external scheduler configured; run the digest on an
		// internal weekly schedule instead.
		taskRunner.Add(tasks.WeeklyDigestJob(digest, logger))
	}
	taskRunner.Start()

	r := chi.NewRouter()

	// Global auth middleware: loads SessionUser into context if logged in.
	r.Use(sessionMgr.LoadSessionUser)

	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Authentication
	loginHandler := &loginfeature.Handler{
		Log:         logger,
		SessionMgr:  sessionMgr,
		Users:       users,
		Allowlist:   allowlist,
		Limiter:     ratelimit.NewLoginLimiter(),
		DevLogin:    appCfg.DevLogin,
		AdminEmails: appCfg.AdminEmails,
	}
	r.Mount("/login", loginfeature.Routes(loginHandler))

	googleHandler := authgooglefeature.NewHandler(
		sessionMgr, oauthStates, users, allowlist,
		appCfg.GoogleClientID, appCfg.GoogleClientSecret, appCfg.BaseURL,
		appCfg.AdminEmails, logger,
	)
	r.Mount("/auth/google", authgooglefeature.Routes(googleHandler))

	logoutHandler := logoutfeature.NewHandler(sessionMgr, logger)
	r.Mount("/logout", logoutfeature.Routes(logoutHandler))

	// Account
	profileHandler := &profilefeature.Handler{Log: logger, Users: users}
	r.Mount("/me", profilefeature.Routes(profileHandler, sessionMgr))

	// Circles: groups, memberships, invites
	circlesHandler := &circlesfeature.Handler{
		DB:            db,
		Log:           logger,
		Groups:        groups,
		Memberships:   memberships,
		Invites:       invites,
		Allowlist:     allowlist,
		Users:         users,
		Notifier:      notifier,
		InviteLimiter: ratelimit.New(appCfg.InviteLimit, time.Hour),
	}
	r.Mount("/circles", circlesfeature.Routes(circlesHandler, sessionMgr))

	// Watchlist: feeds, entries, reactions, comments
	watchlistHandler := &watchlistfeature.Handler{
		DB:        db,
		Log:       logger,
		Entries:   entries,
		Reactions: reactions,
		Comments:  comments,
		Groups:    groups,
		Users:     users,
		Titles:    titleClient,
		Notifier:  notifier,
	}
	r.Mount("/watchlist", watchlistfeature.Routes(watchlistHandler, sessionMgr))

	// Notification preferences and the digest scheduler hook
	notificationsHandler := &notificationsfeature.Handler{
		DB:          db,
		Log:         logger,
		Prefs:       prefs,
		Memberships: memberships,
		Digest:      digest,
		CronSecret:  appCfg.CronSecret,
	}
	r.Mount("/notifications", notificationsfeature.Routes(notificationsHandler, sessionMgr))

	// Title catalog proxy
	titlesHandler := &titlesfeature.Handler{Log: logger, Titles: titleClient}
	r.Mount("/titles", titlesfeature.Routes(titlesHandler, sessionMgr))

	// Allowlist administration
	allowlistHandler := &allowlistadminfeature.Handler{Log: logger, Allowlist: allowlist}
	r.Mount("/admin/allowlist", allowlistadminfeature.Routes(allowlistHandler, sessionMgr))

	return r, nil
}
