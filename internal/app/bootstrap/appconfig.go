// internal/app/bootstrap/appconfig.go
package bootstrap

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig handles
// framework-level settings (ports, TLS, logging); AppConfig is everything
// specific to watchd.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string
	MongoDatabase    string
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Session management configuration
	SessionKey    string // Secret key for signing session cookies (must be strong in production)
	SessionName   string // Cookie name for sessions (default: watchd-session)
	SessionDomain string // Cookie domain (blank means current host)

	// Email/SMTP configuration
	MailSMTPHost string // e.g. localhost for Mailpit, email-smtp.us-east-1.amazonaws.com for SES
	MailSMTPPort int
	MailSMTPUser string
	MailSMTPPass string
	MailFrom     string
	MailFromName string

	// Base URL for links in emails and OAuth callbacks
	BaseURL  string // e.g. "https://watchd.example.com" or "http://localhost:3000"
	SiteName string // Display name used in email templates

	// Title lookup (OMDb)
	OMDbAPIKey string
	RedisAddr  string // Optional cache for title lookups; blank disables

	// Google OAuth configuration
	GoogleClientID     string
	GoogleClientSecret string

	// Sign-in / operator configuration
	AdminEmails []string // Always authorized; promoted to ADMIN on sign-in
	DevLogin    bool     // Enable the passwordless dev email login

	// Scheduler credential for the weekly digest endpoint
	CronSecret string

	// Invite throttling
	InviteLimit int // invites per inviter per hour
}
