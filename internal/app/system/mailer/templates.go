// internal/app/system/mailer/templates.go
package mailer

import (
	"bytes"
	"fmt"
	"html/template"
)

// InviteEmailData holds data for circle invite emails.
type InviteEmailData struct {
	SiteName    string
	GroupName   string
	InviterName string
	Role        string
	AcceptURL   string
	ExpiresIn   string // e.g., "7 days"
}

// BuildInviteEmail creates an invite email with both HTML and text bodies.
func BuildInviteEmail(data InviteEmailData) Email {
	return Email{
		Subject:  fmt.Sprintf("You're invited to %s on %s", data.GroupName, data.SiteName),
		TextBody: buildInviteText(data),
		HTMLBody: renderHTML("invite", inviteHTMLTemplate, data),
	}
}

func buildInviteText(data InviteEmailData) string {
	var buf bytes.Buffer
	if data.InviterName != "" {
		buf.WriteString(fmt.Sprintf("%s invited you to the circle %q on %s.\n\n", data.InviterName, data.GroupName, data.SiteName))
	} else {
		buf.WriteString(fmt.Sprintf("You have been invited to the circle %q on %s.\n\n", data.GroupName, data.SiteName))
	}
	buf.WriteString(fmt.Sprintf("You'll join as %s. Accept here:\n%s\n\n", data.Role, data.AcceptURL))
	buf.WriteString(fmt.Sprintf("This invite expires in %s.\n\n", data.ExpiresIn))
	buf.WriteString("If you weren't expecting this, you can safely ignore this email.\n")
	return buf.String()
}

// GroupUpdateEmailData holds data for instant share notifications.
type GroupUpdateEmailData struct {
	SiteName  string
	GroupName string
	Title     string
	AddedBy   string
	Note      string
	FeedURL   string
}

// BuildGroupUpdateEmail creates the "someone shared a title" notification.
func BuildGroupUpdateEmail(data GroupUpdateEmailData) Email {
	return Email{
		Subject:  fmt.Sprintf("%s added %s to %s", data.AddedBy, data.Title, data.GroupName),
		TextBody: buildGroupUpdateText(data),
		HTMLBody: renderHTML("groupupdate", groupUpdateHTMLTemplate, data),
	}
}

func buildGroupUpdateText(data GroupUpdateEmailData) string {
	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("%s shared %q to %q.\n\n", data.AddedBy, data.Title, data.GroupName))
	if data.Note != "" {
		buf.WriteString(fmt.Sprintf("Their note: %s\n\n", data.Note))
	}
	buf.WriteString(fmt.Sprintf("See the circle feed:\n%s\n", data.FeedURL))
	return buf.String()
}

// DigestItem is one row of a weekly digest.
type DigestItem struct {
	GroupName string
	Title     string
	AddedBy   string
	Likes     int
}

// WeeklyDigestData holds data for weekly digest emails.
type WeeklyDigestData struct {
	SiteName string
	Items    []DigestItem
	FeedURL  string
}

// BuildWeeklyDigestEmail creates the weekly roundup of circle activity.
func BuildWeeklyDigestEmail(data WeeklyDigestData) Email {
	return Email{
		Subject:  fmt.Sprintf("Your weekly %s digest", data.SiteName),
		TextBody: buildWeeklyDigestText(data),
		HTMLBody: renderHTML("digest", weeklyDigestHTMLTemplate, data),
	}
}

func buildWeeklyDigestText(data WeeklyDigestData) string {
	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("Here's what your circles watched this week on %s:\n\n", data.SiteName))
	for _, it := range data.Items {
		buf.WriteString(fmt.Sprintf("- %s (%s, shared by %s", it.Title, it.GroupName, it.AddedBy))
		if it.Likes == 1 {
			buf.WriteString(", 1 like")
		} else if it.Likes > 1 {
			buf.WriteString(fmt.Sprintf(", %d likes", it.Likes))
		}
		buf.WriteString(")\n")
	}
	buf.WriteString(fmt.Sprintf("\nCatch up on everything:\n%s\n", data.FeedURL))
	return buf.String()
}

func renderHTML(name, tmpl string, data any) string {
	t := template.Must(template.New(name).Parse(tmpl))
	var buf bytes.Buffer
	_ = t.Execute(&buf, data)
	return buf.String()
}

const inviteHTMLTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><meta name="viewport" content="width=device-width, initial-scale=1.0"><title>Circle Invite</title></head>
<body style="margin: 0; padding: 0; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif; background-color: #f3f4f6;">
  <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="background-color: #f3f4f6;">
    <tr><td align="center" style="padding: 40px 20px;">
      <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="max-width: 480px; background-color: #ffffff; border-radius: 8px; box-shadow: 0 2px 4px rgba(0, 0, 0, 0.1);">
        <tr><td style="padding: 32px 32px 24px; text-align: center; border-bottom: 1px solid #e5e7eb;">
          <h1 style="margin: 0; font-size: 24px; font-weight: 600; color: #4f46e5;">{{.SiteName}}</h1>
        </td></tr>
        <tr><td style="padding: 32px;">
          <p style="margin: 0 0 24px; font-size: 16px; color: #374151; line-height: 1.5;">
            {{if .InviterName}}{{.InviterName}} invited you{{else}}You've been invited{{end}} to the circle <strong>{{.GroupName}}</strong> as {{.Role}}.
          </p>
          <table role="presentation" width="100%" cellspacing="0" cellpadding="0">
            <tr><td align="center">
              <a href="{{.AcceptURL}}" style="display: inline-block; padding: 14px 32px; background-color: #4f46e5; color: #ffffff; text-decoration: none; font-size: 16px; font-weight: 500; border-radius: 6px;">Join the Circle</a>
            </td></tr>
          </table>
          <p style="margin: 24px 0 0; font-size: 13px; color: #9ca3af; text-align: center;">This invite expires in {{.ExpiresIn}}.</p>
        </td></tr>
        <tr><td style="padding: 24px 32px; background-color: #f9fafb; border-top: 1px solid #e5e7eb; border-radius: 0 0 8px 8px;">
          <p style="margin: 0; font-size: 12px; color: #9ca3af; text-align: center;">If you weren't expecting this invite, you can safely ignore this email.</p>
        </td></tr>
      </table>
    </td></tr>
  </table>
</body>
</html>`

const groupUpdateHTMLTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><meta name="viewport" content="width=device-width, initial-scale=1.0"><title>New in your circle</title></head>
<body style="margin: 0; padding: 0; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif; background-color: #f3f4f6;">
  <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="background-color: #f3f4f6;">
    <tr><td align="center" style="padding: 40px 20px;">
      <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="max-width: 480px; background-color: #ffffff; border-radius: 8px; box-shadow: 0 2px 4px rgba(0, 0, 0, 0.1);">
        <tr><td style="padding: 32px 32px 24px; text-align: center; border-bottom: 1px solid #e5e7eb;">
          <h1 style="margin: 0; font-size: 24px; font-weight: 600; color: #4f46e5;">{{.SiteName}}</h1>
        </td></tr>
        <tr><td style="padding: 32px;">
          <p style="margin: 0 0 16px; font-size: 16px; color: #374151; line-height: 1.5;">
            <strong>{{.AddedBy}}</strong> shared <strong>{{.Title}}</strong> to <strong>{{.GroupName}}</strong>.
          </p>
          {{if .Note}}<p style="margin: 0 0 24px; font-size: 14px; color: #6b7280; font-style: italic;">&ldquo;{{.Note}}&rdquo;</p>{{end}}
          <table role="presentation" width="100%" cellspacing="0" cellpadding="0">
            <tr><td align="center">
              <a href="{{.FeedURL}}" style="display: inline-block; padding: 14px 32px; background-color: #4f46e5; color: #ffffff; text-decoration: none; font-size: 16px; font-weight: 500; border-radius: 6px;">Open the Feed</a>
            </td></tr>
          </table>
        </td></tr>
      </table>
    </td></tr>
  </table>
</body>
</html>`

const weeklyDigestHTMLTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><meta name="viewport" content="width=device-width, initial-scale=1.0"><title>Weekly Digest</title></head>
<body style="margin: 0; padding: 0; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif; background-color: #f3f4f6;">
  <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="background-color: #f3f4f6;">
    <tr><td align="center" style="padding: 40px 20px;">
      <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="max-width: 480px; background-color: #ffffff; border-radius: 8px; box-shadow: 0 2px 4px rgba(0, 0, 0, 0.1);">
        <tr><td style="padding: 32px 32px 24px; text-align: center; border-bottom: 1px solid #e5e7eb;">
          <h1 style="margin: 0; font-size: 24px; font-weight: 600; color: #4f46e5;">{{.SiteName}}</h1>
        </td></tr>
        <tr><td style="padding: 32px;">
          <p style="margin: 0 0 24px; font-size: 16px; color: #374151; line-height: 1.5;">Here's what your circles watched this week:</p>
          <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="margin-bottom: 24px;">
            {{range .Items}}
            <tr><td style="padding: 10px 0; border-bottom: 1px solid #f3f4f6;">
              <span style="font-size: 15px; color: #1f2937; font-weight: 600;">{{.Title}}</span>
              <br>
              <span style="font-size: 13px; color: #6b7280;">{{.GroupName}} &middot; shared by {{.AddedBy}}{{if .Likes}} &middot; {{.Likes}} like{{if gt .Likes 1}}s{{end}}{{end}}</span>
            </td></tr>
            {{end}}
          </table>
          <table role="presentation" width="100%" cellspacing="0" cellpadding="0">
            <tr><td align="center">
              <a href="{{.FeedURL}}" style="display: inline-block; padding: 14px 32px; background-color: #4f46e5; color: #ffffff; text-decoration: none; font-size: 16px; font-weight: 500; border-radius: 6px;">Catch Up</a>
            </td></tr>
          </table>
        </td></tr>
      </table>
    </td></tr>
  </table>
</body>
</html>`
