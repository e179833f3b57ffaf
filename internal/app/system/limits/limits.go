// internal/app/system/limits/limits.go
package limits

// Request body size limits. These keep oversized payloads from exhausting
// memory before validation runs.
const (
	// MaxJSONBody is the ceiling for ordinary JSON request bodies
	// (circle creation, invites, role changes, preferences).
	MaxJSONBody = 64 << 10 // 64 KB

	// MaxEntryBody is the ceiling for entry upserts, which carry a
	// review note alongside the title fields.
	MaxEntryBody = 256 << 10 // 256 KB
)
