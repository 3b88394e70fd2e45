package model

// SegmentDefinition describes what a segment should contain. Definitions come
// from configuration and are immutable at runtime. MemberQuery is a
// case-insensitive username fragment resolved against the local user table.
type SegmentDefinition struct {
	Name          string
	Description   string
	MemberQuery   string
	AdAccountID   string // optional; falls back to the engine's default account
	RetentionDays int
}

// RemoteSegment is a segment as known to the ad platform. ID is
// platform-assigned and is the join key between local and remote state.
// At most one remote segment exists per distinct name within an ad account.
type RemoteSegment struct {
	ID   string
	Name string
}

// User is a source-of-truth identity. Emails are pseudonymized before
// transmission to the ad platform; the raw address never leaves the process.
type User struct {
	ID       int64
	Username string
	Email    string
}

// Organization is an ad-platform organization the authenticated user belongs to.
type Organization struct {
	ID   string
	Name string
}

// AdAccount is an advertising account under an organization. Segments live
// inside an ad account.
type AdAccount struct {
	ID   string
	Name string
}
