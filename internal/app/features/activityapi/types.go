// internal/app/features/activityapi/types.go
package activityapi

// Session lifecycle actions accepted by the activity-session endpoint.
const (
	actionStartSession  = "start_session"
	actionUpdateSession = "update_session"
	actionEndSession    = "end_session"
)

// sessionInput is the request body for POST /activity-session.
// Time values are milliseconds and are additive deltas, not running
// totals.
type sessionInput struct {
	Action       string `json:"action"`
	UserID       string `json:"userId"`
	Username     string `json:"username"`
	Branch       string `json:"branch"`
	SessionID    string `json:"sessionId"`
	Page         string `json:"page"`
	ActiveTime   int64  `json:"activeTime"`
	IdleTime     int64  `json:"idleTime"`
	Interactions int64  `json:"interactions"`
	Timestamp    string `json:"timestamp"`
}

// actionInput is the request body for POST /activity-actions.
type actionInput struct {
	UserID     string         `json:"userId"`
	Username   string         `json:"username"`
	Branch     string         `json:"branch"`
	ActionType string         `json:"actionType"`
	SessionID  string         `json:"sessionId"`
	Timestamp  string         `json:"timestamp"`
	Metadata   *actionDetails `json:"metadata"`
}

// actionDetails carries the per-type detail fields of an action.
type actionDetails struct {
	Page       string         `json:"page"`
	Duration   int64          `json:"duration"` // milliseconds
	ActionData map[string]any `json:"actionData"`
}

// archiveInput is the request body for POST /activity-archive. Either
// field picks the cutoff; monthsToKeep wins when both are set.
type archiveInput struct {
	MonthsToKeep  int `json:"monthsToKeep"`
	RetentionDays int `json:"retentionDays"`
}

// Periods accepted by GET /activity-report.
const (
	periodWeek    = "week"
	periodMonth   = "month"
	periodQuarter = "quarter"
	periodYear    = "year"
	periodCustom  = "custom"
)

// reportDay is one calendar day of the period rollup response.
type reportDay struct {
	Date  string       `json:"date"`
	Users []reportUser `json:"users"`
}

// reportUser is one user's totals within a single day, summed across
// branches unless the request filtered to one.
type reportUser struct {
	UserID           string `json:"userId"`
	Username         string `json:"username"`
	TotalActiveTime  int64  `json:"totalActiveTime"`
	TotalIdleTime    int64  `json:"totalIdleTime"`
	InteractionCount int64  `json:"interactionCount"`
	SessionCount     int64  `json:"sessionCount"`
}
