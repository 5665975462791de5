// internal/tracker/action.go
package tracker

import "time"

// Kind identifies a recorded action. Only a subset of kinds is
// dispatched to the server; the rest are accumulated locally and only
// contribute to the active-time counters.
type Kind string

const (
	KindSessionStart Kind = "session_start"
	KindSessionEnd   Kind = "session_end"
	KindPageView     Kind = "page_view"
	KindClick        Kind = "click"
	KindScroll       Kind = "scroll"
	KindKeypress     Kind = "keypress"

	KindExportExcel         Kind = "export_excel"
	KindDownloadReport      Kind = "download_report"
	KindPredictionGenerated Kind = "prediction_generated"
	KindPredictionViewed    Kind = "prediction_viewed"
)

// serverSynced lists the kinds that are dispatched to the server as they
// happen. Everything else rides along in the periodic active-time sync.
var serverSynced = map[Kind]bool{
	KindPageView:            true,
	KindExportExcel:         true,
	KindDownloadReport:      true,
	KindPredictionGenerated: true,
	KindPredictionViewed:    true,
	KindSessionEnd:          true,
}

// SyncedToServer reports whether actions of this kind are dispatched to
// the server when recorded.
func (k Kind) SyncedToServer() bool { return serverSynced[k] }

// Payload is the closed set of per-kind action data. Each action kind
// carries its own explicit fields rather than an open metadata bag, so
// the shape of what reaches the server cannot drift silently.
type Payload interface {
	ActionKind() Kind
}

// PageViewPayload records a navigation to a dashboard page.
type PageViewPayload struct {
	Page string
}

func (PageViewPayload) ActionKind() Kind { return KindPageView }

// InteractionPayload records a raw qualifying interaction (pointer,
// key, touch, scroll). These never leave the client.
type InteractionPayload struct {
	Kind Kind // KindClick, KindScroll, or KindKeypress
}

func (p InteractionPayload) ActionKind() Kind { return p.Kind }

// ExportPayload records a spreadsheet export.
type ExportPayload struct {
	Format string
	Rows   int
}

func (ExportPayload) ActionKind() Kind { return KindExportExcel }

// DownloadPayload records a report download.
type DownloadPayload struct {
	Report string
}

func (DownloadPayload) ActionKind() Kind { return KindDownloadReport }

// PredictionPayload records a demand-prediction request.
type PredictionPayload struct {
	ProductCount int
	Horizon      string
}

func (PredictionPayload) ActionKind() Kind { return KindPredictionGenerated }

// PredictionViewPayload records opening a stored prediction.
type PredictionViewPayload struct {
	PredictionID string
}

func (PredictionViewPayload) ActionKind() Kind { return KindPredictionViewed }

// SessionMarkerPayload is emitted internally at session start and end.
// Duration carries the final accumulated active time on session_end.
type SessionMarkerPayload struct {
	Kind     Kind // KindSessionStart or KindSessionEnd
	Duration time.Duration
}

func (p SessionMarkerPayload) ActionKind() Kind { return p.Kind }

// ActionDuration lets the session-end marker credit its accumulated
// duration instead of the per-interaction floor.
func (p SessionMarkerPayload) ActionDuration() time.Duration { return p.Duration }

// Action is one recorded entry in a session's history.
type Action struct {
	Kind     Kind
	Time     time.Time
	Page     string
	Payload  Payload
	Duration time.Duration // credited active time, ≥ the interaction floor
}
