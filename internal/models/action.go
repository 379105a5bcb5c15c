package models

// Admin action names. Each mutating request carries a nonce issued for one
// of these.
const (
	ActionExportNow        = "export-now"
	ActionImportBundle     = "import-bundle"
	ActionDeleteBundle     = "delete-bundle"
	ActionDeleteRogueStats = "delete-rogue-stats"
	ActionDeleteAllStats   = "delete-all-stats"
	ActionDeleteAdStats    = "delete-stats-for-ad"
)

// Action results.
const (
	ResultSuccess = "success"
	ResultFail    = "fail"
)

// Actions lists every nonce-protected action.
func Actions() []string {
	return []string{
		ActionExportNow, ActionImportBundle, ActionDeleteBundle,
		ActionDeleteRogueStats, ActionDeleteAllStats, ActionDeleteAdStats,
	}
}

// ActionResponse is the body of every admin action response.
type ActionResponse struct {
	Action string `json:"action"`
	Result string `json:"result"`
	Notice string `json:"notice"`
	Data   any    `json:"data,omitempty"`
}
