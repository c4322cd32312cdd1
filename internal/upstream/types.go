package upstream

// Collection is a logical scope of searchable data exposed by the upstream
// API. Status carries the last-sync status string for display in tool
// descriptions.
type Collection struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}
