package dto

// SweepResponse reports one reaper pass
type SweepResponse struct {
	Scanned  int `json:"scanned"`
	Released int `json:"released"`
	// Skipped holds were confirmed, cancelled or renewed between listing and release
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}
