package dto

// Money pairs a minor unit amount with its display form
type Money struct {
	Amount  int64  `json:"amount"`
	Display string `json:"display"`
}
