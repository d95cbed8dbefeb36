package model

// SummaryRow holds the scalar statistics of one instrument for one
// parameter combination. SharpeApprox is nil when undefined.
type SummaryRow struct {
	Instrument       string   `json:"instrument_id"`
	NFundingEvents   int      `json:"n_funding_events"`
	NTurns           int      `json:"n_turns"`
	CumulativeReturn float64  `json:"cumulative_return"`
	SharpeApprox     *float64 `json:"sharpe_approx"`
}

// GridResultRow is a SummaryRow tagged with the parameters that produced it.
type GridResultRow struct {
	SummaryRow
	MinAbsFunding float64 `json:"min_abs_funding"`
	ConfirmN      int     `json:"confirm_n"`
}

// ResultColumns is the column order of the flat result table.
var ResultColumns = []string{
	"instrument_id",
	"min_abs_funding",
	"confirm_n",
	"n_funding_events",
	"n_turns",
	"cumulative_return",
	"sharpe_approx",
}
