package models

// PollOption is one answer choice stored in a poll's options column. Counts
// live in poll_votes only.
type PollOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

func optionsFromValue(v any) []PollOption {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]PollOption, 0, len(list))
	for _, raw := range list {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, PollOption{
			ID:   fieldString(m, "id"),
			Text: fieldString(m, "text"),
		})
	}
	return out
}

// OptionsToValue converts options back to a JSON-compatible row value.
func OptionsToValue(opts []PollOption) []any {
	out := make([]any, 0, len(opts))
	for _, o := range opts {
		out = append(out, map[string]any{"id": o.ID, "text": o.Text})
	}
	return out
}

// OptionTally is the live count for one option.
type OptionTally struct {
	PollOption
	Votes   int     `json:"votes"`
	Percent float64 `json:"percent"`
}

// Tally counts votes per option. Votes naming an unknown option are ignored.
func Tally(opts []PollOption, votes []Item) []OptionTally {
	counts := make(map[string]int, len(opts))
	total := 0
	for _, v := range votes {
		counts[v.OptionID]++
	}
	for _, o := range opts {
		total += counts[o.ID]
	}
	out := make([]OptionTally, 0, len(opts))
	for _, o := range opts {
		t := OptionTally{PollOption: o, Votes: counts[o.ID]}
		if total > 0 {
			t.Percent = float64(t.Votes) * 100 / float64(total)
		}
		out = append(out, t)
	}
	return out
}

// Winner returns the index of the option with the most votes, first on ties,
// or -1 when there are no votes.
func Winner(tallies []OptionTally) int {
	best, idx := 0, -1
	for i, t := range tallies {
		if t.Votes > best {
			best, idx = t.Votes, i
		}
	}
	return idx
}
