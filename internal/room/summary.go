package room

import (
	"fmt"
	"strings"
)

// RankedCard pairs a card with its results rank (1..3).
type RankedCard struct {
	Card Card
	Rank int
}

// ColumnSummary groups a column with its cards for the results view.
type ColumnSummary struct {
	Column Column
	Cards  []Card
}

// Summary is the results view shown once the room reaches the Finish phase:
// vote aggregation plus the collected action items.
type Summary struct {
	RoomName   string
	TotalVotes int
	Ranked     []RankedCard
	Columns    []ColumnSummary
	Notes      []Note
}

// Summary aggregates the current store snapshot into the results view.
func (r *Room) Summary() Summary {
	cards := r.store.Cards()
	ranks := Rankings(cards)

	s := Summary{
		RoomName: r.store.Name(),
		Notes:    r.store.Notes(),
	}

	for _, c := range cards {
		s.TotalVotes += c.Votes
	}

	// Ranked cards in rank order.
	for rank := 1; rank <= rankCount; rank++ {
		for _, c := range cards {
			if ranks[c.ID] == rank {
				s.Ranked = append(s.Ranked, RankedCard{Card: c, Rank: rank})
			}
		}
	}

	for _, col := range r.store.Columns() {
		s.Columns = append(s.Columns, ColumnSummary{
			Column: col,
			Cards:  r.store.CardsInColumn(col.ID),
		})
	}
	return s
}

// Text renders the summary as plain text for the export and share
// affordances.
func (s Summary) Text() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Retrospective: %s\n", s.RoomName)
	fmt.Fprintf(&b, "Total votes: %d\n", s.TotalVotes)

	if len(s.Ranked) > 0 {
		b.WriteString("\nTop cards:\n")
		for _, rc := range s.Ranked {
			fmt.Fprintf(&b, "  %d. %s (%d votes)\n", rc.Rank, rc.Card.Content, rc.Card.Votes)
		}
	}

	for _, col := range s.Columns {
		fmt.Fprintf(&b, "\n%s:\n", col.Column.Name)
		for _, c := range col.Cards {
			fmt.Fprintf(&b, "  - %s (%d votes)\n", c.Content, c.Votes)
		}
	}

	if len(s.Notes) > 0 {
		b.WriteString("\nAction items:\n")
		for _, n := range s.Notes {
			line := "  - " + n.Text
			if n.Executor != "" {
				line += " [" + n.Executor + "]"
			}
			if n.DueDate != "" {
				line += " due " + n.DueDate
			}
			b.WriteString(line + "\n")
		}
	}
	return b.String()
}
