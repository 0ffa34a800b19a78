package notify

import (
	"fmt"
	"strings"
	"time"

	"wagerhouse/internal/feed"
)

const (
	colorWin     = 0x2ecc71
	colorLoss    = 0xe74c3c
	colorNeutral = 0x95a5a6
)

var titles = map[string]string{
	feed.TypeSessionResolved: "Session resolved",
	feed.TypePoolMatched:     "Pool match settled",
	feed.TypeRoundSettled:    "Elimination round settled",
	feed.TypeHandSettled:     "House hand settled",
	feed.TypeDiceRolled:      "Dice rolled",
	feed.TypeRefund:          "Stake refunded",
}

// Format renders a settlement event as one notification message.
func Format(e feed.Event) Message {
	title, ok := titles[e.Type]
	if !ok {
		title = e.Type
	}

	color := colorNeutral
	switch {
	case len(e.Winners) > 0:
		color = colorWin
	case len(e.Losers) > 0:
		color = colorLoss
	}

	fields := []Field{
		{Name: "ref", Value: e.RefID, Inline: true},
	}
	if e.Pot > 0 {
		fields = append(fields, Field{Name: "pot", Value: fmt.Sprintf("%d", e.Pot), Inline: true})
	}
	if e.Fee > 0 {
		fields = append(fields, Field{Name: "fee", Value: fmt.Sprintf("%d", e.Fee), Inline: true})
	}
	if len(e.Winners) > 0 {
		fields = append(fields, Field{Name: "winners", Value: strings.Join(e.Winners, ", ")})
	}
	if len(e.Losers) > 0 {
		fields = append(fields, Field{Name: "losers", Value: strings.Join(e.Losers, ", ")})
	}

	return Message{
		Title:       title,
		Description: description(e),
		Color:       color,
		Timestamp:   e.At.UTC().Format(time.RFC3339),
		Fields:      fields,
	}
}

func description(e feed.Event) string {
	switch {
	case len(e.Winners) > 0 && e.Pot > 0:
		return fmt.Sprintf("%s took a pot of %d", strings.Join(e.Winners, ", "), e.Pot)
	case len(e.Losers) > 0:
		return fmt.Sprintf("%s lost to the house", strings.Join(e.Losers, ", "))
	default:
		return "Settlement recorded"
	}
}
