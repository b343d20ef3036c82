// Package dispatch turns a send intent into one or more concurrent single-bot
// deliveries. Planning (which bots, which message) is separated from
// launching (when each delivery fires) so the caller can log attempts before
// any network I/O happens.
package dispatch

import (
	"math/rand/v2"
	"time"
)

// Kind selects how targets are chosen from the eligible set.
type Kind int

const (
	// SingleBot targets one explicit registry index, if eligible.
	SingleBot Kind = iota
	// RandomBot targets one uniformly random eligible bot.
	RandomBot
	// AllBots targets every eligible bot with one shared message.
	AllBots
	// SubsetBots targets Count random eligible bots, preferring distinct
	// messages from the pool.
	SubsetBots
)

// Intent is one dispatch request. Ephemeral; constructed per call.
type Intent struct {
	Kind  Kind
	Index int // SingleBot only
	Count int // SubsetBots only
}

// DelayPolicy governs inter-bot stagger when a dispatch targets multiple
// bots. When Simultaneous is false the k-th target is delayed by
// k × uniform(Min, Max) — a linearly increasing stagger.
type DelayPolicy struct {
	Simultaneous bool
	Min, Max     time.Duration
}

// Selection pairs a chosen bot index with the message it will carry.
type Selection struct {
	BotIndex int
	Message  string
}

// Plan computes the targets for an intent against the eligible index set.
// message is the explicit text to send; when empty, one is drawn from pool.
// A nil result means the dispatch is a no-op (nothing eligible, index not
// eligible, or no message available) — never an error.
func Plan(rng *rand.Rand, intent Intent, eligible []int, message string, pool []string) []Selection {
	if len(eligible) == 0 {
		return nil
	}
	pick := func() string {
		if message != "" {
			return message
		}
		if len(pool) == 0 {
			return ""
		}
		return pool[rng.IntN(len(pool))]
	}

	switch intent.Kind {
	case SingleBot:
		for _, i := range eligible {
			if i != intent.Index {
				continue
			}
			m := pick()
			if m == "" {
				return nil
			}
			return []Selection{{BotIndex: i, Message: m}}
		}
		return nil

	case RandomBot:
		m := pick()
		if m == "" {
			return nil
		}
		return []Selection{{BotIndex: eligible[rng.IntN(len(eligible))], Message: m}}

	case AllBots:
		m := pick()
		if m == "" {
			return nil
		}
		out := make([]Selection, 0, len(eligible))
		for _, i := range eligible {
			out = append(out, Selection{BotIndex: i, Message: m})
		}
		return out

	case SubsetBots:
		n := intent.Count
		if n <= 0 {
			return nil
		}
		if n > len(eligible) {
			n = len(eligible)
		}
		shuffled := append([]int(nil), eligible...)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})
		out := make([]Selection, 0, n)
		if message == "" && len(pool) > 1 {
			// Distinct messages preferred: shuffle the pool and deal one per
			// target, cycling when targets outnumber messages.
			msgs := append([]string(nil), pool...)
			rng.Shuffle(len(msgs), func(a, b int) {
				msgs[a], msgs[b] = msgs[b], msgs[a]
			})
			for k := 0; k < n; k++ {
				out = append(out, Selection{BotIndex: shuffled[k], Message: msgs[k%len(msgs)]})
			}
			return out
		}
		m := pick()
		if m == "" {
			return nil
		}
		for k := 0; k < n; k++ {
			out = append(out, Selection{BotIndex: shuffled[k], Message: m})
		}
		return out
	}
	return nil
}
