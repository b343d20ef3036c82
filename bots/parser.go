// Package bots holds the bot credential parser and the in-memory bot registry.
//
// A credential file carries one bot per line, either "token" or
// "token|displayName". Display names are optional; missing ones are
// synthesized from a NameSeq so every bot in a run gets a unique name, even
// across credential reloads.
package bots

import (
	"fmt"
	"strings"
)

// Identity is one parsed bot credential. Immutable after creation.
type Identity struct {
	Name  string
	Token string
}

// MaskedToken returns a redacted form of the token safe for logs.
func (id Identity) MaskedToken() string {
	if len(id.Token) <= 6 {
		return "***"
	}
	return "***" + id.Token[len(id.Token)-6:]
}

// NameSeq issues synthesized display names (bot_1, bot_2, ...). The sequence
// is owned by the registry and is never reset, so names stay unique across
// credential reloads within a process run.
type NameSeq struct {
	n uint64
}

// Next returns the next synthesized name.
func (s *NameSeq) Next() string {
	s.n++
	return fmt.Sprintf("bot_%d", s.n)
}

// ParseCredentials turns raw credential-file text into an ordered list of
// identities. Lines split on the first '|'; a blank name part after trimming
// gets a synthesized name. Lines without a pipe that are blank after trimming
// are skipped rather than reported. Duplicate names are not detected.
func ParseCredentials(text string, seq *NameSeq) []Identity {
	var ids []Identity
	for _, line := range strings.Split(text, "\n") {
		token, name, piped := strings.Cut(line, "|")
		if piped {
			name = strings.TrimSpace(name)
			if name == "" {
				name = seq.Next()
			}
			ids = append(ids, Identity{Name: name, Token: strings.TrimSpace(token)})
			continue
		}
		token = strings.TrimSpace(line)
		if token == "" {
			continue
		}
		ids = append(ids, Identity{Name: seq.Next(), Token: token})
	}
	return ids
}

// ParseMessages turns message-pool text into candidate messages, one per
// non-blank line. Leading/trailing whitespace on the line is preserved except
// for the trailing newline so deliberate formatting survives.
func ParseMessages(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}
