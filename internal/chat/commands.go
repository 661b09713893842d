package chat

import "strings"

// CommandKind discriminates the recognized imperative directives.
type CommandKind int

const (
	CmdStop CommandKind = iota
	CmdMenu
	CmdReviewAvatar
	CmdSetAvatar
	CmdSetProfile
	CmdAppendProfile
	CmdBanWord
	CmdUnbanWord
)

// Command is one parsed directive with its payload, if any.
type Command struct {
	Kind    CommandKind
	Payload string
}

// ParseCommand recognizes the fixed directive vocabulary, case-insensitively.
// Exact tokens match the whole trimmed message; parameterized forms match by
// prefix. Returns nil for ordinary free text.
func ParseCommand(text string) *Command {
	trimmed := strings.TrimSpace(text)
	upper := strings.ToUpper(trimmed)

	switch upper {
	case "STOP":
		return &Command{Kind: CmdStop}
	case "MENU", "MENU AGAIN":
		return &Command{Kind: CmdMenu}
	}

	// Longer prefixes first so ADD TO MY PROFILE beats MY PROFILE and
	// REMOVE SIN BIN beats SIN BIN.
	prefixes := []struct {
		prefix string
		kind   CommandKind
	}{
		{"REVIEW AVATAR", CmdReviewAvatar},
		{"ADD TO MY PROFILE", CmdAppendProfile},
		{"MY PROFILE", CmdSetProfile},
		{"AVATAR", CmdSetAvatar},
		{"REMOVE SIN BIN:", CmdUnbanWord},
		{"SIN BIN:", CmdBanWord},
	}
	for _, p := range prefixes {
		if strings.HasPrefix(upper, p.prefix) {
			// The prefix must end the message or stop at a word boundary:
			// "AVATARS are cool" is free text, not an AVATAR command.
			if len(upper) > len(p.prefix) && !strings.HasSuffix(p.prefix, ":") && upper[len(p.prefix)] != ' ' {
				continue
			}
			payload := strings.TrimSpace(trimmed[len(p.prefix):])
			// Bare "AVATAR" or "MY PROFILE" with no payload is not a command.
			if payload == "" && p.kind != CmdReviewAvatar {
				return nil
			}
			return &Command{Kind: p.kind, Payload: payload}
		}
	}
	return nil
}

// parseAudience interprets an AVATAR payload as key: value pairs separated
// by newlines or semicolons. If nothing parses, the raw text is stored as a
// freeform summary instead of being rejected.
func parseAudience(payload string) map[string]string {
	out := map[string]string{}
	fields := strings.FieldsFunc(payload, func(r rune) bool {
		return r == '\n' || r == ';'
	})
	for _, f := range fields {
		k, v, ok := strings.Cut(f, ":")
		if !ok {
			continue
		}
		k = strings.ToLower(strings.TrimSpace(k))
		v = strings.TrimSpace(v)
		if k != "" && v != "" {
			out[k] = v
		}
	}
	if len(out) == 0 {
		out["summary"] = strings.TrimSpace(payload)
	}
	return out
}
