package services

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/carlosrabelo/vlanctl/internal/domain/entities"
)

const (
	DefaultSettleDelay    = 500 * time.Millisecond
	DefaultDialogueRounds = 120
)

// DialogueEngine drives commands that ask follow-up questions, answering
// each expected sub-prompt from a script
type DialogueEngine struct {
	session   *Session
	settle    time.Duration
	maxRounds int
}

// NewDialogueEngine builds an engine on an open session. Each round waits
// at most settle for output; maxRounds bounds the whole dialogue.
func NewDialogueEngine(session *Session, settle time.Duration, maxRounds int) *DialogueEngine {
	if settle <= 0 {
		settle = DefaultSettleDelay
	}
	if maxRounds <= 0 {
		maxRounds = DefaultDialogueRounds
	}
	return &DialogueEngine{session: session, settle: settle, maxRounds: maxRounds}
}

// Run writes trigger and answers the script steps as their prompts show up.
// It finishes once every required step was answered and the CLI prompt is
// back. The transcript collected so far is returned on every path.
func (e *DialogueEngine) Run(ctx context.Context, trigger string, script []entities.DialogueStep) (string, error) {
	log := e.session.log.WithField("dialogue", trigger)
	log.Debugf("Executing: %s", trigger)
	if err := e.session.send(trigger); err != nil {
		return "", err
	}

	var raw strings.Builder
	next := 0   // first step not answered or skipped yet
	cursor := 0 // transcript offset already consumed by a matched step
	text := ""

	for round := 0; round < e.maxRounds; round++ {
		chunk, err := e.session.ch.ReadAvailable(ctx, e.settle)
		if err != nil {
			return text, e.session.channelError("dialogue", err)
		}
		if len(chunk) > 0 {
			raw.Write(chunk)
			log.Tracef("Read: %q", chunk)
		}
		text = cleanOutput(raw.String())
		// Backspaces in a later chunk can erase text already consumed.
		cursor = min(cursor, len(text))

		// The whole unconsumed transcript is rescanned so a sub-prompt split
		// across reads is still found.
		for next < len(script) {
			idx, end := matchStep(text[cursor:], script, next)
			if idx < 0 {
				break
			}
			step := script[idx]
			if err := e.session.send(step.Response); err != nil {
				return text, err
			}
			log.Debugf("Answered %q with %q", step.Expect, step.Response)
			next = idx + 1
			cursor += end
		}

		rest := text[cursor:]
		if !e.session.atPrompt(rest) {
			continue
		}
		if pending := firstRequired(script, next); pending >= 0 {
			return text, entities.Errorf(entities.ErrorKindUnexpected, "dialogue",
				"device returned to prompt before asking for %q", script[pending].Expect)
		}
		if strings.Contains(strings.ToLower(rest), "%error") {
			return text, entities.Errorf(entities.ErrorKindUnexpected, "dialogue", "device reported an error: %s", errorLine(rest))
		}
		return text, nil
	}

	return text, entities.Errorf(entities.ErrorKindTimeout, "dialogue", "'%s' did not finish within %d rounds", trigger, e.maxRounds)
}

// matchStep finds the first step from next on whose prompt occurs in text
// and returns it with the byte offset just past the match in text.
// Optional steps may be passed over; a required step may not.
func matchStep(text string, script []entities.DialogueStep, next int) (int, int) {
	for i := next; i < len(script); i++ {
		if script[i].Expect != "" {
			if loc := expectPattern(script[i].Expect).FindStringIndex(text); loc != nil {
				return i, loc[1]
			}
		}
		if !script[i].Optional {
			break
		}
	}
	return -1, 0
}

// expectPattern matches expect case-insensitively. Offsets refer to the
// original text, which lowercasing the haystack would not preserve.
func expectPattern(expect string) *regexp.Regexp {
	return regexp.MustCompile("(?i)" + regexp.QuoteMeta(expect))
}

func firstRequired(script []entities.DialogueStep, next int) int {
	for i := next; i < len(script); i++ {
		if !script[i].Optional {
			return i
		}
	}
	return -1
}

func errorLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if strings.Contains(strings.ToLower(line), "%error") {
			return strings.TrimSpace(line)
		}
	}
	return ""
}
