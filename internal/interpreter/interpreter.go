// Package interpreter turns raw conversational-flow replies into transcript
// turns, button sets, and side-effect triggers. Replies are classified into an
// explicit variant (service context strip, pro ranking, identified question,
// plain turns) before any handling, so there is no order-sensitive fallthrough.
package interpreter

import (
	"encoding/json"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/topproz/leadchat/internal/transcript"
)

// RawReply is the wire shape of a flow-endpoint response. Message entries may
// be literal text or JSON-encoded service descriptors; Buttons aligns with the
// non-JSON entries positionally and the lengths are not guaranteed equal.
type RawReply struct {
	Message []string            `json:"message"`
	Buttons []transcript.Button `json:"buttons,omitempty"`
}

// Mode identifies how a reply was classified.
type Mode string

const (
	ModeProRanking         Mode = "pro_ranking"
	ModeIdentifiedQuestion Mode = "identified_question"
	ModePlainTurns         Mode = "plain_turns"
)

// Trigger is a side effect the session controller must run after applying an
// outcome.
type Trigger string

const (
	// TriggerCreateNewLead finalizes the new-customer lead flow.
	TriggerCreateNewLead Trigger = "create_new_lead"
	// TriggerBookOrQuote finalizes a direct booking or quote using the method
	// previously chosen in the transcript.
	TriggerBookOrQuote Trigger = "book_or_quote"
	// TriggerProfileLead fetches the caller's stored profile and, when found,
	// creates the existing-customer lead (falling back to the new-customer
	// flow when the profile lookup reports no record).
	TriggerProfileLead Trigger = "profile_lead"
)

// Outcome is everything a reply resolves to: turns to append, turns to hold
// back, the button presentation, the input mode, and follow-up triggers.
type Outcome struct {
	Mode           Mode
	Turns          []transcript.ChatTurn
	Deferred       []transcript.ChatTurn
	Buttons        []transcript.Button
	ShowButtons    bool
	DynamicButtons bool
	InputMode      InputMode
	ServiceContext *transcript.ServiceContext
	Triggers       []Trigger
}

const (
	prosContactedPlural   = "Qualified Pro's has been contacted, they will contact you shortly"
	prosContactedSingular = "Qualified Pro has been contacted. He will contact you shortly"
	connectingNotice      = "Please wait connecting"

	proListHeader = "Here is a list of Pros that can serve your area."
	proListFooter = "Which pro do you want to send the request to?"

	findAProLabel  = "Find a Pro"
	bookAProLabel  = "Book a Pro"
	getAQuoteLabel = "Get a Quote"
)

var (
	distanceRE = regexp.MustCompile(`(\d+(?:\.\d+)?)\s?(mi|ft)`)
	hexID24RE  = regexp.MustCompile(`^[a-fA-F0-9]{24}$`)
)

const feetPerMile = 5280

// Interpret classifies a reply against the session history and produces the
// outcome to apply. It is pure: neither the reply nor the history is mutated.
func Interpret(reply RawReply, history []transcript.ChatTurn) Outcome {
	out := Outcome{InputMode: InputModeNone}

	messages := make([]string, 0, len(reply.Message))
	for _, msg := range reply.Message {
		if ctx, ok := parseServiceContext(msg); ok {
			out.ServiceContext = ctx
			continue
		}
		messages = append(messages, msg)
	}

	findAPro := userSelected(history, findAProLabel)
	bookOrQuote := userSelected(history, bookAProLabel) || userSelected(history, getAQuoteLabel)

	switch {
	case len(messages) > 2 && bookOrQuote:
		out.Mode = ModeProRanking
		out.Turns = rankPros(messages, reply.Buttons)
		out.DynamicButtons = true
	case (len(messages) == 2 || len(messages) == 3) && findAPro &&
		(IsContentID(messages[0]) || IsContentID(messages[1])):
		out.Mode = ModeIdentifiedQuestion
		id, question := splitIdentifiedQuestion(messages)
		out.Turns = []transcript.ChatTurn{{Sender: transcript.SenderBot, Text: question, QuestionID: id}}
	default:
		out.Mode = ModePlainTurns
		interpretPlainTurns(&out, messages, reply.Buttons, findAPro)
	}

	// Button presentation is decided by the reply alone, independent of mode.
	// Ranking mode only switches the rendering path via DynamicButtons.
	if reply.Buttons != nil {
		out.Buttons = reply.Buttons
		out.ShowButtons = true
	}

	return out
}

// parseServiceContext recognizes a JSON-encoded service descriptor embedded in
// the message list. Only JSON objects count; scalar JSON such as a bare number
// stays a renderable message.
func parseServiceContext(msg string) (*transcript.ServiceContext, bool) {
	trimmed := strings.TrimSpace(msg)
	if !strings.HasPrefix(trimmed, "{") {
		return nil, false
	}
	var ctx transcript.ServiceContext
	if err := json.Unmarshal([]byte(trimmed), &ctx); err != nil {
		return nil, false
	}
	return &ctx, true
}

// IsContentID reports whether s is a 24-character hexadecimal backend content
// identifier.
func IsContentID(s string) bool {
	return hexID24RE.MatchString(s)
}

// ParseDistance extracts a distance from a pro description and normalizes it
// to feet for comparison. Messages with no parseable distance sort last.
func ParseDistance(message string) float64 {
	m := distanceRE.FindStringSubmatch(message)
	if m == nil {
		return math.MaxFloat64
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return math.MaxFloat64
	}
	if m[2] == "mi" {
		return value * feetPerMile
	}
	return value
}

type proPair struct {
	message string
	button  transcript.Button
}

// rankPros drops the protocol framing (first and last message), pairs the rest
// positionally with buttons, sorts ascending by distance, and wraps the top
// three in the fixed header and footer turns.
func rankPros(messages []string, buttons []transcript.Button) []transcript.ChatTurn {
	trimmed := messages[1 : len(messages)-1]

	pairs := make([]proPair, 0, len(trimmed))
	for i, msg := range trimmed {
		if i < len(buttons) {
			pairs = append(pairs, proPair{message: msg, button: buttons[i]})
		}
	}

	sort.SliceStable(pairs, func(a, b int) bool {
		return ParseDistance(pairs[a].message) < ParseDistance(pairs[b].message)
	})

	if len(pairs) > 3 {
		pairs = pairs[:3]
	}

	turns := make([]transcript.ChatTurn, 0, len(pairs)+2)
	turns = append(turns, transcript.ChatTurn{Sender: transcript.SenderBot, Text: proListHeader})
	for _, p := range pairs {
		button := p.button
		turns = append(turns, transcript.ChatTurn{Sender: transcript.SenderBot, Text: p.message, Button: &button})
	}
	turns = append(turns, transcript.ChatTurn{Sender: transcript.SenderBot, Text: proListFooter})
	return turns
}

// splitIdentifiedQuestion extracts the {id, question} pair: message[1]/[2]
// when three messages remain, message[0]/[1] when two.
func splitIdentifiedQuestion(messages []string) (id, question string) {
	if len(messages) == 3 {
		return messages[1], messages[2]
	}
	return messages[0], messages[1]
}

func interpretPlainTurns(out *Outcome, messages []string, buttons []transcript.Button, findAPro bool) {
	for i, msg := range messages {
		switch msg {
		case prosContactedPlural:
			out.Deferred = append(out.Deferred, transcript.ChatTurn{Sender: transcript.SenderBot, Text: msg})
			if findAPro {
				out.Triggers = append(out.Triggers, TriggerCreateNewLead)
			} else {
				out.Triggers = append(out.Triggers, TriggerBookOrQuote)
			}
			continue
		case prosContactedSingular:
			out.Deferred = append(out.Deferred, transcript.ChatTurn{Sender: transcript.SenderBot, Text: msg})
			out.Triggers = append(out.Triggers, TriggerBookOrQuote)
			continue
		}

		turn := transcript.ChatTurn{Sender: transcript.SenderBot, Text: msg}
		if i < len(buttons) {
			turn.QuestionID = buttons[i].ID
		}
		out.Turns = append(out.Turns, turn)
		out.InputMode = ClassifyInputMode(msg)

		if strings.Contains(msg, prosContactedPlural) || strings.Contains(msg, connectingNotice) {
			out.Triggers = append(out.Triggers, TriggerProfileLead)
		}
	}
}

// userSelected reports whether the user previously clicked the given choice.
func userSelected(history []transcript.ChatTurn, label string) bool {
	for _, turn := range history {
		if turn.Sender == transcript.SenderUser && turn.Text == label {
			return true
		}
	}
	return false
}
