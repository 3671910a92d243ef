// Package extract derives structured fields from a chat transcript. Every
// function is a pure scan over the turns: nothing is mutated, and a missing
// prompt/answer pair resolves to a zero value rather than an error, so fields
// can be recomputed at any point in the session.
package extract

import (
	"regexp"
	"strings"

	"github.com/topproz/leadchat/internal/transcript"
)

// Field identifies a transcript-derivable customer field.
type Field string

const (
	FieldFirstName     Field = "firstName"
	FieldLastName      Field = "lastName"
	FieldEmail         Field = "emailId"
	FieldMobile        Field = "mobileNumber"
	FieldBusinessAddr  Field = "businessAddress"
	FieldServiceStreet Field = "serviceStreetAddress"
	FieldServiceZip    Field = "serviceZipCode"
	FieldCustomerType  Field = "customerType"
	FieldBusinessName  Field = "businessName"
)

// promptTable maps fields to the bot prompt that collects them. New prompts
// are data here, not new code paths.
var promptTable = map[Field]string{
	FieldFirstName:     "Please enter your first name",
	FieldLastName:      "What is your last name",
	FieldEmail:         "Please provide your email address",
	FieldMobile:        "Please enter your phone number",
	FieldBusinessAddr:  "Please provide your address",
	FieldServiceStreet: "Please provide the service street address",
	FieldServiceZip:    "Alright! provide your service address zip code.",
	FieldCustomerType:  "What type of customer you are?",
	FieldBusinessName:  "Ok, What is your business name?",
}

// streetAddressPrompts are the known phrasings the flow backend uses to ask
// for a service street address.
var streetAddressPrompts = []string{
	"Please provide your street address where you want to avail this service.",
	"Please provide your street address for service.",
	"Please provide the service street address",
}

// datePrompts end question collection: the date question and everything after
// it belong to scheduling, not the Q&A list.
var datePrompts = []string{
	"Alright, please provide a Date",
	"Okay, what date do you want",
	"What date do you want",
}

const (
	findAProMarker     = "Find a Pro"
	selectMethodPrompt = "Alright! Please select one of these choices.."
)

var zipCodeRE = regexp.MustCompile(`\b\d{5}(?:-\d{4})?\b`)

// SourceType labels how the lead originated.
type SourceType string

const (
	SourceStandard      SourceType = "Standard"
	SourceDirectBooking SourceType = "DirectBooking"
	SourceGetAQuote     SourceType = "Getaquotes"
)

// QA is one dynamically collected question/answer pair.
type QA struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	ID       string `json:"_id"`
}

// ByPrompt returns the user answer immediately following the first bot turn
// whose text contains promptSubstring, or "" when no such pair exists.
func ByPrompt(turns []transcript.ChatTurn, promptSubstring string) string {
	for i := 0; i+1 < len(turns); i++ {
		if turns[i].Sender != transcript.SenderBot || turns[i+1].Sender != transcript.SenderUser {
			continue
		}
		if strings.Contains(turns[i].Text, promptSubstring) {
			return turns[i+1].Text
		}
	}
	return ""
}

// FieldValue resolves one field through the prompt table.
func FieldValue(turns []transcript.ChatTurn, field Field) string {
	prompt, ok := promptTable[field]
	if !ok {
		return ""
	}
	return ByPrompt(turns, prompt)
}

// CustomerFields holds every prompt-table field in one pass-friendly shape.
type CustomerFields struct {
	FirstName       string
	LastName        string
	Email           string
	Mobile          string
	BusinessAddress string
	ServiceStreet   string
	ServiceZip      string
	CustomerType    string
	BusinessName    string
}

// Customer resolves all prompt-table fields from the transcript.
func Customer(turns []transcript.ChatTurn) CustomerFields {
	return CustomerFields{
		FirstName:       FieldValue(turns, FieldFirstName),
		LastName:        FieldValue(turns, FieldLastName),
		Email:           FieldValue(turns, FieldEmail),
		Mobile:          FieldValue(turns, FieldMobile),
		BusinessAddress: FieldValue(turns, FieldBusinessAddr),
		ServiceStreet:   FieldValue(turns, FieldServiceStreet),
		ServiceZip:      FieldValue(turns, FieldServiceZip),
		CustomerType:    FieldValue(turns, FieldCustomerType),
		BusinessName:    FieldValue(turns, FieldBusinessName),
	}
}

// ZipCode returns the first 5-digit (optionally ZIP+4) pattern found in a user
// turn, scanning in order.
func ZipCode(turns []transcript.ChatTurn) string {
	for _, turn := range turns {
		if turn.Sender != transcript.SenderUser {
			continue
		}
		if m := zipCodeRE.FindString(turn.Text); m != "" {
			return m
		}
	}
	return ""
}

// StreetAddress returns the answer to any of the known address prompts.
func StreetAddress(turns []transcript.ChatTurn) string {
	for i := 0; i+1 < len(turns); i++ {
		if turns[i].Sender != transcript.SenderBot || turns[i+1].Sender != transcript.SenderUser {
			continue
		}
		for _, prompt := range streetAddressPrompts {
			if strings.Contains(turns[i].Text, prompt) {
				return turns[i+1].Text
			}
		}
	}
	return ""
}

// Questions collects the free-form Q&A exchanged after the last "Find a Pro"
// turn. Each bot turn pairs with the immediately following user turn; a turn
// consumed as an answer is never also treated as a question. Collection stops
// at the first date prompt, which is itself excluded.
func Questions(turns []transcript.ChatTurn) []QA {
	start := -1
	for i, turn := range turns {
		if strings.Contains(turn.Text, findAProMarker) {
			start = i
		}
	}

	questions := []QA{}
	for i := start + 1; i < len(turns); i++ {
		turn := turns[i]
		if turn.Sender == transcript.SenderBot && isDatePrompt(turn.Text) {
			break
		}
		if turn.Sender != transcript.SenderBot {
			continue
		}
		if i+1 < len(turns) && turns[i+1].Sender == transcript.SenderUser {
			questions = append(questions, QA{
				Question: turn.Text,
				Answer:   turns[i+1].Text,
				ID:       turn.QuestionID,
			})
			i++ // the answer is consumed; skip it
		}
	}
	return questions
}

func isDatePrompt(text string) bool {
	for _, prompt := range datePrompts {
		if strings.Contains(text, prompt) {
			return true
		}
	}
	return false
}

// Images concatenates every turn's image list, preserving turn order and
// within-turn order.
func Images(turns []transcript.ChatTurn) []string {
	var images []string
	for _, turn := range turns {
		if len(turn.Images) > 0 {
			images = append(images, turn.Images...)
		}
	}
	return images
}

// DetermineSourceType resolves how the lead originated; the first matching
// rule wins, and the default is Standard.
func DetermineSourceType(turns []transcript.ChatTurn) SourceType {
	if anyTurnContains(turns, "Find a Pro") {
		return SourceStandard
	}
	if anyTurnContains(turns, "Book a pro") {
		return SourceDirectBooking
	}
	if anyTurnContains(turns, "Get a quote") {
		return SourceGetAQuote
	}
	return SourceStandard
}

func anyTurnContains(turns []transcript.ChatTurn, substr string) bool {
	for _, turn := range turns {
		if strings.Contains(turn.Text, substr) {
			return true
		}
	}
	return false
}

// SelectedMethod returns the user's reply to the booking-method choice prompt,
// or "" when the choice was never made.
func SelectedMethod(turns []transcript.ChatTurn) string {
	for i := 0; i+1 < len(turns); i++ {
		if turns[i].Sender != transcript.SenderBot {
			continue
		}
		if !strings.Contains(turns[i].Text, selectMethodPrompt) {
			continue
		}
		if turns[i+1].Sender == transcript.SenderUser {
			return turns[i+1].Text
		}
	}
	return ""
}
