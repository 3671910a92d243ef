package interpreter

import "regexp"

// InputMode is the single special-input state of the widget. Exactly one mode
// is active at a time; selecting one clears the others.
type InputMode string

const (
	InputModeNone       InputMode = "none"
	InputModeDatePicker InputMode = "date_picker"
	InputModeTimePicker InputMode = "time_picker"
	InputModeAttachment InputMode = "attachment_upload"
)

var (
	timeHintRE   = regexp.MustCompile(`(?i)time|what time|provide a time`)
	dateHintRE   = regexp.MustCompile(`(?i)date|what date|provide a date|when is your event`)
	attachHintRE = regexp.MustCompile(`(?i)attach|would you like to attach`)
)

// ClassifyInputMode maps a bot message to the input mode it calls for. The
// checks are mutually exclusive and evaluated in priority order: time, then
// date, then attachment; anything else clears the special input modes.
func ClassifyInputMode(message string) InputMode {
	switch {
	case timeHintRE.MatchString(message):
		return InputModeTimePicker
	case dateHintRE.MatchString(message):
		return InputModeDatePicker
	case attachHintRE.MatchString(message):
		return InputModeAttachment
	default:
		return InputModeNone
	}
}
