package testutil

import "time"

// CommandCall records a control request received by the fake amplifier
type CommandCall struct {
	Timestamp time.Time
	Request   string // Value, ValueUp or ValueDn
	Channel   int
	Property  string
	Value     string
}

// FilterCommands filters calls by request and property
func FilterCommands(calls []CommandCall, request, property string) []CommandCall {
	var filtered []CommandCall
	for _, call := range calls {
		if call.Request == request && call.Property == property {
			filtered = append(filtered, call)
		}
	}
	return filtered
}

// FindCommand finds the most recent Value request for a channel and property
func FindCommand(calls []CommandCall, channel int, property string) *CommandCall {
	for i := len(calls) - 1; i >= 0; i-- {
		call := calls[i]
		if call.Request == "Value" && call.Channel == channel && call.Property == property {
			return &call
		}
	}
	return nil
}
