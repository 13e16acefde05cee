// Package keys is the symbolic keycode table of the legacy remote protocol.
// The wire layer treats key identifiers as opaque strings; this table only
// exists so callers can discover and spell-check the well-known names.
package keys

import "sort"

// Common key identifiers understood by the TV firmware. The set below
// covers the physical remote; firmwares accept more, and unknown strings
// are passed through unchanged by Resolve.
var names = map[string]string{
	"KEY_POWEROFF": "power off",
	"KEY_POWERON":  "power on",
	"KEY_POWER":    "power toggle",

	"KEY_SOURCE": "input source",
	"KEY_HDMI":   "HDMI input",
	"KEY_TV":     "TV input",

	"KEY_0": "digit 0",
	"KEY_1": "digit 1",
	"KEY_2": "digit 2",
	"KEY_3": "digit 3",
	"KEY_4": "digit 4",
	"KEY_5": "digit 5",
	"KEY_6": "digit 6",
	"KEY_7": "digit 7",
	"KEY_8": "digit 8",
	"KEY_9": "digit 9",

	"KEY_VOLUP":   "volume up",
	"KEY_VOLDOWN": "volume down",
	"KEY_MUTE":    "mute toggle",

	"KEY_CHUP":    "channel up",
	"KEY_CHDOWN":  "channel down",
	"KEY_PRECH":   "previous channel",
	"KEY_CH_LIST": "channel list",

	"KEY_UP":     "navigate up",
	"KEY_DOWN":   "navigate down",
	"KEY_LEFT":   "navigate left",
	"KEY_RIGHT":  "navigate right",
	"KEY_ENTER":  "select",
	"KEY_RETURN": "back",
	"KEY_EXIT":   "exit",

	"KEY_MENU":     "menu",
	"KEY_TOOLS":    "tools",
	"KEY_INFO":     "info",
	"KEY_GUIDE":    "programme guide",
	"KEY_CONTENTS": "smart hub",

	"KEY_PLAY":   "play",
	"KEY_PAUSE":  "pause",
	"KEY_STOP":   "stop",
	"KEY_REC":    "record",
	"KEY_FF":     "fast forward",
	"KEY_REWIND": "rewind",

	"KEY_RED":    "red button",
	"KEY_GREEN":  "green button",
	"KEY_YELLOW": "yellow button",
	"KEY_CYAN":   "blue button",
}

// Known reports whether id is in the table. A false return is advisory:
// the protocol layer will still encode and send the identifier.
func Known(id string) bool {
	_, ok := names[id]
	return ok
}

// Describe returns the human-readable label for id, or "" if unknown.
func Describe(id string) string {
	return names[id]
}

// List returns all known identifiers in sorted order.
func List() []string {
	out := make([]string, 0, len(names))
	for id := range names {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
