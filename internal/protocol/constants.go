package protocol

// Port is the fixed TCP port the legacy remote-control service listens on.
const Port = 55000

// AppName tags every envelope this client sends. The TV firmware expects
// this exact ASCII literal; it identifies the protocol application, not us.
const AppName = "iphone.iapp.samsung"

// Length fields are little-endian u16, so no field may exceed this.
const MaxFieldSize = 0xFFFF

const (
	authMarker   = 0x64 // first byte of an auth request payload
	reservedByte = 0x00
)

// ResponseKind classifies an inbound payload against the four signatures
// the TV is known to send during the authentication phase: granted (user
// allowed the controller), denied (user rejected it), await (prompt is on
// screen, not yet answered), timeout (prompt expired unanswered).
type ResponseKind int

const (
	ResponseUnknown ResponseKind = iota
	ResponseGranted
	ResponseDenied
	ResponseAwait
	ResponseTimeout
)

func (k ResponseKind) String() string {
	switch k {
	case ResponseGranted:
		return "granted"
	case ResponseDenied:
		return "denied"
	case ResponseAwait:
		return "await"
	case ResponseTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Known response payloads, compared whole against inbound frames.
// These are fixed by the TV firmware; never mutate them.
var (
	respGranted = []byte{0x64, 0x00, 0x01, 0x00}
	respDenied  = []byte{0x64, 0x00, 0x00, 0x00}
	respAwait   = []byte{0x0a, 0x00, 0x02, 0x00, 0x00, 0x00}
	respTimeout = []byte{0x65, 0x00}
)
