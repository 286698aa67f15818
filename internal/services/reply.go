// Package services – render instructions
//
// Wizard operations do not talk to Telegram directly. They return a Reply, a
// transport-neutral render instruction: either a prompt with selectable
// options, an informational notice that ends the current attempt, or a
// launch outcome. The transport decides wording, locale, and keyboard
// layout. A nil Reply (with nil error) means the action was stale and must
// be ignored without output.
package services

// ReplyKind discriminates what a Reply asks the transport to render.
type ReplyKind int

const (
	// ReplyCityPrompt asks the user to pick a city from Options.
	ReplyCityPrompt ReplyKind = iota + 1
	// ReplyShopPrompt asks the user to pick a shop from Options.
	ReplyShopPrompt
	// ReplyMachinePrompt asks the user to pick a machine from Options.
	ReplyMachinePrompt
	// ReplyNoCities reports an empty city catalog. No session exists.
	ReplyNoCities
	// ReplyNoShops reports a city without shops. The session stays at the
	// shop stage with no way forward except restarting.
	ReplyNoShops
	// ReplyNoMachines reports a shop without machines. The session stays at
	// the machine stage with no way forward except restarting.
	ReplyNoMachines
	// ReplyNotConfigured reports a shop whose terminal URL is not set.
	ReplyNotConfigured
	// ReplyMachineMissing reports that the chosen machine row disappeared.
	ReplyMachineMissing
	// ReplyLaunchSuccess reports a completed pulse; Receipt is set.
	ReplyLaunchSuccess
	// ReplyLaunchFailure reports a failed pulse; TerminalURL is set.
	ReplyLaunchFailure
)

// Option is one selectable item on a prompt keyboard.
type Option struct {
	ID    int64  // callback payload
	Label string // button text (city/shop name, or machine number)
}

// Receipt carries the details shown after a successful launch.
type Receipt struct {
	MachineLabel int64   // user-facing machine number
	KG           float64 // load capacity
	CountWashes  int64   // lifetime wash counter
}

// Reply is a render instruction emitted by a wizard step.
type Reply struct {
	Kind        ReplyKind
	Options     []Option // set for prompt kinds
	Receipt     *Receipt // set for ReplyLaunchSuccess
	TerminalURL string   // set for ReplyLaunchFailure
}
