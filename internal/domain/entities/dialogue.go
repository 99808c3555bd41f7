package entities

// DialogueStep is one round of a command that prompts for more input.
// Expect is matched case-insensitively; Response is sent followed by a newline.
type DialogueStep struct {
	Expect   string
	Response string
	Optional bool
}

// InteractiveCommand is a command line together with the sub-prompts it
// raises on the device
type InteractiveCommand struct {
	Trigger string
	Script  []DialogueStep
}
