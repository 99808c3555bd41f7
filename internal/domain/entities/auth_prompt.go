package entities

// AuthPrompt pairs a login prompt with the credential that answers it
type AuthPrompt struct {
	WaitFor []string // any of these substrings, case-insensitive
	SendCmd string   // line to send (empty sends a bare newline)
	Secret  bool     // SendCmd must never be logged
}

// LoginSequence returns the prompts a Cisco line login may present
func LoginSequence(p ConnectionParameters) []AuthPrompt {
	return []AuthPrompt{
		{WaitFor: []string{"username:", "login:"}, SendCmd: p.Username},
		{WaitFor: []string{"password:"}, SendCmd: p.Password, Secret: true},
	}
}
