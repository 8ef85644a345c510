// ABOUTME: Persona renders the system directive prepended to every model request.
// ABOUTME: The text is opaque configuration; only the message counter is interpolated.

package turn

import "fmt"

const messageNumberDirective = "\n\n[SYSTEM VARIABLE]: message_number = %d"

// Persona is the behavioural directive sent ahead of the history.
type Persona struct {
	Text string
}

// Render appends the user message counter to the persona text.
func (p Persona) Render(userMessages int) string {
	return p.Text + fmt.Sprintf(messageNumberDirective, userMessages)
}
