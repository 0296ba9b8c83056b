// Command-conflict prompter: after a plugin is installed or enabled, checks
// the backend's collision report and offers navigation to the command page.

package conflict

import (
	"context"
	"log"
	"sync"

	"github.com/astrbot-devs/console-go/internal/botapi"
)

// Prompt is the visible prompt state.
type Prompt struct {
	Show      bool `json:"show"`
	Conflicts int  `json:"conflicts"`
}

// Prompter owns the conflict prompt slot.
type Prompter struct {
	client *botapi.Client

	// onNavigate fires when the user accepts the prompt; the UI routes to
	// the command management page.
	onNavigate func()

	mu     sync.Mutex
	prompt Prompt
}

// New creates a prompter. onNavigate may be nil.
func New(client *botapi.Client, onNavigate func()) *Prompter {
	return &Prompter{client: client, onNavigate: onNavigate}
}

// CheckAndPrompt queries the collision report and arms the prompt when any
// conflicts exist. The check is advisory: a failure is logged and swallowed
// so it never disturbs the install or enable flow that triggered it.
func (p *Prompter) CheckAndPrompt(ctx context.Context) {
	summary, err := p.client.CommandSummary(ctx)
	if err != nil {
		log.Printf("Command conflict check failed: %v", err)
		return
	}
	if summary.Conflicts <= 0 {
		return
	}

	p.mu.Lock()
	p.prompt = Prompt{Show: true, Conflicts: summary.Conflicts}
	p.mu.Unlock()
}

// Confirm dismisses the prompt and triggers navigation.
func (p *Prompter) Confirm() {
	p.mu.Lock()
	p.prompt = Prompt{}
	p.mu.Unlock()
	if p.onNavigate != nil {
		p.onNavigate()
	}
}

// Dismiss clears the prompt without navigating.
func (p *Prompter) Dismiss() {
	p.mu.Lock()
	p.prompt = Prompt{}
	p.mu.Unlock()
}

// Snapshot returns the current prompt state.
func (p *Prompter) Snapshot() Prompt {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.prompt
}
