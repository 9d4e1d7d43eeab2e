package phasedapp

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/BrianJOC/distro-bootstrap/interaction"
	"github.com/BrianJOC/distro-bootstrap/phases"
)

const bridgeBuffer = 64

type eventMsg struct {
	event phases.Event
}

type promptMsg struct {
	input interaction.Input
	reply chan<- promptReply
}

type promptReply struct {
	value any
	err   error
}

type runFinishedMsg struct {
	err error
}

// bridge carries messages from the run goroutine into the UI loop. Events
// are fire-and-forget; prompts block until the UI replies or closes.
type bridge struct {
	msgs chan tea.Msg
	done chan struct{}
	once sync.Once
}

func newBridge() *bridge {
	return &bridge{
		msgs: make(chan tea.Msg, bridgeBuffer),
		done: make(chan struct{}),
	}
}

// OnEvent implements phases.Observer.
func (b *bridge) OnEvent(ev phases.Event) {
	b.send(context.Background(), eventMsg{event: ev})
}

// Confirm implements phases.Observer. A closed UI declines.
func (b *bridge) Confirm(prompt string) bool {
	in := interaction.ConfirmInput("", prompt, interaction.WithDefault(true))
	val, err := b.Prompt(context.Background(), in)
	if err != nil {
		return false
	}
	ok, _ := val.(bool)
	return ok
}

// Prompt implements interaction.Prompter.
func (b *bridge) Prompt(ctx context.Context, in interaction.Input) (any, error) {
	reply := make(chan promptReply, 1)
	if err := b.send(ctx, promptMsg{input: in, reply: reply}); err != nil {
		return nil, err
	}
	select {
	case r := <-reply:
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-b.done:
		return nil, ErrClosed
	}
}

func (b *bridge) finish(err error) {
	b.send(context.Background(), runFinishedMsg{err: err})
}

func (b *bridge) send(ctx context.Context, msg tea.Msg) error {
	select {
	case b.msgs <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-b.done:
		return ErrClosed
	}
}

func (b *bridge) close() {
	b.once.Do(func() { close(b.done) })
}

func waitBridgeCmd(b *bridge) tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-b.msgs:
			return msg
		case <-b.done:
			return nil
		}
	}
}
