package ui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	ForceQuit key.Binding
	Quit      key.Binding
	Dismiss   key.Binding

	LoginPage   key.Binding
	ResultsPage key.Binding
	SharePage   key.Binding

	Next   key.Binding
	Prev   key.Binding
	Submit key.Binding

	ToggleCreate   key.Binding
	ToggleRemember key.Binding
	TogglePublic   key.Binding

	Import  key.Binding
	Sort    key.Binding
	Reverse key.Binding
	Up      key.Binding
	Down    key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		ForceQuit: key.NewBinding(key.WithKeys("ctrl+c")),
		Quit:      key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "quit")),
		Dismiss:   key.NewBinding(key.WithKeys("enter", "esc", " "), key.WithHelp("enter", "dismiss")),

		LoginPage:   key.NewBinding(key.WithKeys("f1"), key.WithHelp("f1", "login")),
		ResultsPage: key.NewBinding(key.WithKeys("f2"), key.WithHelp("f2", "results")),
		SharePage:   key.NewBinding(key.WithKeys("f3"), key.WithHelp("f3", "share")),

		Next:   key.NewBinding(key.WithKeys("tab", "down"), key.WithHelp("tab", "next field")),
		Prev:   key.NewBinding(key.WithKeys("shift+tab", "up"), key.WithHelp("shift+tab", "previous field")),
		Submit: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "submit")),

		ToggleCreate:   key.NewBinding(key.WithKeys("ctrl+n"), key.WithHelp("ctrl+n", "login/sign-up")),
		ToggleRemember: key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "remember")),
		TogglePublic:   key.NewBinding(key.WithKeys("ctrl+p"), key.WithHelp("ctrl+p", "public")),

		Import:  key.NewBinding(key.WithKeys("enter", "i"), key.WithHelp("enter", "import")),
		Sort:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sort column")),
		Reverse: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reverse")),
		Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	}
}

// bindingHelp adapts a list of bindings to help.KeyMap.
type bindingHelp []key.Binding

func (b bindingHelp) ShortHelp() []key.Binding { return b }
func (b bindingHelp) FullHelp() [][]key.Binding { return [][]key.Binding{b} }

func (k keyMap) loginHelp() bindingHelp {
	return bindingHelp{k.Next, k.Submit, k.ToggleCreate, k.ToggleRemember, k.SharePage, k.Quit}
}

func (k keyMap) resultsHelp() bindingHelp {
	return bindingHelp{k.Up, k.Down, k.Import, k.Sort, k.Reverse, k.LoginPage, k.Quit}
}

func (k keyMap) shareHelp() bindingHelp {
	return bindingHelp{k.Next, k.Submit, k.TogglePublic, k.LoginPage, k.Quit}
}
