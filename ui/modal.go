package ui

import "sync"

// Auth modal tabs.
const (
	TabLogin    = "login"
	TabRegister = "register"
)

// AuthModal is the login/register dialog.
type AuthModal struct {
	mu   sync.Mutex
	open bool
	tab  string
}

func (m *AuthModal) Open() {
	m.mu.Lock()
	m.open = true
	m.mu.Unlock()
}

func (m *AuthModal) Close() {
	m.mu.Lock()
	m.open = false
	m.mu.Unlock()
}

// SwitchTab selects the register tab for "register" and login otherwise.
func (m *AuthModal) SwitchTab(to string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if to == TabRegister {
		m.tab = TabRegister
		return
	}
	m.tab = TabLogin
}

// State returns whether the modal is open and which tab is selected.
func (m *AuthModal) State() (open bool, tab string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tab = m.tab
	if tab == "" {
		tab = TabLogin
	}
	return m.open, tab
}
