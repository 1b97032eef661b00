package scripting

import lua "github.com/yuin/gopher-lua"

// RegisterModules defines an empty engine global table in L; no engine.*
// modules are registered into it.
//
// Precondition: L must be from NewSandboxedState.
// Postcondition: engine global is defined in L.
func (m *Manager) RegisterModules(L *lua.LState) {
	engine := L.NewTable()
	L.SetGlobal("engine", engine)
}
