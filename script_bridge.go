// script_bridge.go - embedded scripting bridge (A2)

package sniffer

import (
	lua "github.com/yuin/gopher-lua"
)

// ScriptBridge exposes the command surface to an embedded Lua runtime, the
// one sanctioned crossing point into the scripting interpreter the spec
// otherwise treats as an external collaborator.
type ScriptBridge struct {
	engine *Engine
	state  *lua.LState
}

// NewScriptBridge creates a Lua state with a global "sniff" table:
// sniff.exec(verb, arg) runs one command-surface verb and returns whether
// the engine handled it; dumpresult, dumphistory, dumprollback and dumptrace
// return text; dumppccount(limit) returns a table of {pc, count} rows.
func NewScriptBridge(engine *Engine) *ScriptBridge {
	L := lua.NewState()
	b := &ScriptBridge{engine: engine, state: L}

	sniff := L.NewTable()
	L.SetGlobal("sniff", sniff)
	L.SetField(sniff, "exec", L.NewFunction(b.luaExec))
	L.SetField(sniff, "dumpresult", L.NewFunction(b.luaDumpResult))
	L.SetField(sniff, "dumphistory", L.NewFunction(b.luaDumpHistory))
	L.SetField(sniff, "dumprollback", L.NewFunction(b.luaDumpRollback))
	L.SetField(sniff, "dumptrace", L.NewFunction(b.luaDumpTrace))
	L.SetField(sniff, "dumppccount", L.NewFunction(b.luaDumpPCCount))

	return b
}

// Close releases the underlying Lua state.
func (b *ScriptBridge) Close() { b.state.Close() }

// DoString runs a Lua script against this bridge's engine.
func (b *ScriptBridge) DoString(script string) error {
	return b.state.DoString(script)
}

// luaExec implements sniff.exec(verb, arg) -> handled.
func (b *ScriptBridge) luaExec(L *lua.LState) int {
	verb := L.CheckString(1)
	arg := L.OptString(2, "")
	handled := b.engine.Exec(verb, arg)
	L.Push(lua.LBool(handled))
	return 1
}

func (b *ScriptBridge) luaDumpResult(L *lua.LState) int {
	L.Push(lua.LString(DumpSnapshot(b.engine.Store().Result())))
	return 1
}

func (b *ScriptBridge) luaDumpHistory(L *lua.LState) int {
	L.Push(lua.LString(DumpHistory(b.engine.Store().History())))
	return 1
}

func (b *ScriptBridge) luaDumpRollback(L *lua.LState) int {
	L.Push(lua.LString(DumpHistory(b.engine.Store().RollbackStack())))
	return 1
}

func (b *ScriptBridge) luaDumpTrace(L *lua.LState) int {
	L.Push(lua.LString(b.engine.Trace().Dump()))
	return 1
}

func (b *ScriptBridge) luaDumpPCCount(L *lua.LState) int {
	limit := L.OptInt(1, 0)
	entries := b.engine.PCCounter().Dump(limit)
	out := L.NewTable()
	for _, e := range entries {
		row := L.NewTable()
		L.SetField(row, "pc", lua.LNumber(e.PC))
		L.SetField(row, "count", lua.LNumber(e.Count))
		out.Append(row)
	}
	L.Push(out)
	return 1
}
