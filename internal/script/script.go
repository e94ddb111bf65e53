// Package script implements the scripting-host adapter (spec.md §6): a
// single entry point, `operation(kind_name, op) -> verdict`, backed by one
// process-wide gopher-lua VM. Grounded on the teacher's
// internal/scripting/engine.go (single *lua.LState, CallByParam{Protect:
// true}, per-directory loadDir). Satisfies entity.Script and
// mind.ScriptBackend, so the same host doubles as the default local NPC
// mind backend (SPEC_FULL.md §6, §11).
package script

import (
	"fmt"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/worldforge/worldcore/internal/op"
)

// Host wraps a single Lua VM. Single-goroutine access only (the pump
// thread); there is no internal locking, matching the teacher's Engine.
type Host struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewHost creates a Lua VM and loads every .lua file directly under dir.
func NewHost(dir string, log *zap.Logger) (*Host, error) {
	vm := lua.NewState(lua.Options{SkipOpenLibs: false})
	h := &Host{vm: vm, log: log}
	if err := h.loadDir(dir); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load scripts from %s: %w", dir, err)
	}
	return h, nil
}

func (h *Host) Close() { h.vm.Close() }

func (h *Host) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // no scripts directory: every entity behaves as "returned zero"
		}
		return err
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if err := h.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		h.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// entryPoint returns the global Lua function "on_<kindName>", the
// per-kind script hook an installHandler-style ruleset script defines.
func (h *Host) entryPoint(kindName string) lua.LValue {
	return h.vm.GetGlobal("on_" + kindName)
}

// Operation implements entity.Script and mind.ScriptBackend: it calls
// on_<kind>(op_table) if defined. The Lua function returns (handled:
// boolean, ops: table-array of op tables); a missing function, or one that
// errors, behaves as "not handled" (spec.md §6, §7: "Internal failures in
// scripts are caught at the script boundary; they log and return 'not
// handled' so the native path still runs").
func (h *Host) Operation(kindName string, o op.Operation) (handled bool, out []op.Operation, err error) {
	fn := h.entryPoint(kindName)
	if fn == lua.LNil {
		return false, nil, nil
	}

	arg := h.toLuaTable(o)
	callErr := h.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    2,
		Protect: true,
	}, arg)
	if callErr != nil {
		h.log.Error("lua script error", zap.String("kind", kindName), zap.Error(callErr))
		return false, nil, nil
	}

	opsResult := h.vm.Get(-1)
	handledResult := h.vm.Get(-2)
	h.vm.Pop(2)

	handled = handledResult == lua.LTrue
	if !handled {
		return false, nil, nil
	}

	if tbl, ok := opsResult.(*lua.LTable); ok {
		tbl.ForEach(func(_ lua.LValue, v lua.LValue) {
			if sub, ok := v.(*lua.LTable); ok {
				out = append(out, h.fromLuaTable(sub))
			}
		})
	}
	return true, out, nil
}

func (h *Host) toLuaTable(o op.Operation) *lua.LTable {
	t := h.vm.NewTable()
	t.RawSetString("kind", lua.LString(o.KindName()))
	t.RawSetString("from", lua.LString(o.From))
	t.RawSetString("to", lua.LString(o.To))
	t.RawSetString("serialno", lua.LNumber(o.Serialno))
	t.RawSetString("refno", lua.LNumber(o.Refno))
	t.RawSetString("future_seconds", lua.LNumber(o.FutureSeconds))

	args := h.vm.NewTable()
	for i, a := range o.Args {
		args.RawSetInt(i+1, h.argToLua(a))
	}
	t.RawSetString("args", args)
	return t
}

func (h *Host) argToLua(a op.Arg) *lua.LTable {
	t := h.vm.NewTable()
	for k, v := range a {
		t.RawSetString(k, h.valueToLua(v))
	}
	return t
}

func (h *Host) valueToLua(v any) lua.LValue {
	switch x := v.(type) {
	case string:
		return lua.LString(x)
	case int64:
		return lua.LNumber(x)
	case int:
		return lua.LNumber(x)
	case float64:
		return lua.LNumber(x)
	case []any:
		t := h.vm.NewTable()
		for i, e := range x {
			t.RawSetInt(i+1, h.valueToLua(e))
		}
		return t
	case op.Arg:
		return h.argToLua(x)
	case map[string]any:
		return h.argToLua(op.Arg(x))
	case nil:
		return lua.LNil
	default:
		return lua.LNil
	}
}

func (h *Host) fromLuaTable(t *lua.LTable) op.Operation {
	kindName := t.RawGetString("kind").String()
	o := op.Operation{
		Kind:          op.ParseKind(kindName),
		From:          t.RawGetString("from").String(),
		To:            t.RawGetString("to").String(),
		Serialno:      int64(lua.LVAsNumber(t.RawGetString("serialno"))),
		Refno:         int64(lua.LVAsNumber(t.RawGetString("refno"))),
		FutureSeconds: float64(lua.LVAsNumber(t.RawGetString("future_seconds"))),
	}
	if o.Kind == op.KindOther {
		o.Other = kindName
	}
	if argsTbl, ok := t.RawGetString("args").(*lua.LTable); ok {
		argsTbl.ForEach(func(_ lua.LValue, v lua.LValue) {
			if sub, ok := v.(*lua.LTable); ok {
				o.Args = append(o.Args, h.argFromLua(sub))
			}
		})
	}
	return o
}

func (h *Host) argFromLua(t *lua.LTable) op.Arg {
	a := op.Arg{}
	t.ForEach(func(k, v lua.LValue) {
		key, ok := k.(lua.LString)
		if !ok {
			return
		}
		a[string(key)] = h.valueFromLua(v)
	})
	return a
}

func (h *Host) valueFromLua(v lua.LValue) any {
	switch x := v.(type) {
	case lua.LString:
		return string(x)
	case lua.LNumber:
		return float64(x)
	case *lua.LTable:
		// Treat a table as a list if it has a contiguous integer index
		// range starting at 1, else as a nested map (spec.md §4.1).
		if n := x.Len(); n > 0 {
			list := make([]any, 0, n)
			for i := 1; i <= n; i++ {
				list = append(list, h.valueFromLua(x.RawGetInt(i)))
			}
			return list
		}
		return h.argFromLua(x)
	default:
		return nil
	}
}
