package engine

import (
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/opcore/op"
)

// guest assembles a minimal core module for binding tests: it imports
// ops, re-exports each through a wrapper named call_<op>, and provides
// memory, a bump cabi_realloc and an opcore_resolve that stores its four
// arguments at address 0.
type guest struct {
	imports []guestFunc
	funcs   []guestFunc
}

type guestFunc struct {
	name    string
	params  []api.ValueType
	results []api.ValueType
	body    []byte
}

const heapBase = 1024

func newGuest(decls ...*op.Decl) *guest {
	g := &guest{}
	for i, d := range decls {
		params, results := ImportSignature(d)
		g.imports = append(g.imports, guestFunc{name: d.Name, params: params, results: results})

		var body []byte
		for p := range params {
			body = append(body, 0x20)
			body = append(body, uleb(uint64(p))...)
		}
		body = append(body, 0x10)
		body = append(body, uleb(uint64(i))...)
		g.funcs = append(g.funcs, guestFunc{name: "call_" + d.Name, params: params, results: results, body: body})
	}

	i32 := api.ValueTypeI32
	g.funcs = append(g.funcs, guestFunc{
		name:    CabiRealloc,
		params:  []api.ValueType{i32, i32, i32, i32},
		results: []api.ValueType{i32},
		// global.get 0; global.get 0; local.get 3; i32.add; global.set 0
		body: []byte{0x23, 0x00, 0x23, 0x00, 0x20, 0x03, 0x6a, 0x24, 0x00},
	})

	var store []byte
	for p := 0; p < 4; p++ {
		// i32.const 0; local.get p; i32.store align=2 offset=4p
		store = append(store, 0x41, 0x00, 0x20, byte(p), 0x36, 0x02)
		store = append(store, uleb(uint64(4*p))...)
	}
	g.funcs = append(g.funcs, guestFunc{
		name:   ResolveExport,
		params: []api.ValueType{i32, i32, i32, i32},
		body:   store,
	})
	return g
}

func (g *guest) bytes() []byte {
	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	all := append(append([]guestFunc(nil), g.imports...), g.funcs...)
	var types [][]byte
	for _, f := range all {
		t := []byte{0x60}
		t = append(t, valueTypes(f.params)...)
		t = append(t, valueTypes(f.results)...)
		types = append(types, t)
	}
	out = append(out, section(1, types)...)

	var imports [][]byte
	for i, f := range g.imports {
		e := name(ModuleName)
		e = append(e, name(f.name)...)
		e = append(e, 0x00)
		e = append(e, uleb(uint64(i))...)
		imports = append(imports, e)
	}
	out = append(out, section(2, imports)...)

	var funcs [][]byte
	for i := range g.funcs {
		funcs = append(funcs, uleb(uint64(len(g.imports)+i)))
	}
	out = append(out, section(3, funcs)...)

	out = append(out, section(5, [][]byte{{0x00, 0x01}})...)

	global := []byte{0x7f, 0x01, 0x41}
	global = append(global, sleb(heapBase)...)
	global = append(global, 0x0b)
	out = append(out, section(6, [][]byte{global})...)

	exports := [][]byte{append(name("memory"), 0x02, 0x00)}
	for i, f := range g.funcs {
		e := append(name(f.name), 0x00)
		exports = append(exports, append(e, uleb(uint64(len(g.imports)+i))...))
	}
	out = append(out, section(7, exports)...)

	var code [][]byte
	for _, f := range g.funcs {
		body := append([]byte{0x00}, f.body...)
		body = append(body, 0x0b)
		code = append(code, append(uleb(uint64(len(body))), body...))
	}
	out = append(out, section(10, code)...)
	return out
}

func section(id byte, entries [][]byte) []byte {
	content := uleb(uint64(len(entries)))
	for _, e := range entries {
		content = append(content, e...)
	}
	out := []byte{id}
	out = append(out, uleb(uint64(len(content)))...)
	return append(out, content...)
}

func valueTypes(ts []api.ValueType) []byte {
	out := uleb(uint64(len(ts)))
	for _, t := range ts {
		out = append(out, byte(t))
	}
	return out
}

func name(s string) []byte {
	return append(uleb(uint64(len(s))), s...)
}

func uleb(v uint64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			return out
		}
	}
}

func sleb(v int64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		done := (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0)
		if !done {
			b |= 0x80
		}
		out = append(out, b)
		if done {
			return out
		}
	}
}
