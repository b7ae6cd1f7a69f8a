package session

// Variable scoping (spec.md §4.5): a name is resolved at, in order,
// the context's local map, the enclosing branch's data map, then the
// process-global map. Setting chooses the first scope that already
// holds the name; a fresh write defaults to local.

// lookupVariable resolves name against ctx's three scopes in order.
func (ctx *Context) lookupVariable(name string) (any, bool) {
	if v, ok := ctx.Locals[name]; ok {
		return v, true
	}
	for b := ctx.Scope; b != nil; b = b.Parent() {
		if v, ok := b.DataGet(name); ok {
			return v, true
		}
	}
	if v, ok := ctx.Session.Registry.GlobalGet(name); ok {
		return v, true
	}
	return nil, false
}

// setVariable writes name to whichever scope already holds it,
// defaulting to local on a fresh name.
func (ctx *Context) setVariable(name string, value any) {
	if _, ok := ctx.Locals[name]; ok {
		ctx.Locals[name] = value
		return
	}
	for b := ctx.Scope; b != nil; b = b.Parent() {
		if _, ok := b.DataGet(name); ok {
			if s, isStr := value.(string); isStr {
				b.DataSet(name, s)
			}
			return
		}
	}
	if _, ok := ctx.Session.Registry.GlobalGet(name); ok {
		ctx.Session.Registry.GlobalSet(name, value)
		return
	}
	ctx.Locals[name] = value
}
