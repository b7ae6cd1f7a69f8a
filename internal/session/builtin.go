package session

import (
	"github.com/scpid/scpid/internal/access"
	"github.com/scpid/scpid/internal/param"
	"github.com/scpid/scpid/internal/tree"
)

// RegisterBuiltins installs the handful of leaves every command tree
// needs regardless of what modules get loaded onto it: ACCess (spec.md
// §6's level/exclusive/stealth control), and RETurn/BREak, the two
// control-flow primitives a macro body invokes to produce the
// ReturnValue/Break signals internal/signal models (nothing else in
// the tree can raise them; original_source's return_leafs.py grouped
// the equivalent commands together).
func RegisterBuiltins(root *tree.Branch) error {
	for _, leaf := range []*tree.Leaf{
		newAccessLeaf(root),
		newReturnLeaf(root),
		newBreakLeaf(root),
	} {
		if err := root.AddInstance(leaf, false); err != nil {
			return err
		}
	}
	return nil
}

// newAccessLeaf builds `ACCess <level> [-exclusive] [-stealth]`.
func newAccessLeaf(root *tree.Branch) *tree.Leaf {
	l := tree.NewLeaf(root, "ACCess", access.Guest)
	l.Inputs = []param.Parameter{
		{
			Name: "level", Type: param.TypeEnumeration,
			Enum: []string{"GUEST", "OBSERVER", "CONTROLLER", "ADMINISTRATOR", "FULL"},
		},
		{Name: "exclusive", Named: true, Type: param.TypeBoolean, HasDefault: true, Default: "false"},
		{Name: "stealth", Named: true, Type: param.TypeBoolean, HasDefault: true, Default: "false"},
	}
	l.Run = func(in map[string]any) (map[string]any, error) {
		ctx, _ := in["__ctx"].(*Context)

		levelName, _ := in["level"].(string)
		level, ok := access.Parse(levelName)
		if !ok {
			level = access.Guest
		}

		if err := ctx.Session.SetLevel(level); err != nil {
			return nil, err
		}

		if exclusive, _ := in["exclusive"].(bool); exclusive {
			if err := ctx.Session.Registry.TryAcquireExclusive(ctx.Session, level); err != nil {
				return nil, err
			}
			ctx.Session.Exclusive = true
		}
		if stealth, _ := in["stealth"].(bool); stealth {
			ctx.Session.Stealth = true
		}

		return map[string]any{}, nil
	}
	return l
}

// newReturnLeaf builds `RETurn [value]`, the macro command that ends
// the calling macro session's body and hands value back as its call's
// outputs (spec.md §4.5's ReturnValue signal). A bare `RETurn` returns
// an empty result set.
func newReturnLeaf(root *tree.Branch) *tree.Leaf {
	l := tree.NewLeaf(root, "RETurn", access.Guest)
	l.Returns = true
	l.Inputs = []param.Parameter{
		{Name: "value", Type: param.TypeString, HasDefault: true, Default: ""},
	}
	return l
}

// newBreakLeaf builds `BREak [levels]`, unwinding levels nested macro
// blocks (default 1) via a Break signal.
func newBreakLeaf(root *tree.Branch) *tree.Leaf {
	l := tree.NewLeaf(root, "BREak", access.Guest)
	l.Breaks = true
	l.Inputs = []param.Parameter{
		{Name: "levels", Type: param.TypeInteger, HasDefault: true, Default: "1"},
	}
	return l
}
