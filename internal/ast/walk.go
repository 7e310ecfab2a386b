package ast

// Walk calls fn for e and every node beneath it, parents first.
func Walk(e Expr, fn func(Expr)) {
	if e == nil {
		return
	}
	fn(e)
	switch n := e.(type) {
	case *CallExpr:
		walkAll(n.Args, fn)
		walkNamed(n.Named, fn)
	case *PropertyAccess:
		Walk(n.Target, fn)
	case *MethodCall:
		Walk(n.Target, fn)
		walkAll(n.Args, fn)
		walkNamed(n.Named, fn)
	case *Assignment:
		Walk(n.Target, fn)
		Walk(n.Value, fn)
	case *StatementList:
		walkAll(n.Statements, fn)
	case *LambdaExpr:
		Walk(n.Body, fn)
	case *LambdaInvocation:
		Walk(n.Lambda, fn)
		walkAll(n.Args, fn)
	case *OnceExpr:
		Walk(n.Body, fn)
	case *RefreshExpr:
		walkAll(n.Triggers, fn)
		Walk(n.Body, fn)
	}
}

func walkAll(es []Expr, fn func(Expr)) {
	for _, e := range es {
		Walk(e, fn)
	}
}

func walkNamed(named []NamedArg, fn func(Expr)) {
	for _, na := range named {
		Walk(na.Value, fn)
	}
}
