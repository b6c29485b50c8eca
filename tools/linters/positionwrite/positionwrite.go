// Package positionwrite provides a linter that reports writes to the
// Position field of domain.Row outside the packages allowed to renumber.
//
// Positions of a list are always the dense sequence 0..n-1. Only the
// reorder engine renumbers rows, and only the SQL row decoder fills the
// field from a scanned column. Anywhere else a write is a bug waiting to
// break the sequence:
//
//	rows[i].Position = i       // reported outside the allowed packages
//	row.Position++             // reported
//	domain.Row{Position: pos}  // allowed: constructing a row is not a write
//
// Allowed packages are matched by import path suffix and can be changed
// with the -allow flag. The linter respects //nolint and
// //nolint:positionwrite comments on the same line or the line before.
package positionwrite

import (
	"go/ast"
	"go/token"
	"go/types"
	"strings"

	"golang.org/x/tools/go/analysis"
)

// DefaultAllow lists the package path suffixes that may write positions.
const DefaultAllow = "internal/domain,internal/application/collection,internal/infrastructure/persistence/rowsql"

var allow = DefaultAllow

// Analyzer is the positionwrite analyzer.
var Analyzer = &analysis.Analyzer{
	Name: "positionwrite",
	Doc:  "reports writes to domain.Row.Position outside the reorder engine and row decoding",
	Run:  run,
}

func init() {
	Analyzer.Flags.StringVar(&allow, "allow", DefaultAllow,
		"comma-separated package path suffixes allowed to write Row.Position")
}

func run(pass *analysis.Pass) (any, error) {
	if allowed(pass.Pkg.Path()) {
		return nil, nil
	}

	for _, file := range pass.Files {
		ast.Inspect(file, func(n ast.Node) bool {
			switch stmt := n.(type) {
			case *ast.AssignStmt:
				if stmt.Tok == token.DEFINE {
					return true
				}
				for _, lhs := range stmt.Lhs {
					check(pass, file, lhs)
				}
			case *ast.IncDecStmt:
				check(pass, file, stmt.X)
			case *ast.UnaryExpr:
				// &row.Position hands out a writable alias.
				if stmt.Op == token.AND {
					check(pass, file, stmt.X)
				}
			}
			return true
		})
	}

	return nil, nil
}

func allowed(pkgPath string) bool {
	for suffix := range strings.SplitSeq(allow, ",") {
		suffix = strings.TrimSpace(suffix)
		if suffix != "" && (pkgPath == suffix || strings.HasSuffix(pkgPath, "/"+suffix)) {
			return true
		}
	}
	return false
}

func check(pass *analysis.Pass, file *ast.File, expr ast.Expr) {
	sel, ok := ast.Unparen(expr).(*ast.SelectorExpr)
	if !ok || sel.Sel.Name != "Position" {
		return
	}
	if !isRowField(pass.TypesInfo.Selections[sel]) {
		return
	}
	if hasNolintComment(pass, file, sel) {
		return
	}
	pass.Reportf(sel.Pos(), "Row.Position is written outside the reorder engine; renumber with the collection reorder functions instead")
}

// isRowField reports whether selection picks the Position field of the
// Row type declared in a package named domain.
func isRowField(selection *types.Selection) bool {
	if selection == nil || selection.Kind() != types.FieldVal {
		return false
	}
	recv := selection.Recv()
	if ptr, ok := recv.Underlying().(*types.Pointer); ok {
		recv = ptr.Elem()
	}
	named, ok := types.Unalias(recv).(*types.Named)
	if !ok {
		return false
	}
	obj := named.Obj()
	return obj.Name() == "Row" && obj.Pkg() != nil && obj.Pkg().Name() == "domain"
}

func hasNolintComment(pass *analysis.Pass, file *ast.File, node ast.Node) bool {
	line := pass.Fset.Position(node.Pos()).Line
	for _, cg := range file.Comments {
		for _, c := range cg.List {
			commentLine := pass.Fset.Position(c.Pos()).Line
			if commentLine != line && commentLine != line-1 {
				continue
			}
			text := strings.TrimPrefix(c.Text, "//")
			directive, _, _ := strings.Cut(text, " ")
			name, linters, scoped := strings.Cut(directive, ":")
			if name != "nolint" {
				continue
			}
			if !scoped {
				return true
			}
			for l := range strings.SplitSeq(linters, ",") {
				if l == "positionwrite" {
					return true
				}
			}
		}
	}
	return false
}
