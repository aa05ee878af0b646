// Package filter parses AIP-160 filter expressions for list endpoints and
// translates them into SQL WHERE fragments.
package filter

import (
	"fmt"
	"strings"

	"go.einride.tech/aip/filtering"
	expr "google.golang.org/genproto/googleapis/api/expr/v1alpha1"

	apperrors "github.com/louisbranch/legacyvault/internal/platform/errors"
)

// Condition is a SQL WHERE clause fragment with positional parameters.
type Condition struct {
	Clause string
	Params []any
}

// Empty reports whether the condition constrains nothing.
func (c Condition) Empty() bool {
	return strings.TrimSpace(c.Clause) == ""
}

// transferFields maps filterable transfer field names to SQL columns.
var transferFields = map[string]string{
	"transfer_status": "transfer_status",
	"asset_id":        "asset_id",
	"from_user_id":    "from_user_id",
	"to_user_id":      "to_user_id",
}

// transferDeclarations returns the field declarations for transfer filtering.
func transferDeclarations() (*filtering.Declarations, error) {
	return filtering.NewDeclarations(
		filtering.DeclareStandardFunctions(),
		filtering.DeclareIdent("transfer_status", filtering.TypeString),
		filtering.DeclareIdent("asset_id", filtering.TypeString),
		filtering.DeclareIdent("from_user_id", filtering.TypeString),
		filtering.DeclareIdent("to_user_id", filtering.TypeString),
	)
}

// ParseTransferFilter parses an AIP-160 expression over transfer fields.
// An empty filter string yields an empty condition.
func ParseTransferFilter(filterStr string) (Condition, error) {
	if strings.TrimSpace(filterStr) == "" {
		return Condition{}, nil
	}

	decls, err := transferDeclarations()
	if err != nil {
		return Condition{}, fmt.Errorf("create declarations: %w", err)
	}

	parsed, err := filtering.ParseFilterString(filterStr, decls)
	if err != nil {
		return Condition{}, apperrors.Wrap(apperrors.CodeFilterInvalid, "parse filter", err)
	}

	cond, err := translateExpr(parsed.CheckedExpr.Expr, transferFields)
	if err != nil {
		return Condition{}, apperrors.Wrap(apperrors.CodeFilterInvalid, "translate filter", err)
	}
	return cond, nil
}

func translateExpr(e *expr.Expr, fields map[string]string) (Condition, error) {
	if e == nil {
		return Condition{}, nil
	}
	call, ok := e.ExprKind.(*expr.Expr_CallExpr)
	if !ok {
		return Condition{}, fmt.Errorf("unsupported expression type: %T", e.ExprKind)
	}
	return translateCall(call.CallExpr, fields)
}

func translateCall(call *expr.Expr_Call, fields map[string]string) (Condition, error) {
	switch call.Function {
	case "_&&_", "AND":
		return translateLogical(call.Args, "AND", fields)
	case "_||_", "OR":
		return translateLogical(call.Args, "OR", fields)
	case "_==_", "=":
		return translateComparison(call.Args, "=", fields)
	case "_!=_", "!=":
		return translateComparison(call.Args, "!=", fields)
	default:
		return Condition{}, fmt.Errorf("unsupported function: %s", call.Function)
	}
}

func translateLogical(args []*expr.Expr, op string, fields map[string]string) (Condition, error) {
	if len(args) != 2 {
		return Condition{}, fmt.Errorf("%s requires 2 arguments", op)
	}
	left, err := translateExpr(args[0], fields)
	if err != nil {
		return Condition{}, err
	}
	right, err := translateExpr(args[1], fields)
	if err != nil {
		return Condition{}, err
	}
	return Condition{
		Clause: fmt.Sprintf("(%s %s %s)", left.Clause, op, right.Clause),
		Params: append(left.Params, right.Params...),
	}, nil
}

func translateComparison(args []*expr.Expr, op string, fields map[string]string) (Condition, error) {
	if len(args) != 2 {
		return Condition{}, fmt.Errorf("comparison requires 2 arguments")
	}
	field, err := extractFieldName(args[0])
	if err != nil {
		return Condition{}, err
	}
	column, ok := fields[field]
	if !ok {
		return Condition{}, fmt.Errorf("unknown field: %s", field)
	}
	value, err := extractValue(args[1])
	if err != nil {
		return Condition{}, err
	}
	return Condition{
		Clause: fmt.Sprintf("%s %s ?", column, op),
		Params: []any{value},
	}, nil
}

func extractFieldName(e *expr.Expr) (string, error) {
	if e == nil {
		return "", fmt.Errorf("nil expression")
	}
	ident, ok := e.ExprKind.(*expr.Expr_IdentExpr)
	if !ok {
		return "", fmt.Errorf("expected identifier, got %T", e.ExprKind)
	}
	return ident.IdentExpr.Name, nil
}

func extractValue(e *expr.Expr) (any, error) {
	if e == nil {
		return nil, fmt.Errorf("nil expression")
	}
	constant, ok := e.ExprKind.(*expr.Expr_ConstExpr)
	if !ok {
		return nil, fmt.Errorf("expected constant, got %T", e.ExprKind)
	}
	switch kind := constant.ConstExpr.ConstantKind.(type) {
	case *expr.Constant_StringValue:
		return kind.StringValue, nil
	case *expr.Constant_Int64Value:
		return kind.Int64Value, nil
	case *expr.Constant_BoolValue:
		return kind.BoolValue, nil
	default:
		return nil, fmt.Errorf("unsupported constant type: %T", kind)
	}
}
