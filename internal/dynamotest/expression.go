package dynamotest

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// condition is a conjunction of simple clauses. A nil condition matches
// every item.
type condition struct {
	clauses []clause
}

type clause struct {
	fn    string // attribute_exists, attribute_not_exists, begins_with or a comparison operator
	name  string
	value string
}

func parseCondition(expr string) (*condition, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}

	c := &condition{}

	for _, part := range strings.Split(expr, " AND ") {
		cl, err := parseClause(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		c.clauses = append(c.clauses, cl)
	}

	return c, nil
}

func parseClause(s string) (clause, error) {
	for _, fn := range []string{"attribute_exists", "attribute_not_exists", "begins_with"} {
		args, ok := strings.CutPrefix(s, fn+"(")
		if !ok {
			continue
		}

		args, ok = strings.CutSuffix(args, ")")
		if !ok {
			return clause{}, fmt.Errorf("malformed clause %q", s)
		}

		name, value, _ := strings.Cut(args, ",")

		return clause{fn: fn, name: strings.TrimSpace(name), value: strings.TrimSpace(value)}, nil
	}

	fields := strings.Fields(s)
	if len(fields) != 3 {
		return clause{}, fmt.Errorf("unsupported clause %q", s)
	}

	switch fields[1] {
	case "=", "<>", "<", "<=", ">", ">=":
		return clause{fn: fields[1], name: fields[0], value: fields[2]}, nil
	default:
		return clause{}, fmt.Errorf("unsupported operator in %q", s)
	}
}

func (c *condition) eval(item Item, names map[string]string, values map[string]types.AttributeValue) (bool, error) {
	if c == nil {
		return true, nil
	}

	for _, cl := range c.clauses {
		ok, err := cl.eval(item, names, values)
		if err != nil || !ok {
			return false, err
		}
	}

	return true, nil
}

func (cl clause) eval(item Item, names map[string]string, values map[string]types.AttributeValue) (bool, error) {
	attr, exists := item[resolveName(cl.name, names)]

	switch cl.fn {
	case "attribute_exists":
		return exists, nil
	case "attribute_not_exists":
		return !exists, nil
	}

	want, ok := values[cl.value]
	if !ok {
		return false, fmt.Errorf("missing expression value %s", cl.value)
	}

	if !exists {
		return false, nil
	}

	if cl.fn == "begins_with" {
		return strings.HasPrefix(str(attr), str(want)), nil
	}

	cmp, ok := compare(attr, want)
	if !ok {
		return false, nil
	}

	switch cl.fn {
	case "=":
		return cmp == 0, nil
	case "<>":
		return cmp != 0, nil
	case "<":
		return cmp < 0, nil
	case "<=":
		return cmp <= 0, nil
	case ">":
		return cmp > 0, nil
	default:
		return cmp >= 0, nil
	}
}

// compare orders two scalar values. Values of different types are not
// comparable.
func compare(a, b types.AttributeValue) (int, bool) {
	an, aok := a.(*types.AttributeValueMemberN)
	bn, bok := b.(*types.AttributeValueMemberN)

	if aok && bok {
		x, _ := strconv.ParseFloat(an.Value, 64)
		y, _ := strconv.ParseFloat(bn.Value, 64)

		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		default:
			return 0, true
		}
	}

	if aok != bok {
		return 0, false
	}

	return strings.Compare(str(a), str(b)), true
}

func resolveName(name string, names map[string]string) string {
	if strings.HasPrefix(name, "#") {
		if resolved, ok := names[name]; ok {
			return resolved
		}
	}

	return name
}
