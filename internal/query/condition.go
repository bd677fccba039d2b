package query

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FilterOp names a leaf comparison or a boolean combinator in a Condition tree.
type FilterOp string

const (
	OpEq        FilterOp = "="
	OpNeq       FilterOp = "!="
	OpGt        FilterOp = ">"
	OpLt        FilterOp = "<"
	OpGte       FilterOp = ">="
	OpLte       FilterOp = "<="
	OpLike      FilterOp = "LIKE"
	OpIsNull    FilterOp = "IS NULL"
	OpIsNotNull FilterOp = "IS NOT NULL"
	OpAnd       FilterOp = "AND"
	OpOr        FilterOp = "OR"
)

// Condition is one node of a WHERE filter tree: either a leaf (Column Operator
// Value) or an AND/OR combinator over Children.
type Condition struct {
	Operator FilterOp    `json:"operator"`
	Column   string      `json:"column,omitempty"`
	Value    interface{} `json:"value,omitempty"`
	Children []Condition `json:"children,omitempty"`

	resolvedTarget string // string form of Value, computed once after parse
	resolvedColIdx int    // column index resolved against a header map; -1 if unresolved
	lowerTarget    string // lower-cased resolvedTarget, for LIKE
}

// resolveTargets precomputes the string form of every leaf's Value so
// Evaluate/EvaluateFast never format on the hot path.
func (c *Condition) resolveTargets() {
	if c.Value != nil {
		c.resolvedTarget = fmt.Sprintf("%v", c.Value)
	}
	c.resolvedColIdx = -1
	for i := range c.Children {
		c.Children[i].resolveTargets()
	}
}

// Evaluate reports whether row (column name, lower-cased, -> value) satisfies
// the condition tree.
func (c *Condition) Evaluate(row map[string]string) bool {
	switch c.Operator {
	case OpAnd:
		for i := range c.Children {
			if !c.Children[i].Evaluate(row) {
				return false
			}
		}
		return true
	case OpOr:
		for i := range c.Children {
			if c.Children[i].Evaluate(row) {
				return true
			}
		}
		return false
	}

	val, exists := row[c.Column]

	switch c.Operator {
	case OpIsNull:
		return !exists || val == "" || val == "NULL"
	case OpIsNotNull:
		return exists && val != "" && val != "NULL"
	}

	if !exists {
		return false
	}

	return c.compare(val, c.resolvedTarget)
}

// ResolveColumns pre-resolves Column against a header name -> index map so
// EvaluateFast can index straight into a row's []string cells. Must be
// called once, after header parsing, before EvaluateFast is used.
func (c *Condition) ResolveColumns(headers map[string]int) {
	c.resolvedColIdx = -1
	if c.Column != "" {
		if idx, ok := headers[c.Column]; ok {
			c.resolvedColIdx = idx
		} else if idx, ok := headers[strings.ToLower(c.Column)]; ok {
			c.resolvedColIdx = idx
		}
	}
	if c.Operator == OpLike {
		c.lowerTarget = strings.ToLower(c.resolvedTarget)
	}
	for i := range c.Children {
		c.Children[i].ResolveColumns(headers)
	}
}

// EvaluateFast is Evaluate's zero-allocation counterpart: it indexes cols
// directly with the column index ResolveColumns resolved, instead of a
// map[string]string lookup.
func (c *Condition) EvaluateFast(cols []string) bool {
	switch c.Operator {
	case OpAnd:
		for i := range c.Children {
			if !c.Children[i].EvaluateFast(cols) {
				return false
			}
		}
		return true
	case OpOr:
		for i := range c.Children {
			if c.Children[i].EvaluateFast(cols) {
				return true
			}
		}
		return false
	}

	idx := c.resolvedColIdx
	var val string
	exists := idx >= 0 && idx < len(cols)
	if exists {
		val = cols[idx]
	}

	switch c.Operator {
	case OpIsNull:
		return !exists || val == "" || val == "NULL"
	case OpIsNotNull:
		return exists && val != "" && val != "NULL"
	}

	if !exists {
		return false
	}

	if c.Operator == OpLike {
		return strings.Contains(strings.ToLower(val), c.lowerTarget)
	}
	return c.compare(val, c.resolvedTarget)
}

// compare implements the non-null, non-LIKE leaf operators shared by
// Evaluate and EvaluateFast.
func (c *Condition) compare(val, target string) bool {
	switch c.Operator {
	case OpEq:
		return val == target
	case OpNeq:
		return val != target
	case OpGt:
		return val > target
	case OpLt:
		return val < target
	case OpGte:
		return val >= target
	case OpLte:
		return val <= target
	case OpLike:
		return strings.Contains(strings.ToLower(val), strings.ToLower(target))
	}
	return false
}

// ExtractIndexConditions returns the top-level equality conditions (column,
// lower-cased -> value) usable for composite index lookup: either the
// condition itself if it is a single equality leaf, or every equality child
// of a top-level AND.
func (c *Condition) ExtractIndexConditions() map[string]string {
	res := make(map[string]string)
	switch c.Operator {
	case OpAnd:
		for _, child := range c.Children {
			if child.Operator == OpEq {
				res[strings.ToLower(child.Column)] = fmt.Sprintf("%v", child.Value)
			}
		}
	case OpEq:
		res[strings.ToLower(c.Column)] = fmt.Sprintf("%v", c.Value)
	}
	return res
}

// ParseCondition parses a WHERE clause from JSON. Two shapes are accepted:
// a flat object of column->value pairs (sugar for an AND of equalities), or
// the explicit {"operator":...,"children":[...]} tree form.
func ParseCondition(data []byte) (*Condition, error) {
	data = []byte(strings.TrimSpace(string(data)))
	if len(data) == 0 || string(data) == "{}" || string(data) == "[]" {
		return nil, nil
	}

	var simpleMap map[string]interface{}
	if err := json.Unmarshal(data, &simpleMap); err == nil && len(simpleMap) > 0 {
		if _, hasOp := simpleMap["operator"]; !hasOp {
			root := &Condition{
				Operator: OpAnd,
				Children: make([]Condition, 0, len(simpleMap)),
			}
			for col, val := range simpleMap {
				root.Children = append(root.Children, Condition{
					Operator: OpEq,
					Column:   strings.ToLower(col),
					Value:    fmt.Sprintf("%v", val),
				})
			}
			root.resolveTargets()
			return root, nil
		}
	}

	var complex Condition
	if err := json.Unmarshal(data, &complex); err == nil && complex.Operator != "" {
		complex.resolveTargets()
		return &complex, nil
	}

	return nil, fmt.Errorf("query: invalid where clause format")
}
