package ir

// FilterOperator is the comparison applied by a filter rule.
type FilterOperator string

const (
	OperatorNull          FilterOperator = "isNull"
	OperatorNotNull       FilterOperator = "notNull"
	OperatorEquals        FilterOperator = "equals"
	OperatorNotEquals     FilterOperator = "notEquals"
	OperatorStartsWith    FilterOperator = "startsWith"
	OperatorInclude       FilterOperator = "include"
	OperatorNotInclude    FilterOperator = "doesNotInclude"
	OperatorLessThan      FilterOperator = "lessThan"
	OperatorGreaterThan   FilterOperator = "greaterThan"
	OperatorLessThanEqual FilterOperator = "lessThanOrEqual"
	OperatorGreaterThanEq FilterOperator = "greaterThanOrEqual"
	OperatorInThePast     FilterOperator = "inThePast"
	OperatorInTheNext     FilterOperator = "inTheNext"
)

// Filters holds the dimension (WHERE) and metric (HAVING) filter trees.
// The compiler passes filters through untouched; SQL generation owns them.
type Filters struct {
	Dimensions *FilterGroup `json:"dimensions,omitempty" yaml:"dimensions,omitempty"`
	Metrics    *FilterGroup `json:"metrics,omitempty" yaml:"metrics,omitempty"`
}

// FilterGroup combines items with AND or OR. Exactly one of And/Or is set.
type FilterGroup struct {
	ID  string       `json:"id" yaml:"id"`
	And []FilterItem `json:"and,omitempty" yaml:"and,omitempty"`
	Or  []FilterItem `json:"or,omitempty" yaml:"or,omitempty"`
}

// FilterItem is either a rule (Target set) or a nested group (And/Or set).
type FilterItem struct {
	ID       string         `json:"id" yaml:"id"`
	Target   *FilterTarget  `json:"target,omitempty" yaml:"target,omitempty"`
	Operator FilterOperator `json:"operator,omitempty" yaml:"operator,omitempty"`
	Values   []any          `json:"values,omitempty" yaml:"values,omitempty"`
	And      []FilterItem   `json:"and,omitempty" yaml:"and,omitempty"`
	Or       []FilterItem   `json:"or,omitempty" yaml:"or,omitempty"`
}

// FilterTarget names the field a rule applies to.
type FilterTarget struct {
	FieldID FieldID `json:"field_id" yaml:"field_id"`
}

// IsGroup reports whether the item is a nested group.
func (i FilterItem) IsGroup() bool {
	return i.Target == nil
}

// Items returns the group's children regardless of combinator.
func (g *FilterGroup) Items() []FilterItem {
	if g == nil {
		return nil
	}
	if len(g.And) > 0 {
		return g.And
	}
	return g.Or
}

// CountRules returns the number of rules across both filter trees.
func (f Filters) CountRules() int {
	return countRules(f.Dimensions.Items()) + countRules(f.Metrics.Items())
}

// TargetFieldIDs returns the field ids referenced by rules, in tree order.
func (f Filters) TargetFieldIDs() []FieldID {
	var ids []FieldID
	ids = collectTargets(f.Dimensions.Items(), ids)
	ids = collectTargets(f.Metrics.Items(), ids)
	return ids
}

func countRules(items []FilterItem) int {
	n := 0
	for _, item := range items {
		if item.IsGroup() {
			n += countRules(item.And) + countRules(item.Or)
			continue
		}
		n++
	}
	return n
}

func collectTargets(items []FilterItem, ids []FieldID) []FieldID {
	for _, item := range items {
		if item.IsGroup() {
			ids = collectTargets(item.And, ids)
			ids = collectTargets(item.Or, ids)
			continue
		}
		ids = append(ids, item.Target.FieldID)
	}
	return ids
}
