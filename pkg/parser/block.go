package parser

import (
	"sort"
	"strconv"
	"strings"

	"github.com/sandrolain/gomapper/pkg/query"
	"github.com/sandrolain/gomapper/pkg/types"
)

// Reserved stage names, normalized.
const (
	stageWhere    = "WHERE"
	stageLike     = "LIKE"
	stageGroupBy  = "GROUP BY"
	stageHaving   = "HAVING"
	stageOrderBy  = "ORDER BY"
	stageDistinct = "DISTINCT"
	stageLimit    = "LIMIT"
	stageOffset   = "OFFSET"
)

var canonicalRank = map[string]int{
	stageWhere:    0,
	stageLike:     1,
	stageGroupBy:  2,
	stageHaving:   3,
	stageOrderBy:  4,
	stageDistinct: 5,
	stageOffset:   7,
	stageLimit:    8,
}

const customRank = 6

// normalizeStage uppercases a stage key and folds the accepted spellings of
// two-word keywords ("order_by", "OrderBy", "ORDER  BY") into one form.
func normalizeStage(key string) string {
	k := strings.ToUpper(strings.ReplaceAll(key, "_", " "))
	k = strings.Join(strings.Fields(k), " ")
	switch k {
	case "ORDERBY":
		return stageOrderBy
	case "GROUPBY":
		return stageGroupBy
	}
	return k
}

// IsReservedStage reports whether key names a built-in stage, ignoring case.
func IsReservedStage(key string) bool {
	_, ok := canonicalRank[normalizeStage(key)]
	return ok
}

// isReservedKey reports whether a key of a plain map is written as a stage
// keyword. Only the uppercase spelling is reserved outside operator blocks,
// so "limit" stays usable as an output key.
func isReservedKey(key string) bool {
	return key == strings.ToUpper(key) && IsReservedStage(key)
}

// stageKeys returns the stage keys of a block in execution order.
func stageKeys(m *types.Map) []string {
	keys := make([]string, 0, m.Len())
	for _, k := range m.Keys() {
		if k != types.WildcardToken {
			keys = append(keys, k)
		}
	}
	if m.Ordered() {
		return keys
	}
	rank := func(k string) int {
		if r, ok := canonicalRank[normalizeStage(k)]; ok {
			return r
		}
		return customRank
	}
	sort.SliceStable(keys, func(i, j int) bool {
		ri, rj := rank(keys[i]), rank(keys[j])
		if ri != rj {
			return ri < rj
		}
		return keys[i] < keys[j]
	})
	return keys
}

func (p *Parser) parseBlock(m *types.Map, at types.Path) (*types.Node, error) {
	itemRaw, _ := m.Get(types.WildcardToken)
	item, err := p.parseNode(itemRaw, at.Append(types.WildcardSegment()))
	if err != nil {
		return nil, err
	}

	block := &types.OperatorBlock{Item: item}
	var (
		grouped             bool
		pagOpen             bool // last stage is a pagination step that can absorb more
		pagOffset, pagLimit bool
	)
	for _, key := range stageKeys(m) {
		raw, _ := m.Get(key)
		name := normalizeStage(key)
		if name != stageLimit && name != stageOffset {
			pagOpen = false
		}

		var st types.Stage
		switch name {
		case stageWhere:
			pred, err := compiled(p.parseCondition(raw))
			if err != nil {
				return nil, stageError(err, at, key)
			}
			st = types.Stage{Kind: types.StageWhere, Predicate: pred}

		case stageLike:
			pred, err := compiled(p.parseLike(raw))
			if err != nil {
				return nil, stageError(err, at, key)
			}
			st = types.Stage{Kind: types.StageLike, Predicate: pred}

		case stageGroupBy:
			spec, err := p.parseGroup(raw)
			if err != nil {
				return nil, stageError(err, at, key)
			}
			grouped = true
			st = types.Stage{Kind: types.StageGroupBy, Group: spec}

		case stageHaving:
			if !grouped {
				return nil, types.Errorf(types.ErrHavingWithoutGroupBy, "HAVING must follow GROUP BY").WithPath(at.String())
			}
			pred, err := compiled(p.parseCondition(raw))
			if err != nil {
				return nil, stageError(err, at, key)
			}
			st = types.Stage{Kind: types.StageHaving, Predicate: pred}

		case stageOrderBy:
			keys, err := p.parseOrder(raw)
			if err != nil {
				return nil, stageError(err, at, key)
			}
			st = types.Stage{Kind: types.StageOrderBy, Order: keys}

		case stageDistinct:
			st, err = p.parseDistinct(raw)
			if err != nil {
				return nil, stageError(err, at, key)
			}
			if st.Kind != types.StageDistinct {
				continue
			}

		case stageLimit, stageOffset:
			n, err := parseCount(raw, name)
			if err != nil {
				return nil, stageError(err, at, key)
			}
			// LIMIT and OFFSET declared next to each other form one step:
			// skip OFFSET rows, then take LIMIT rows.
			if pagOpen {
				last := &block.Stages[len(block.Stages)-1]
				if name == stageLimit && !pagLimit {
					last.Limit, pagLimit = n, true
					continue
				}
				if name == stageOffset && !pagOffset {
					last.Offset, pagOffset = n, true
					continue
				}
			}
			st = types.Stage{Kind: types.StagePaginate, Limit: -1}
			pagOffset, pagLimit = name == stageOffset, name == stageLimit
			if pagOffset {
				st.Offset = n
			} else {
				st.Limit = n
			}
			block.Stages = append(block.Stages, st)
			pagOpen = true
			continue

		default:
			st = types.Stage{Kind: types.StageCustom, Name: strings.ToUpper(strings.TrimSpace(key)), Config: raw}
		}
		block.Stages = append(block.Stages, st)
	}

	hasWildcard := false
	for _, e := range block.Expressions() {
		if e.Path.HasWildcard() {
			hasWildcard = true
			break
		}
	}
	if !hasWildcard {
		return nil, types.Errorf(types.ErrNoWildcard, "operator block references no wildcard path").WithPath(at.String())
	}

	return &types.Node{Kind: types.NodeOperator, Block: block}, nil
}

func stageError(err error, at types.Path, key string) error {
	if e, ok := err.(*types.Error); ok && e.Path == "" {
		return e.WithPath(at.Append(types.KeySegment(key)).String())
	}
	return err
}

// parseCondition parses a WHERE or HAVING body: a map whose entries are
// ANDed, or a list of such maps.
func (p *Parser) parseCondition(raw types.Value) (*types.Predicate, error) {
	switch raw.Kind() {
	case types.KindMap:
		m := raw.Map()
		if m.Len() == 0 {
			return nil, types.Errorf(types.ErrInvalidStage, "condition is empty")
		}
		children := make([]*types.Predicate, 0, m.Len())
		for _, k := range m.Keys() {
			v, _ := m.Get(k)
			pred, err := p.parseEntry(k, v)
			if err != nil {
				return nil, err
			}
			children = append(children, pred)
		}
		return types.And(children...), nil

	case types.KindList:
		items := raw.List().Items()
		if len(items) == 0 {
			return nil, types.Errorf(types.ErrInvalidStage, "condition is empty")
		}
		children := make([]*types.Predicate, 0, len(items))
		for _, item := range items {
			pred, err := p.parseCondition(item)
			if err != nil {
				return nil, err
			}
			children = append(children, pred)
		}
		return types.And(children...), nil
	}
	return nil, types.Errorf(types.ErrInvalidStage, "condition must be a map or a list of maps, got %s", raw.Kind())
}

// parseAlternatives parses the body of an AND/OR key. Map entries and list
// elements are the operands of the connective.
func (p *Parser) parseAlternatives(raw types.Value) ([]*types.Predicate, error) {
	switch raw.Kind() {
	case types.KindMap:
		m := raw.Map()
		out := make([]*types.Predicate, 0, m.Len())
		for _, k := range m.Keys() {
			v, _ := m.Get(k)
			pred, err := p.parseEntry(k, v)
			if err != nil {
				return nil, err
			}
			out = append(out, pred)
		}
		return out, nil
	case types.KindList:
		items := raw.List().Items()
		out := make([]*types.Predicate, 0, len(items))
		for _, item := range items {
			pred, err := p.parseCondition(item)
			if err != nil {
				return nil, err
			}
			out = append(out, pred)
		}
		return out, nil
	}
	return nil, types.Errorf(types.ErrInvalidStage, "AND/OR expects a map or a list, got %s", raw.Kind())
}

func (p *Parser) parseEntry(key string, v types.Value) (*types.Predicate, error) {
	switch strings.ToUpper(strings.TrimSpace(key)) {
	case "AND", "OR":
		children, err := p.parseAlternatives(v)
		if err != nil {
			return nil, err
		}
		if len(children) == 0 {
			return nil, types.Errorf(types.ErrInvalidStage, "%s is empty", key)
		}
		if strings.EqualFold(strings.TrimSpace(key), "OR") {
			return types.Or(children...), nil
		}
		return types.And(children...), nil
	}
	return p.parseLeaf(key, v, types.OpEq)
}

// parseLeaf parses "key: operand" or "key: [op, operand, caseSensitive]".
// A bare list operand means IN; a bare "IS NULL" / "IS NOT NULL" string is
// the unary operator.
func (p *Parser) parseLeaf(key string, v types.Value, defaultOp types.CompareOp) (*types.Predicate, error) {
	left, err := parseOperandKey(key)
	if err != nil {
		return nil, err
	}
	leaf := &types.Predicate{Kind: types.PredLeaf, Left: left, Op: defaultOp}
	right := v

	switch v.Kind() {
	case types.KindString:
		if op, ok := types.ParseCompareOp(v.Str()); ok && op.Unary() {
			leaf.Op, right = op, types.Null()
		}
	case types.KindList:
		items := v.List().Items()
		op, ok := types.CompareOp(""), false
		if len(items) > 0 && items[0].Kind() == types.KindString {
			op, ok = types.ParseCompareOp(items[0].Str())
		}
		if !ok {
			if len(items) > 0 && isOperatorSymbol(items[0].Str()) {
				return nil, types.Errorf(types.ErrUnknownComparison, "unknown comparison operator %q on %q", items[0].Str(), key).
					WithToken(items[0].Str())
			}
			if defaultOp == types.OpEq {
				leaf.Op = types.OpIn
			}
			break
		}
		leaf.Op = op
		rest := items[1:]
		if op.Unary() {
			right = types.Null()
			break
		}
		if len(rest) == 0 {
			return nil, types.Errorf(types.ErrInvalidStage, "operator %s on %q needs an operand", op, key)
		}
		right = rest[0]
		rest = rest[1:]
		if (op == types.OpBetween || op == types.OpNotBetween) && right.Kind() != types.KindList && len(rest) > 0 {
			right = types.ListOf(right, rest[0])
			rest = rest[1:]
		}
		if len(rest) > 0 && rest[0].Kind() == types.KindBool {
			leaf.CaseSensitive = rest[0].Bool()
		}
	}

	leaf.Right = parseOperandValue(right)
	if (leaf.Op == types.OpBetween || leaf.Op == types.OpNotBetween) &&
		leaf.Right.Kind == types.OperandLiteral && leaf.Right.Literal.List().Len() != 2 {
		return nil, types.Errorf(types.ErrInvalidStage, "%s on %q expects two bounds", leaf.Op, key)
	}
	return leaf, nil
}

// parseLike parses a LIKE stage: "key: pattern", "key: [pattern, true]" for
// a case-sensitive match, or any explicit "[op, operand]" leaf.
func (p *Parser) parseLike(raw types.Value) (*types.Predicate, error) {
	m := raw.Map()
	if m == nil || m.Len() == 0 {
		return nil, types.Errorf(types.ErrInvalidStage, "LIKE expects a map of patterns")
	}
	children := make([]*types.Predicate, 0, m.Len())
	for _, k := range m.Keys() {
		v, _ := m.Get(k)
		if items := v.List().Items(); len(items) > 0 && items[0].Kind() == types.KindString {
			if _, isOp := types.ParseCompareOp(items[0].Str()); !isOp {
				left, err := parseOperandKey(k)
				if err != nil {
					return nil, err
				}
				leaf := types.Leaf(left, types.OpLike, parseOperandValue(items[0]))
				if len(items) > 1 {
					leaf.CaseSensitive = items[1].Bool()
				}
				children = append(children, leaf)
				continue
			}
		}
		leaf, err := p.parseLeaf(k, v, types.OpLike)
		if err != nil {
			return nil, err
		}
		children = append(children, leaf)
	}
	return types.And(children...), nil
}

// parseOperandKey parses the left side of a leaf: an expression, or a bare
// field name.
func parseOperandKey(key string) (types.Operand, error) {
	body, ok, err := splitExpression(key)
	if err != nil {
		return types.Operand{}, err
	}
	if ok {
		expr, err := ParseExpression(body)
		if err != nil {
			return types.Operand{}, err
		}
		return types.ExprOperand(expr), nil
	}
	field, err := types.ParsePath(strings.TrimSpace(key))
	if err != nil {
		return types.Operand{}, err
	}
	return types.FieldOperand(field), nil
}

// parseOperandValue parses a right-hand operand: an expression string or a
// literal.
func parseOperandValue(v types.Value) types.Operand {
	if v.Kind() == types.KindString {
		if body, ok, err := splitExpression(v.Str()); ok && err == nil {
			if expr, err := ParseExpression(body); err == nil {
				return types.ExprOperand(expr)
			}
		}
	}
	return types.LiteralOperand(v)
}

// parseGroup parses a GROUP BY body: a key, a list of keys, or a map with
// "field(s)", "aggregations" and an optional nested "HAVING".
func (p *Parser) parseGroup(raw types.Value) (*types.GroupSpec, error) {
	spec := &types.GroupSpec{}
	var err error

	switch raw.Kind() {
	case types.KindString, types.KindList:
		spec.Keys, err = parseKeyList(raw)
		if err != nil {
			return nil, err
		}

	case types.KindMap:
		m := raw.Map()
		var having types.Value
		for _, k := range m.Keys() {
			v, _ := m.Get(k)
			switch strings.ToLower(strings.TrimSpace(k)) {
			case "field", "fields", "by", "keys":
				spec.Keys, err = parseKeyList(v)
				if err != nil {
					return nil, err
				}
			case "aggregations", "aggregates":
				aggs := v.Map()
				if aggs == nil {
					return nil, types.Errorf(types.ErrInvalidStage, "aggregations must be a map of alias to function")
				}
				for _, alias := range aggs.Keys() {
					av, _ := aggs.Get(alias)
					agg, err := parseAggregation(alias, av)
					if err != nil {
						return nil, err
					}
					spec.Aggregations = append(spec.Aggregations, agg)
				}
			case "having":
				having = v
			default:
				return nil, types.Errorf(types.ErrInvalidStage, "unknown GROUP BY option %q", k)
			}
		}
		if !having.IsNull() {
			spec.Having, err = compiled(p.parseCondition(having))
			if err != nil {
				return nil, err
			}
		}

	default:
		return nil, types.Errorf(types.ErrInvalidStage, "GROUP BY expects a key, a list of keys or a map, got %s", raw.Kind())
	}

	if len(spec.Keys) == 0 {
		return nil, types.Errorf(types.ErrInvalidStage, "GROUP BY needs at least one key")
	}
	return spec, nil
}

func parseKeyList(v types.Value) ([]types.Operand, error) {
	var raw []types.Value
	switch v.Kind() {
	case types.KindString:
		raw = []types.Value{v}
	case types.KindList:
		raw = v.List().Items()
	default:
		return nil, types.Errorf(types.ErrInvalidStage, "group key must be a string or a list of strings")
	}
	out := make([]types.Operand, 0, len(raw))
	for _, item := range raw {
		if item.Kind() != types.KindString {
			return nil, types.Errorf(types.ErrInvalidStage, "group key must be a string, got %s", item.Kind())
		}
		op, err := parseOperandKey(item.Str())
		if err != nil {
			return nil, err
		}
		out = append(out, op)
	}
	return out, nil
}

// parseAggregation accepts "COUNT", "SUM({{ x }})", [FUNC, source, sep] or
// {function, field, separator}.
func parseAggregation(alias string, v types.Value) (types.Aggregation, error) {
	agg := types.Aggregation{Alias: alias}
	var fn, src, sep types.Value

	switch v.Kind() {
	case types.KindString:
		s := strings.TrimSpace(v.Str())
		if open := strings.IndexByte(s, '('); open > 0 && strings.HasSuffix(s, ")") {
			fn = types.String(s[:open])
			if arg := strings.TrimSpace(s[open+1 : len(s)-1]); arg != "" && arg != "*" {
				src = types.String(arg)
			}
		} else {
			fn = v
		}
	case types.KindList:
		items := v.List().Items()
		if len(items) == 0 {
			return agg, types.Errorf(types.ErrInvalidStage, "aggregation %q is empty", alias)
		}
		fn = items[0]
		if len(items) > 1 {
			src = items[1]
		}
		if len(items) > 2 {
			sep = items[2]
		}
	case types.KindMap:
		m := v.Map()
		for _, k := range m.Keys() {
			val, _ := m.Get(k)
			switch strings.ToLower(k) {
			case "function", "func", "fn":
				fn = val
			case "field", "source", "path":
				src = val
			case "separator", "sep":
				sep = val
			default:
				return agg, types.Errorf(types.ErrInvalidStage, "unknown aggregation option %q", k)
			}
		}
	default:
		return agg, types.Errorf(types.ErrInvalidStage, "aggregation %q must be a string, list or map", alias)
	}

	f, ok := types.ParseAggregateFunc(fn.Str())
	if !ok {
		return agg, types.Errorf(types.ErrUnknownAggregation, "unknown aggregation %q for %q", fn.Text(), alias).WithToken(fn.Text())
	}
	agg.Func = f
	if src.Kind() == types.KindString && strings.TrimSpace(src.Str()) != "" {
		op, err := parseOperandKey(src.Str())
		if err != nil {
			return agg, err
		}
		agg.Source = &op
	}
	if f != types.AggCount && agg.Source == nil {
		return agg, types.Errorf(types.ErrInvalidStage, "aggregation %s for %q needs a source", f, alias)
	}
	agg.Separator = sep.Text()
	return agg, nil
}

// parseOrder parses ORDER BY: {key: dir}, "key [DIR]", or a list of those
// or of [key, dir] pairs.
func (p *Parser) parseOrder(raw types.Value) ([]types.OrderKey, error) {
	var out []types.OrderKey
	add := func(key string, dir types.Value) error {
		op, err := parseOperandKey(key)
		if err != nil {
			return err
		}
		desc, err := parseDirection(dir)
		if err != nil {
			return err
		}
		out = append(out, types.OrderKey{Operand: op, Desc: desc})
		return nil
	}
	addString := func(s string) error {
		s = strings.TrimSpace(s)
		if i := strings.LastIndexAny(s, " \t"); i > 0 {
			word := strings.ToUpper(s[i+1:])
			if word == "ASC" || word == "DESC" {
				return add(strings.TrimSpace(s[:i]), types.String(word))
			}
		}
		return add(s, types.Null())
	}
	addMap := func(m *types.Map) error {
		for _, k := range m.Keys() {
			v, _ := m.Get(k)
			if err := add(k, v); err != nil {
				return err
			}
		}
		return nil
	}

	var err error
	switch raw.Kind() {
	case types.KindString:
		err = addString(raw.Str())
	case types.KindMap:
		err = addMap(raw.Map())
	case types.KindList:
		for _, item := range raw.List().Items() {
			switch item.Kind() {
			case types.KindString:
				err = addString(item.Str())
			case types.KindMap:
				err = addMap(item.Map())
			case types.KindList:
				pair := item.List()
				if pair.Len() == 0 || pair.At(0).Kind() != types.KindString {
					return nil, types.Errorf(types.ErrInvalidStage, "ORDER BY pair must start with a key")
				}
				err = add(pair.At(0).Str(), pair.At(1))
			default:
				err = types.Errorf(types.ErrInvalidStage, "invalid ORDER BY entry of kind %s", item.Kind())
			}
			if err != nil {
				return nil, err
			}
		}
	default:
		err = types.Errorf(types.ErrInvalidStage, "ORDER BY expects a map, a string or a list")
	}
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, types.Errorf(types.ErrInvalidStage, "ORDER BY needs at least one key")
	}
	return out, nil
}

func parseDirection(v types.Value) (bool, error) {
	if v.IsNull() {
		return false, nil
	}
	switch strings.ToUpper(strings.TrimSpace(v.Str())) {
	case "ASC":
		return false, nil
	case "DESC":
		return true, nil
	}
	return false, types.Errorf(types.ErrInvalidDirection, "sort direction must be ASC or DESC, got %s", v.String()).WithToken(v.Text())
}

func (p *Parser) parseDistinct(raw types.Value) (types.Stage, error) {
	switch raw.Kind() {
	case types.KindBool:
		if !raw.Bool() {
			return types.Stage{}, nil
		}
		return types.Stage{Kind: types.StageDistinct}, nil
	case types.KindString:
		if strings.TrimSpace(raw.Str()) == types.WildcardToken {
			return types.Stage{Kind: types.StageDistinct}, nil
		}
		op, err := parseOperandKey(raw.Str())
		if err != nil {
			return types.Stage{}, err
		}
		return types.Stage{Kind: types.StageDistinct, Distinct: &op}, nil
	}
	return types.Stage{}, types.Errorf(types.ErrInvalidStage, "DISTINCT expects true or a key, got %s", raw.Kind())
}

func parseCount(v types.Value, name string) (int, error) {
	var n int64
	switch v.Kind() {
	case types.KindInt:
		n = v.Int()
	case types.KindFloat:
		if v.Float() != float64(int64(v.Float())) {
			return 0, types.Errorf(types.ErrInvalidPagination, "%s must be an integer, got %s", name, v.String())
		}
		n = int64(v.Float())
	case types.KindString:
		i, err := strconv.ParseInt(strings.TrimSpace(v.Str()), 10, 64)
		if err != nil {
			return 0, types.Errorf(types.ErrInvalidPagination, "%s must be an integer, got %q", name, v.Str())
		}
		n = i
	default:
		return 0, types.Errorf(types.ErrInvalidPagination, "%s must be an integer, got %s", name, v.Kind())
	}
	if n < 0 {
		return 0, types.Errorf(types.ErrInvalidPagination, "%s must not be negative", name)
	}
	return int(n), nil
}

// isOperatorSymbol reports whether s is made only of comparison symbols,
// like "=~" or "!<". Such a string cannot be an IN list value.
func isOperatorSymbol(s string) bool {
	s = strings.TrimSpace(s)
	return s != "" && strings.Trim(s, "<>=!~") == ""
}

// compiled compiles the literal LIKE patterns of a parsed predicate once,
// so rows only run the match.
func compiled(pred *types.Predicate, err error) (*types.Predicate, error) {
	if err != nil {
		return nil, err
	}
	return pred, compileLikes(pred)
}

func compileLikes(pred *types.Predicate) error {
	if pred == nil {
		return nil
	}
	if pred.Kind != types.PredLeaf {
		for _, c := range pred.Children {
			if err := compileLikes(c); err != nil {
				return err
			}
		}
		return nil
	}
	if pred.Op != types.OpLike && pred.Op != types.OpNotLike {
		return nil
	}
	if pred.Right.Kind != types.OperandLiteral || pred.Right.Literal.IsNull() {
		return nil
	}
	re, err := query.LikePattern(pred.Right.Literal.Text(), pred.CaseSensitive)
	if err != nil {
		return err
	}
	pred.Pattern = re
	return nil
}
