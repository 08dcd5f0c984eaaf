// Package dynamotest provides an in-memory DynamoDB fake for unit tests.
// It implements just enough of the expression language for the conditional
// writes this service relies on: attribute_not_exists guards, equality and
// numeric-compare conditions, and simple SET updates including arithmetic and
// if_not_exists. NOTE: intentionally minimal and not production-grade.
package dynamotest

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"context"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type tableDef struct {
	pk string
	sk string // empty for simple primary keys
}

// Fake is a multi-table in-memory DynamoDB. Register each table with a key
// schema before use. Safe for concurrent use; every call holds one mutex, so
// each write is atomic the way a single DynamoDB request is.
type Fake struct {
	mu     sync.Mutex
	defs   map[string]tableDef
	tables map[string]map[string]map[string]types.AttributeValue

	PutCalls      int
	UpdateCalls   int
	TransactCalls int
}

// New returns an empty Fake.
func New() *Fake {
	return &Fake{
		defs:   map[string]tableDef{},
		tables: map[string]map[string]map[string]types.AttributeValue{},
	}
}

// AddTable registers a table. sk may be empty.
func (f *Fake) AddTable(name, pk, sk string) *Fake {
	f.defs[name] = tableDef{pk: pk, sk: sk}
	f.tables[name] = map[string]map[string]types.AttributeValue{}
	return f
}

// Items returns all items of a table, for assertions.
func (f *Fake) Items(table string) []map[string]types.AttributeValue {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []map[string]types.AttributeValue
	keys := make([]string, 0, len(f.tables[table]))
	for k := range f.tables[table] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, f.tables[table][k])
	}
	return out
}

// Item returns one item by its raw composite key ("pk" or "pk|sk").
func (f *Fake) Item(table, key string) map[string]types.AttributeValue {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tables[table][key]
}

func (f *Fake) itemKey(table string, attrs map[string]types.AttributeValue) (string, error) {
	def, ok := f.defs[table]
	if !ok {
		return "", fmt.Errorf("unregistered table %q", table)
	}
	pk, ok := attrs[def.pk].(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("table %q: missing partition key %q", table, def.pk)
	}
	if def.sk == "" {
		return pk.Value, nil
	}
	sk, ok := attrs[def.sk].(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("table %q: missing sort key %q", table, def.sk)
	}
	return pk.Value + "|" + sk.Value, nil
}

func resolveName(name string, names map[string]string) string {
	if strings.HasPrefix(name, "#") {
		if real, ok := names[name]; ok {
			return real
		}
	}
	return name
}

func numValue(av types.AttributeValue) (int64, bool) {
	n, ok := av.(*types.AttributeValueMemberN)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// checkCondition evaluates the subset of condition expressions the stores use.
func checkCondition(expr string, item map[string]types.AttributeValue, names map[string]string, values map[string]types.AttributeValue) bool {
	expr = strings.TrimSpace(expr)

	if strings.HasPrefix(expr, "attribute_not_exists(") {
		return item == nil
	}

	if idx := strings.Index(expr, ">="); idx >= 0 {
		attr := resolveName(strings.TrimSpace(expr[:idx]), names)
		ph := strings.TrimSpace(expr[idx+2:])
		if item == nil {
			return false
		}
		have, ok1 := numValue(item[attr])
		want, ok2 := numValue(values[ph])
		return ok1 && ok2 && have >= want
	}

	if idx := strings.Index(expr, "="); idx >= 0 {
		attr := resolveName(strings.TrimSpace(expr[:idx]), names)
		ph := strings.TrimSpace(expr[idx+1:])
		if item == nil {
			return false
		}
		have, ok := item[attr].(*types.AttributeValueMemberS)
		want, ok2 := values[ph].(*types.AttributeValueMemberS)
		return ok && ok2 && have.Value == want.Value
	}

	return false
}

// splitClauses splits a SET expression on commas outside parentheses, so
// if_not_exists(attr, :zero) stays one clause.
func splitClauses(expr string) []string {
	var out []string
	depth, start := 0, 0
	for i, r := range expr {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, expr[start:i])
				start = i + 1
			}
		}
	}
	return append(out, expr[start:])
}

// applySet handles "SET a = :v, b = b - :x, c = if_not_exists(c, :zero) + :y".
func applySet(expr string, item map[string]types.AttributeValue, names map[string]string, values map[string]types.AttributeValue) error {
	expr = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(expr), "SET "))
	for _, clause := range splitClauses(expr) {
		parts := strings.SplitN(clause, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("unparseable clause %q", clause)
		}
		attr := resolveName(strings.TrimSpace(parts[0]), names)
		rhs := strings.TrimSpace(parts[1])

		switch {
		case strings.HasPrefix(rhs, "if_not_exists("):
			inner := rhs[len("if_not_exists(") : strings.Index(rhs, ")")]
			innerParts := strings.SplitN(inner, ",", 2)
			base := item[strings.TrimSpace(innerParts[0])]
			if base == nil {
				base = values[strings.TrimSpace(innerParts[1])]
			}
			rest := strings.TrimSpace(rhs[strings.Index(rhs, ")")+1:])
			if rest == "" {
				item[attr] = base
				break
			}
			if !strings.HasPrefix(rest, "+") {
				return fmt.Errorf("unparseable clause %q", clause)
			}
			baseN, _ := numValue(base)
			addN, ok := numValue(values[strings.TrimSpace(rest[1:])])
			if !ok {
				return fmt.Errorf("non-numeric operand in %q", clause)
			}
			item[attr] = &types.AttributeValueMemberN{Value: strconv.FormatInt(baseN+addN, 10)}
		case strings.Contains(rhs, " - "):
			opParts := strings.SplitN(rhs, " - ", 2)
			baseN, ok := numValue(item[resolveName(strings.TrimSpace(opParts[0]), names)])
			if !ok {
				return fmt.Errorf("non-numeric base in %q", clause)
			}
			subN, ok := numValue(values[strings.TrimSpace(opParts[1])])
			if !ok {
				return fmt.Errorf("non-numeric operand in %q", clause)
			}
			item[attr] = &types.AttributeValueMemberN{Value: strconv.FormatInt(baseN-subN, 10)}
		case strings.Contains(rhs, " + "):
			opParts := strings.SplitN(rhs, " + ", 2)
			baseN, ok := numValue(item[resolveName(strings.TrimSpace(opParts[0]), names)])
			if !ok {
				return fmt.Errorf("non-numeric base in %q", clause)
			}
			addN, ok := numValue(values[strings.TrimSpace(opParts[1])])
			if !ok {
				return fmt.Errorf("non-numeric operand in %q", clause)
			}
			item[attr] = &types.AttributeValueMemberN{Value: strconv.FormatInt(baseN+addN, 10)}
		default:
			v, ok := values[rhs]
			if !ok {
				return fmt.Errorf("unknown placeholder %q", rhs)
			}
			item[attr] = v
		}
	}
	return nil
}

func copyItem(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

func (f *Fake) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PutCalls++
	if err := f.putLocked(*params.TableName, params.Item, params.ConditionExpression); err != nil {
		return nil, err
	}
	return &dyn.PutItemOutput{}, nil
}

func (f *Fake) putLocked(table string, item map[string]types.AttributeValue, cond *string) error {
	key, err := f.itemKey(table, item)
	if err != nil {
		return err
	}
	existing := f.tables[table][key]
	if cond != nil && !checkCondition(*cond, existing, nil, nil) {
		return &types.ConditionalCheckFailedException{}
	}
	f.tables[table][key] = copyItem(item)
	return nil
}

func (f *Fake) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key, err := f.itemKey(*params.TableName, params.Key)
	if err != nil {
		return nil, err
	}
	item, ok := f.tables[*params.TableName][key]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: copyItem(item)}, nil
}

func (f *Fake) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.UpdateCalls++
	item, err := f.updateLocked(*params.TableName, params.Key, params.UpdateExpression, params.ConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	return &dyn.UpdateItemOutput{Attributes: copyItem(item)}, nil
}

func (f *Fake) updateLocked(table string, keyAttrs map[string]types.AttributeValue, updateExpr, condExpr *string, names map[string]string, values map[string]types.AttributeValue) (map[string]types.AttributeValue, error) {
	key, err := f.itemKey(table, keyAttrs)
	if err != nil {
		return nil, err
	}
	item := f.tables[table][key]
	if condExpr != nil && !checkCondition(*condExpr, item, names, values) {
		return nil, &types.ConditionalCheckFailedException{}
	}
	if item == nil {
		// DynamoDB upserts on update; start from the key attributes
		item = copyItem(keyAttrs)
	}
	if updateExpr == nil {
		return nil, errors.New("missing update expression")
	}
	if err := applySet(*updateExpr, item, names, values); err != nil {
		return nil, err
	}
	f.tables[table][key] = item
	return item, nil
}

// TransactWriteItems applies all items or none. Any failed condition cancels
// the transaction with a ConditionalCheckFailed cancellation reason, matching
// what the stores detect.
func (f *Fake) TransactWriteItems(ctx context.Context, params *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.TransactCalls++

	// first pass: evaluate all conditions against current state
	reasons := make([]types.CancellationReason, len(params.TransactItems))
	failed := false
	for i, it := range params.TransactItems {
		code := "None"
		switch {
		case it.Put != nil:
			key, err := f.itemKey(*it.Put.TableName, it.Put.Item)
			if err != nil {
				return nil, err
			}
			existing := f.tables[*it.Put.TableName][key]
			if it.Put.ConditionExpression != nil && !checkCondition(*it.Put.ConditionExpression, existing, nil, nil) {
				code = "ConditionalCheckFailed"
			}
		case it.Update != nil:
			key, err := f.itemKey(*it.Update.TableName, it.Update.Key)
			if err != nil {
				return nil, err
			}
			existing := f.tables[*it.Update.TableName][key]
			if it.Update.ConditionExpression != nil && !checkCondition(*it.Update.ConditionExpression, existing, it.Update.ExpressionAttributeNames, it.Update.ExpressionAttributeValues) {
				code = "ConditionalCheckFailed"
			}
		}
		if code != "None" {
			failed = true
		}
		reasons[i] = types.CancellationReason{Code: &code}
	}
	if failed {
		return nil, &types.TransactionCanceledException{CancellationReasons: reasons}
	}

	// second pass: apply
	for _, it := range params.TransactItems {
		switch {
		case it.Put != nil:
			if err := f.putLocked(*it.Put.TableName, it.Put.Item, nil); err != nil {
				return nil, err
			}
		case it.Update != nil:
			if _, err := f.updateLocked(*it.Update.TableName, it.Update.Key, it.Update.UpdateExpression, nil, it.Update.ExpressionAttributeNames, it.Update.ExpressionAttributeValues); err != nil {
				return nil, err
			}
		}
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}

// Query supports the two shapes the stores issue: a GSI equality lookup
// ("attr = :ph") and a partition scan ordered by sort key. FilterExpression
// supports a single equality.
func (f *Fake) Query(ctx context.Context, params *dyn.QueryInput, optFns ...func(*dyn.Options)) (*dyn.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	expr := ""
	if params.KeyConditionExpression != nil {
		expr = *params.KeyConditionExpression
	}
	parts := strings.SplitN(expr, "=", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("unsupported key condition %q", expr)
	}
	attr := resolveName(strings.TrimSpace(parts[0]), params.ExpressionAttributeNames)
	want, ok := params.ExpressionAttributeValues[strings.TrimSpace(parts[1])].(*types.AttributeValueMemberS)
	if !ok {
		return nil, fmt.Errorf("missing query value for %q", expr)
	}

	keys := make([]string, 0)
	for k := range f.tables[*params.TableName] {
		keys = append(keys, k)
	}
	sort.Strings(keys) // sort-key order within a partition
	if params.ScanIndexForward != nil && !*params.ScanIndexForward {
		for i, j := 0, len(keys)-1; i < j; i, j = i+1, j-1 {
			keys[i], keys[j] = keys[j], keys[i]
		}
	}

	var items []map[string]types.AttributeValue
	for _, k := range keys {
		item := f.tables[*params.TableName][k]
		got, ok := item[attr].(*types.AttributeValueMemberS)
		if !ok || got.Value != want.Value {
			continue
		}
		if params.FilterExpression != nil {
			if !checkCondition(*params.FilterExpression, item, params.ExpressionAttributeNames, params.ExpressionAttributeValues) {
				continue
			}
		}
		items = append(items, copyItem(item))
	}
	return &dyn.QueryOutput{Items: items}, nil
}
