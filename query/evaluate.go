package query

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ryokushen/ledger-engine/ledger"
)

// =============================================================================
// EVALUATION
// =============================================================================

// Evaluate reports whether a transaction satisfies one condition.
// Unknown operators and fields are errors, never a silent false.
func Evaluate(tx ledger.Transaction, c Condition) (bool, error) {
	if err := c.Validate(); err != nil {
		return false, err
	}
	field := fieldValue(tx, c.Field)

	switch c.Operator {
	case OpEquals:
		return compareEq(field, c.Value)
	case OpNotEquals:
		eq, err := compareEq(field, c.Value)
		return !eq, err
	case OpContains:
		return strings.Contains(asText(field), asText(c.Value)), nil
	case OpNotContains:
		return !strings.Contains(asText(field), asText(c.Value)), nil
	case OpStartsWith:
		return strings.HasPrefix(asText(field), asText(c.Value)), nil
	case OpEndsWith:
		return strings.HasSuffix(asText(field), asText(c.Value)), nil
	case OpGreater, OpGreaterEq, OpLess, OpLessEq:
		cmp, err := compare(field, c.Value)
		if err != nil {
			return false, err
		}
		switch c.Operator {
		case OpGreater:
			return cmp > 0, nil
		case OpGreaterEq:
			return cmp >= 0, nil
		case OpLess:
			return cmp < 0, nil
		default:
			return cmp <= 0, nil
		}
	case OpBetween:
		bounds, _ := asSlice(c.Value)
		lo, err := compare(field, bounds[0])
		if err != nil {
			return false, err
		}
		hi, err := compare(field, bounds[1])
		if err != nil {
			return false, err
		}
		return lo >= 0 && hi <= 0, nil
	case OpIn, OpNotIn:
		vals, _ := asSlice(c.Value)
		found := false
		for _, v := range vals {
			eq, err := compareEq(field, v)
			if err != nil {
				return false, err
			}
			if eq {
				found = true
				break
			}
		}
		if c.Operator == OpIn {
			return found, nil
		}
		return !found, nil
	case OpIsNull:
		return isNull(field), nil
	case OpIsNotNull:
		return !isNull(field), nil
	case OpIsEmpty:
		return asText(field) == "", nil
	case OpIsNotEmpty:
		return asText(field) != "", nil
	case OpRegex:
		re, err := regexp.Compile(asText(c.Value))
		if err != nil {
			return false, fmt.Errorf("bad regex: %w", err)
		}
		return re.MatchString(asText(field)), nil
	}
	return false, fmt.Errorf("unknown operator %q", c.Operator)
}

// EvaluateQuery combines conditions: all of And (vacuously true when
// empty), at least one of Or (vacuously true when empty), and Not must
// fail to match.
func EvaluateQuery(tx ledger.Transaction, q Query) (bool, error) {
	for _, c := range q.And {
		ok, err := Evaluate(tx, c)
		if err != nil || !ok {
			return false, err
		}
	}

	if len(q.Or) > 0 {
		matchedOne := false
		for _, c := range q.Or {
			ok, err := Evaluate(tx, c)
			if err != nil {
				return false, err
			}
			if ok {
				matchedOne = true
				break
			}
		}
		if !matchedOne {
			return false, nil
		}
	}

	if q.Not != nil {
		ok, err := Evaluate(tx, *q.Not)
		if err != nil {
			return false, err
		}
		if ok {
			return false, nil
		}
	}
	return true, nil
}

// Filter evaluates the query over a slice, then applies sort and limit.
func Filter(txs []ledger.Transaction, q Query) ([]ledger.Transaction, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	matched := make([]ledger.Transaction, 0, len(txs))
	for _, tx := range txs {
		ok, err := EvaluateQuery(tx, q)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, tx)
		}
	}

	if q.SortBy != "" {
		desc := q.SortOrder == "desc"
		sort.SliceStable(matched, func(i, j int) bool {
			cmp, err := compare(fieldValue(matched[i], q.SortBy), fieldValue(matched[j], q.SortBy))
			if err != nil {
				cmp = strings.Compare(asText(fieldValue(matched[i], q.SortBy)), asText(fieldValue(matched[j], q.SortBy)))
			}
			if desc {
				return cmp > 0
			}
			return cmp < 0
		})
	}

	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	return matched, nil
}

// =============================================================================
// FIELD ACCESS AND COERCION
// =============================================================================

func fieldValue(tx ledger.Transaction, field string) any {
	switch field {
	case "id":
		return tx.ID
	case "date":
		return tx.Date
	case "description":
		return tx.Description
	case "category":
		return tx.Category
	case "amount":
		return tx.Amount
	case "account_id":
		return tx.AccountID
	case "debt_account_id":
		return tx.DebtAccountID
	case "cleared":
		return tx.Cleared
	}
	return nil
}

// compare coerces both sides to the field's comparison domain and returns
// the sign of a-b. Amounts compare as decimals, dates as instants,
// everything else as case-sensitive text.
func compare(field, value any) (int, error) {
	switch f := field.(type) {
	case decimal.Decimal:
		v, err := asDecimal(value)
		if err != nil {
			return 0, err
		}
		return f.Cmp(v), nil
	case time.Time:
		v, err := asTime(value)
		if err != nil {
			return 0, err
		}
		switch {
		case f.Before(v):
			return -1, nil
		case f.After(v):
			return 1, nil
		}
		return 0, nil
	}
	return strings.Compare(asText(field), asText(value)), nil
}

func compareEq(field, value any) (bool, error) {
	cmp, err := compare(field, value)
	if err != nil {
		return false, err
	}
	return cmp == 0, nil
}

func asDecimal(v any) (decimal.Decimal, error) {
	switch vv := v.(type) {
	case decimal.Decimal:
		return vv, nil
	case float64:
		return decimal.NewFromFloat(vv), nil
	case int:
		return decimal.NewFromInt(int64(vv)), nil
	case int64:
		return decimal.NewFromInt(vv), nil
	case string:
		return decimal.NewFromString(vv)
	}
	return decimal.Zero, fmt.Errorf("cannot coerce %T to a number", v)
}

func asTime(v any) (time.Time, error) {
	switch vv := v.(type) {
	case time.Time:
		return vv, nil
	case string:
		if t, err := time.Parse("2006-01-02", vv); err == nil {
			return t, nil
		}
		return time.Parse(time.RFC3339, vv)
	}
	return time.Time{}, fmt.Errorf("cannot coerce %T to a date", v)
}

func asText(v any) string {
	switch vv := v.(type) {
	case nil:
		return ""
	case string:
		return vv
	case bool:
		return strconv.FormatBool(vv)
	case decimal.Decimal:
		return vv.String()
	case time.Time:
		return vv.Format("2006-01-02")
	case float64:
		return strconv.FormatFloat(vv, 'f', -1, 64)
	case int:
		return strconv.Itoa(vv)
	}
	return fmt.Sprint(v)
}

// isNull treats absent references and zero dates as null. Amounts and
// booleans always have a value.
func isNull(v any) bool {
	switch vv := v.(type) {
	case nil:
		return true
	case string:
		return vv == ""
	case time.Time:
		return vv.IsZero()
	}
	return false
}
