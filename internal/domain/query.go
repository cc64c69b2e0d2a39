package domain

import (
	"cmp"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
)

// FilterOp — оператор сравнения в фильтре запроса.
type FilterOp string

const (
	// OpEqual — точное совпадение значения поля.
	OpEqual FilterOp = "=="
)

// Filter описывает условие `field op value`.
type Filter struct {
	Field string
	Op    FilterOp
	Value any
}

// Query описывает выборку из коллекции: фильтры, сортировку и лимит.
// Если задан OrderBy, записи без этого поля в выборку не попадают.
type Query struct {
	Filters    []Filter
	OrderBy    string
	Descending bool
	Limit      int
}

// Where возвращает запрос с одним фильтром на равенство.
func Where(field string, value any) Query {
	return Query{Filters: []Filter{{Field: field, Op: OpEqual, Value: value}}}
}

// Validate проверяет, что все операторы поддерживаются.
func (q Query) Validate() error {
	for _, f := range q.Filters {
		if f.Op != OpEqual {
			return fmt.Errorf("%w: %q", ErrUnsupportedFilter, f.Op)
		}
		if f.Field == "" {
			return fmt.Errorf("%w: empty field", ErrUnsupportedFilter)
		}
	}
	return nil
}

// Record — документ хранилища: сгенерированный id и произвольные поля.
type Record struct {
	ID     string
	Fields map[string]any
}

// Clone возвращает копию записи с собственной картой полей.
func (r Record) Clone() Record {
	return Record{ID: r.ID, Fields: CloneFields(r.Fields)}
}

// CloneFields копирует карту полей (значения — скаляры, копируются по значению).
func CloneFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}

// Matches проверяет, удовлетворяет ли запись всем фильтрам запроса.
func (q Query) Matches(rec Record) bool {
	for _, f := range q.Filters {
		v, ok := rec.Fields[f.Field]
		if !ok || !ValuesEqual(v, f.Value) {
			return false
		}
	}
	if q.OrderBy != "" {
		if _, ok := rec.Fields[q.OrderBy]; !ok {
			return false
		}
	}
	return true
}

// Apply фильтрует, сортирует и ограничивает набор записей так же, как это делает document store.
// Входной срез не изменяется.
func (q Query) Apply(records []Record) []Record {
	out := make([]Record, 0, len(records))
	for _, rec := range records {
		if q.Matches(rec) {
			out = append(out, rec)
		}
	}
	if q.OrderBy != "" {
		sort.SliceStable(out, func(i, j int) bool {
			c := CompareValues(out[i].Fields[q.OrderBy], out[j].Fields[q.OrderBy])
			if q.Descending {
				return c > 0
			}
			return c < 0
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

// AsFloat приводит числовое значение поля к float64.
func AsFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// AsInt64 приводит целочисленное значение поля к int64.
func AsInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
	}
	f, ok := AsFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	// float64(math.MaxInt64) == 2^63 уже не помещается в int64.
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

// AsString возвращает строковое значение поля или пустую строку.
func AsString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprint(s)
	}
}

// ValuesEqual сравнивает значения полей; числа сравниваются численно независимо от типа.
func ValuesEqual(a, b any) bool {
	if fa, ok := AsFloat(a); ok {
		fb, ok := AsFloat(b)
		return ok && fa == fb
	}
	sa, aok := a.(string)
	sb, bok := b.(string)
	if aok || bok {
		return aok && bok && sa == sb
	}
	return reflect.DeepEqual(a, b)
}

// CompareValues упорядочивает значения в порядке jsonb, как postgres-хранилище:
// null < строки < числа < bool < массивы < объекты. Внутри типа числа сравниваются
// численно, строки побайтно, false < true; массивы и объекты между собой равны.
func CompareValues(a, b any) int {
	ra, rb := jsonRank(a), jsonRank(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}
	switch ra {
	case rankString:
		return strings.Compare(a.(string), b.(string))
	case rankNumber:
		fa, _ := AsFloat(a)
		fb, _ := AsFloat(b)
		return cmp.Compare(fa, fb)
	case rankBool:
		ba, bb := a.(bool), b.(bool)
		switch {
		case ba == bb:
			return 0
		case bb:
			return -1
		default:
			return 1
		}
	default:
		return 0
	}
}

const (
	rankNull = iota
	rankString
	rankNumber
	rankBool
	rankArray
	rankObject
)

func jsonRank(v any) int {
	if _, ok := AsFloat(v); ok {
		return rankNumber
	}
	switch v.(type) {
	case nil:
		return rankNull
	case string:
		return rankString
	case bool:
		return rankBool
	case []any:
		return rankArray
	default:
		return rankObject
	}
}
