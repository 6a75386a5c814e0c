package aggregation

import (
	"sort"

	"stockpipe/pkg/contracts/domain"
)

// nullKey is a group key component that keeps null distinct from "".
type nullKey struct {
	v  string
	ok bool
}

func keyOf[T ~string](p *T) nullKey {
	if p == nil {
		return nullKey{}
	}
	return nullKey{v: string(*p), ok: true}
}

// ptr turns the key back into a nullable cell value
func ptr[T ~string](k nullKey) *T {
	if !k.ok {
		return nil
	}
	v := T(k.v)
	return &v
}

// less orders keys ascending with nulls last
func (k nullKey) less(o nullKey) bool {
	if k.ok != o.ok {
		return k.ok
	}
	return k.v < o.v
}

type pairKey struct{ a, b nullKey }

func (k pairKey) less(o pairKey) bool {
	if k.a != o.a {
		return k.a.less(o.a)
	}
	return k.b.less(o.b)
}

// mean accumulates the mean of the non-null values it sees
type mean struct {
	sum float64
	n   int
}

func (m *mean) add(p *float64) {
	if p != nil {
		m.sum += *p
		m.n++
	}
}

func (m *mean) value() *float64 {
	if m.n == 0 {
		return nil
	}
	v := m.sum / float64(m.n)
	return &v
}

// sum treats null as zero
func sum(acc *float64, p *float64) {
	if p != nil {
		*acc += *p
	}
}

func count(acc *int64, flag bool) {
	if flag {
		*acc++
	}
}

// diff returns close - open, or null when either is null
func diff(r *domain.CleanRecord) *float64 {
	if r.OpenPrice == nil || r.ClosePrice == nil {
		return nil
	}
	d := *r.ClosePrice - *r.OpenPrice
	return &d
}

// groupBy folds records into one accumulator per key and returns the keys
// sorted by less.
func groupBy[K comparable, A any](
	records []domain.CleanRecord,
	key func(*domain.CleanRecord) K,
	add func(*A, *domain.CleanRecord),
	less func(K, K) bool,
) ([]K, map[K]*A) {
	accs := make(map[K]*A)
	for i := range records {
		r := &records[i]
		k := key(r)
		acc, ok := accs[k]
		if !ok {
			acc = new(A)
			accs[k] = acc
		}
		add(acc, r)
	}

	keys := make([]K, 0, len(accs))
	for k := range accs {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return less(keys[i], keys[j]) })
	return keys, accs
}
