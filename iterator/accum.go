package iterator

import "github.com/hupe1980/imcs/kind"

// acc folds the values of one group.
type acc[T, R kind.Elem] interface {
	add(v T)
	merge(o acc[T, R])
	result() R
	fresh() acc[T, R]
}

type sumAcc[T numeric, R int64 | float64] struct{ total R }

func (a *sumAcc[T, R]) add(v T)           { a.total += R(v) }
func (a *sumAcc[T, R]) merge(o acc[T, R]) { a.total += o.(*sumAcc[T, R]).total }
func (a *sumAcc[T, R]) result() R         { return a.total }
func (a *sumAcc[T, R]) fresh() acc[T, R]  { return &sumAcc[T, R]{} }

type avgAcc[T numeric] struct {
	conv  func(T) float64
	total float64
	n     int64
}

func (a *avgAcc[T]) add(v T) {
	a.total += a.conv(v)
	a.n++
}

func (a *avgAcc[T]) merge(o acc[T, float64]) {
	b := o.(*avgAcc[T])
	a.total += b.total
	a.n += b.n
}

func (a *avgAcc[T]) result() float64 {
	if a.n == 0 {
		return 0
	}
	return a.total / float64(a.n)
}

func (a *avgAcc[T]) fresh() acc[T, float64] { return &avgAcc[T]{conv: a.conv} }

type extremeAcc[T ordered] struct {
	greatest bool
	has      bool
	v        T
}

func (a *extremeAcc[T]) add(v T) {
	if !a.has || (a.greatest && v > a.v) || (!a.greatest && v < a.v) {
		a.v, a.has = v, true
	}
}

func (a *extremeAcc[T]) merge(o acc[T, T]) {
	if b := o.(*extremeAcc[T]); b.has {
		a.add(b.v)
	}
}

func (a *extremeAcc[T]) result() T        { return a.v }
func (a *extremeAcc[T]) fresh() acc[T, T] { return &extremeAcc[T]{greatest: a.greatest} }

type countAcc[T kind.Elem] struct{ n int64 }

func (a *countAcc[T]) add(T)                 { a.n++ }
func (a *countAcc[T]) merge(o acc[T, int64]) { a.n += o.(*countAcc[T]).n }
func (a *countAcc[T]) result() int64         { return a.n }
func (a *countAcc[T]) fresh() acc[T, int64]  { return &countAcc[T]{} }

type groupOp uint8

const (
	groupSum groupOp = iota
	groupMin
	groupMax
	groupAvg
	groupCount
)

var groupNames = [...]string{groupSum: "sum", groupMin: "min", groupMax: "max", groupAvg: "avg", groupCount: "count"}
