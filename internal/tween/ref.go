package tween

import (
	"math"

	"github.com/roach88/cadence/internal/engine"
)

// Ref binds a value owned elsewhere so a tween can read and write it.
//
// A Ref never holds the value itself; every Value call goes through the getter
// and every Set through the setter.
type Ref[T any] struct {
	get func() T
	set func(T)
}

// NewRef creates a Ref from a getter/setter pair. Both must be non-nil.
func NewRef[T any](get func() T, set func(T)) *Ref[T] {
	if get == nil {
		panic(engine.NewInvalidArgumentError("NewRef", "get", "getter must be non-nil"))
	}
	if set == nil {
		panic(engine.NewInvalidArgumentError("NewRef", "set", "setter must be non-nil"))
	}
	return &Ref[T]{get: get, set: set}
}

// PtrRef binds a plain variable.
func PtrRef[T any](p *T) *Ref[T] {
	if p == nil {
		panic(engine.NewInvalidArgumentError("PtrRef", "p", "pointer must be non-nil"))
	}
	return &Ref[T]{
		get: func() T { return *p },
		set: func(v T) { *p = v },
	}
}

// Value returns the current bound value.
func (r *Ref[T]) Value() T {
	return r.get()
}

// Set writes v through the setter.
func (r *Ref[T]) Set(v T) {
	r.set(v)
}

// Number is the set of types the numeric tweens operate on.
type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~float32 | ~float64
}

// shadow mirrors an integer-or-float Ref with a float64 one. Writes through
// the shadow round half away from zero for integer types, so sub-unit
// progress is kept in the shadow instead of being truncated on each tick.
type shadow[T Number] struct {
	target *Ref[T]
	val    float64
}

func newShadow[T Number](target *Ref[T]) *shadow[T] {
	return &shadow[T]{target: target}
}

// sync reloads the shadow from the bound value.
func (s *shadow[T]) sync() {
	s.val = float64(s.target.Value())
}

func (s *shadow[T]) ref() *Ref[float64] {
	return &Ref[float64]{
		get: func() float64 { return s.val },
		set: func(v float64) {
			s.val = v
			s.target.Set(fromFloat[T](v))
		},
	}
}

func fromFloat[T Number](v float64) T {
	if isInteger[T]() {
		return T(math.Round(v))
	}
	return T(v)
}

func isInteger[T Number]() bool {
	half := 0.5
	return T(half) == 0
}

func mustRef[T any](op string, ref *Ref[T]) {
	if ref == nil {
		panic(engine.NewInvalidArgumentError(op, "ref", "ref must be non-nil"))
	}
}
