// Package op defines the Operation value (spec component C1): the tagged
// message that is the universal currency of communication between
// entities, minds, and connections.
package op

import "fmt"

// Kind is a closed set of operation kinds, plus an open "other" fallback
// that preserves the original kind name verbatim. Dispatchers match on Kind
// directly (the fast path); code that needs the original wire name (e.g.
// scripting) uses Operation.KindName().
type Kind int

const (
	KindOther Kind = iota
	KindLogin
	KindCreate
	KindDelete
	KindSet
	KindLook
	KindMove
	KindTalk
	KindTouch
	KindSight
	KindSound
	KindTick
	KindSetup
	KindEat
	KindNourish
	KindCut
	KindChop
	KindFire
	KindAppearance
	KindDisappearance
	KindError
	KindInfo
	KindGet
	KindLoad
	KindSave
	KindCombine
	KindDivide
	KindLogout
	KindAttack
	KindActuate
	KindUpdate
	KindWield
)

var kindNames = map[Kind]string{
	KindLogin:        "login",
	KindCreate:       "create",
	KindDelete:       "delete",
	KindSet:          "set",
	KindLook:         "look",
	KindMove:         "move",
	KindTalk:         "talk",
	KindTouch:        "touch",
	KindSight:        "sight",
	KindSound:        "sound",
	KindTick:         "tick",
	KindSetup:        "setup",
	KindEat:          "eat",
	KindNourish:      "nourish",
	KindCut:          "cut",
	KindChop:         "chop",
	KindFire:         "fire",
	KindAppearance:   "appearance",
	KindDisappearance: "disappearance",
	KindError:        "error",
	KindInfo:         "info",
	KindGet:          "get",
	KindLoad:         "load",
	KindSave:         "save",
	KindCombine:      "combine",
	KindDivide:       "divide",
	KindLogout:       "logout",
	KindAttack:       "attack",
	KindActuate:      "actuate",
	KindUpdate:       "update",
	KindWield:        "wield",
}

var namesToKind = func() map[string]Kind {
	m := make(map[string]Kind, len(kindNames))
	for k, v := range kindNames {
		m[v] = k
	}
	return m
}()

// ParseKind maps a wire kind name to a Kind. Unrecognised names map to
// KindOther; the caller should keep the original string (see Operation.Other).
func ParseKind(name string) Kind {
	if k, ok := namesToKind[name]; ok {
		return k
	}
	return KindOther
}

// Name returns the wire name for a known Kind, and falls back to other for
// KindOther (callers needing the original string should read Operation.Other).
func (k Kind) Name() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "other"
}

func (k Kind) String() string { return k.Name() }

// Arg is one argument record: a map of string to a dynamically-typed value.
// Permitted dynamic types, per spec.md §4.1: string, int64, float64,
// []any (list), Arg (nested map), or nil.
type Arg map[string]any

func (a Arg) String(key string) (string, bool) {
	v, ok := a[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func (a Arg) Int(key string) (int64, bool) {
	v, ok := a[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}

func (a Arg) Float(key string) (float64, bool) {
	v, ok := a[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}

func (a Arg) List(key string) ([]any, bool) {
	v, ok := a[key]
	if !ok {
		return nil, false
	}
	l, ok := v.([]any)
	return l, ok
}

func (a Arg) Map(key string) (Arg, bool) {
	v, ok := a[key]
	if !ok {
		return nil, false
	}
	switch m := v.(type) {
	case Arg:
		return m, true
	case map[string]any:
		return Arg(m), true
	}
	return nil, false
}

// Floats3 reads a 3-element numeric list (e.g. "pos", "velocity") under key.
func (a Arg) Floats3(key string) ([3]float64, bool) {
	var out [3]float64
	l, ok := a.List(key)
	if !ok || len(l) != 3 {
		return out, false
	}
	for i, v := range l {
		switch n := v.(type) {
		case float64:
			out[i] = n
		case int64:
			out[i] = float64(n)
		case int:
			out[i] = float64(n)
		default:
			return out, false
		}
	}
	return out, true
}

// Operation is the tagged message routed between entities, minds, and
// connections. Zero value is not meaningful; use New to construct one.
type Operation struct {
	Kind Kind
	// Other carries the original kind name when Kind == KindOther.
	Other string

	From string
	To   string

	// Serialno is assigned by the producer and is monotone per producer.
	Serialno int64
	// Refno correlates a reply to the request that caused it; 0 = none.
	Refno int64

	// FutureSeconds is the scheduling delay from now; <= 0 means immediate.
	FutureSeconds float64

	Args []Arg
}

// New constructs an Operation with the given kind and args, From/To/serialno
// left for the caller to fill in (a bare constructor mirrors the original's
// "Instantiate()" factory pattern without hidden defaults).
func New(kind Kind, args ...Arg) Operation {
	return Operation{Kind: kind, Args: args}
}

// NewOther constructs an operation whose kind is not one of the closed set.
func NewOther(name string, args ...Arg) Operation {
	return Operation{Kind: KindOther, Other: name, Args: args}
}

// KindName returns the wire-visible kind name, resolving KindOther via Other.
func (o Operation) KindName() string {
	if o.Kind == KindOther {
		if o.Other != "" {
			return o.Other
		}
		return "other"
	}
	return o.Kind.Name()
}

// HasSerialno reports whether Serialno was explicitly set (non-default),
// mirroring the original's isDefaultSerialno() check used to decide whether
// a reply should carry a Refno at all.
func (o Operation) HasSerialno() bool { return o.Serialno != 0 }

// FirstArg returns the first argument record, or an empty Arg if there is
// none — most native handlers only ever look at args[0].
func (o Operation) FirstArg() Arg {
	if len(o.Args) == 0 {
		return Arg{}
	}
	return o.Args[0]
}

// SubTo reports whether the first arg's "sub_to" field equals want; used to
// route Setup/Tick specifically to the mind subsystem (see GLOSSARY sub_to).
func (o Operation) SubTo(want string) bool {
	v, ok := o.FirstArg().String("sub_to")
	return ok && v == want
}

// Reply builds a reply Operation, stamping Refno from the request's
// Serialno only when the request actually carried one (spec.md §4.3).
func (o Operation) Reply(kind Kind, args ...Arg) Operation {
	r := New(kind, args...)
	if o.HasSerialno() {
		r.Refno = o.Serialno
	}
	return r
}

// Error builds an Error operation reply with a single string argument,
// the taxonomy's standard shape (spec.md §7).
func (o Operation) Error(message string) Operation {
	return o.Reply(KindError, Arg{"message": message})
}

func (o Operation) String() string {
	return fmt.Sprintf("%s{from=%s to=%s serialno=%d refno=%d}",
		o.KindName(), o.From, o.To, o.Serialno, o.Refno)
}
