package op

import "encoding/json"

// wireOperation is Operation's JSON shape: Kind is spelled out by name
// (falling back to Other for the open kind) rather than serialised as its
// internal integer tag, so the wire format stays meaningful independent of
// this package's Kind ordering (spec.md §6: "the codec is pluggable, the
// core treats Operation as an opaque structured value with the specified
// accessors").
type wireOperation struct {
	Kind          string  `json:"kind"`
	From          string  `json:"from,omitempty"`
	To            string  `json:"to,omitempty"`
	Serialno      int64   `json:"serialno,omitempty"`
	Refno         int64   `json:"refno,omitempty"`
	FutureSeconds float64 `json:"future_seconds,omitempty"`
	Args          []Arg   `json:"args,omitempty"`
}

func (o Operation) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireOperation{
		Kind:          o.KindName(),
		From:          o.From,
		To:            o.To,
		Serialno:      o.Serialno,
		Refno:         o.Refno,
		FutureSeconds: o.FutureSeconds,
		Args:          o.Args,
	})
}

func (o *Operation) UnmarshalJSON(data []byte) error {
	var w wireOperation
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	kind := ParseKind(w.Kind)
	*o = Operation{
		Kind:          kind,
		From:          w.From,
		To:            w.To,
		Serialno:      w.Serialno,
		Refno:         w.Refno,
		FutureSeconds: w.FutureSeconds,
		Args:          w.Args,
	}
	if kind == KindOther {
		o.Other = w.Kind
	}
	return nil
}
