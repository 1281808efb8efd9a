// Package pdu carries protocol data units between pipeline stages.
package pdu

import "fmt"

// Meta keys set by this module's sources.
const (
	MetaID     = "pdu_id"
	MetaSource = "source"
)

// Meta is opaque per-PDU metadata. Stages pass it through untouched.
type Meta map[string]any

type PDU struct {
	Data []byte
	Meta Meta
}

func New(data []byte) PDU {
	return PDU{Data: data}
}

func (p PDU) Len() int {
	return len(p.Data)
}

// ID returns the MetaID value, or "" when the PDU has none.
func (p PDU) ID() string {
	if p.Meta == nil {
		return ""
	}
	id, _ := p.Meta[MetaID].(string)
	return id
}

func (p PDU) String() string {
	if id := p.ID(); id != "" {
		return fmt.Sprintf("pdu %s (%d bytes)", id, len(p.Data))
	}
	return fmt.Sprintf("pdu (%d bytes)", len(p.Data))
}

type Outcome int

const (
	Rejected Outcome = iota
	Accepted
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "ok"
	case Rejected:
		return "fail"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Routed is a PDU together with the output it must be sent on.
type Routed struct {
	PDU
	Outcome Outcome
}

// Transform is a single PDU-in, routed-PDU-out stage.
type Transform interface {
	Process(PDU) Routed
}

// TransformFunc adapts a function to Transform.
type TransformFunc func(PDU) Routed

func (f TransformFunc) Process(p PDU) Routed {
	return f(p)
}
