package codec

import (
	"fmt"

	"github.com/telosevm/shipcore/shiperr"
)

// Schema is the runtime type dictionary loaded from the node at session
// start (§3 "Schema"). It is immutable after Load and owned by the caller
// (ShipClient), which destroys it on disconnect.
//
// The node's full ABI format describes structs, aliases, actions and tables
// as well as variants; this pipeline only ever needs the variant-resolution
// half of it (§4.1 selects a block-body variant from a result-version tag),
// so Schema models exactly that subset: named variants, each an ordered
// list of member type names selected by wire ordinal.
type Schema struct {
	variants map[string][]string
}

// EmptySchema returns a Schema with no variants registered; useful for
// tests that only exercise the fixed decode paths.
func EmptySchema() *Schema {
	return &Schema{variants: map[string][]string{}}
}

// LoadSchema parses the node's opaque ABI bytes into a Schema. The wire
// format read here is: varuint32 variant count, then for each variant a
// length-prefixed name followed by a varuint32 member count and that many
// length-prefixed member type names.
func LoadSchema(raw []byte) (*Schema, error) {
	return Decode(raw, CheckLength, func(r *Reader) (*Schema, error) {
		count, err := r.VarUint32()
		if err != nil {
			return nil, fmt.Errorf("codec: read variant count: %w", err)
		}
		s := &Schema{variants: make(map[string][]string, count)}
		for i := uint32(0); i < count; i++ {
			name, err := r.String()
			if err != nil {
				return nil, fmt.Errorf("codec: read variant name: %w", err)
			}
			memberCount, err := r.VarUint32()
			if err != nil {
				return nil, fmt.Errorf("codec: read member count for %q: %w", name, err)
			}
			members := make([]string, memberCount)
			for j := range members {
				members[j], err = r.String()
				if err != nil {
					return nil, fmt.Errorf("codec: read member %d of %q: %w", j, name, err)
				}
			}
			s.variants[name] = members
		}
		return s, nil
	})
}

// RegisterVariant installs or overwrites the member list for a named
// variant. Used by tests and by callers that build a Schema in-process
// instead of loading it from the wire.
func (s *Schema) RegisterVariant(name string, members []string) {
	if s.variants == nil {
		s.variants = map[string][]string{}
	}
	s.variants[name] = members
}

// ResolveVariant returns the member type name selected by tag within the
// named variant. An unknown variant name or an out-of-range tag is always
// ErrUnsupportedVariant: the schema defines every tag this node can send,
// so an unresolvable tag means the node and the pipeline disagree about the
// protocol, which is fatal (§4.1).
func (s *Schema) ResolveVariant(name string, tag uint32) (string, error) {
	members, ok := s.variants[name]
	if !ok {
		return "", fmt.Errorf("%w: unknown variant %q", shiperr.ErrUnsupportedVariant, name)
	}
	if int(tag) >= len(members) {
		return "", fmt.Errorf("%w: tag %d out of range for variant %q (%d members)", shiperr.ErrUnsupportedVariant, tag, name, len(members))
	}
	return members[tag], nil
}
