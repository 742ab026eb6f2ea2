package ledger

import "fmt"

// NameRegistry maps token symbols to token metadata. It is populated once
// at construction time and used for wiring agents to the assets they trade.
type NameRegistry struct {
	tokens map[Symbol]Token
}

func NewNameRegistry() *NameRegistry {
	return &NameRegistry{tokens: make(map[Symbol]Token)}
}

func (r *NameRegistry) Register(t Token) {
	r.tokens[t.Symbol] = t
}

func (r *NameRegistry) Lookup(sym Symbol) (Token, error) {
	t, ok := r.tokens[sym]
	if !ok {
		return Token{}, fmt.Errorf("ledger: unknown token %q", sym)
	}
	return t, nil
}

func (r *NameRegistry) Symbols() []Symbol {
	syms := make([]Symbol, 0, len(r.tokens))
	for sym := range r.tokens {
		syms = append(syms, sym)
	}
	return syms
}

// AddressRegistry maps ledger addresses to token metadata for runtime
// resolution. Kept separate from NameRegistry so one mapping never serves
// two key spaces.
type AddressRegistry struct {
	tokens map[Address]Token
}

func NewAddressRegistry() *AddressRegistry {
	return &AddressRegistry{tokens: make(map[Address]Token)}
}

func (r *AddressRegistry) Register(t Token) {
	r.tokens[t.Address] = t
}

func (r *AddressRegistry) Resolve(addr Address) (Token, error) {
	t, ok := r.tokens[addr]
	if !ok {
		return Token{}, fmt.Errorf("ledger: no token at address %q", addr)
	}
	return t, nil
}
