package app

import "github.com/lithammer/shortuuid/v3"

// IDGenerator produces player identities. Tests inject deterministic ones.
type IDGenerator interface {
	NewPlayerID() string
}

// ShortIDGenerator issues p_<shortuuid> ids.
type ShortIDGenerator struct{}

func (ShortIDGenerator) NewPlayerID() string {
	return "p_" + shortuuid.New()
}
