package server

import "github.com/perchmsg/relaycore/internal/filter"

// Software identity advertised in the capability document.
const (
	softwareURL     = "https://github.com/perchmsg/relaycore"
	softwareVersion = "0.1.0"
)

// CapabilityDocument is the machine-readable relay metadata returned for
// Accept: application/nostr+json requests (NIP-11 layout).
type CapabilityDocument struct {
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	PubKey        string     `json:"pubkey"`
	Contact       string     `json:"contact"`
	SupportedNIPs []int      `json:"supported_nips"`
	Software      string     `json:"software"`
	Version       string     `json:"version"`
	Limitation    Limitation `json:"limitation"`
}

// Limitation advertises the engine's hard limits so clients can size
// requests instead of discovering the clamps empirically.
type Limitation struct {
	MaxLimit        int  `json:"max_limit"`
	MaxTagValues    int  `json:"max_tag_values"`
	PaymentRequired bool `json:"payment_required"`
}

func (s *Server) capabilityDocument() CapabilityDocument {
	return CapabilityDocument{
		Name:          "relaycore",
		Description:   "event-sourced storage and query relay",
		PubKey:        s.cfg.OperatorPubKey,
		Contact:       s.cfg.OperatorContact,
		SupportedNIPs: []int{1, 9, 11},
		Software:      softwareURL,
		Version:       softwareVersion,
		Limitation: Limitation{
			MaxLimit:        filter.MaxLimit,
			MaxTagValues:    filter.MaxTagValues,
			PaymentRequired: s.cfg.PaymentRequired,
		},
	}
}
