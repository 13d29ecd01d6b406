package confidential

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidContract is returned when a contract fails validation.
var ErrInvalidContract = errors.New("invalid contract")

// tickerPattern is the allowed alphabet of a ticker.
var tickerPattern = regexp.MustCompile(`^[a-zA-Z0-9.\-]{3,24}$`)

// Entity is the entity issuing an asset, proven by a domain.
type Entity struct {
	Domain string `json:"domain"`
}

// Contract is the off-chain registry contract committed to by an issuance.
// Fields are declared in lexicographic order so that the JSON encoding has
// sorted keys, which the contract hash is computed over.
type Contract struct {
	Entity       Entity `json:"entity"`
	IssuerPubKey string `json:"issuer_pubkey"`
	Name         string `json:"name"`
	Precision    uint8  `json:"precision"`
	Ticker       string `json:"ticker"`
	Version      uint8  `json:"version"`
}

// Validate checks the contract fields.
func (c *Contract) Validate() error {
	if c.Version != 0 {
		return fmt.Errorf("%w: unsupported version %d",
			ErrInvalidContract, c.Version)
	}

	if c.Precision > 8 {
		return fmt.Errorf("%w: precision %d above 8", ErrInvalidContract,
			c.Precision)
	}

	if len(c.Name) == 0 || len(c.Name) > 255 {
		return fmt.Errorf("%w: name must have 1 to 255 chars",
			ErrInvalidContract)
	}
	for _, r := range c.Name {
		if r > 0x7f {
			return fmt.Errorf("%w: name must be ascii",
				ErrInvalidContract)
		}
	}

	if !tickerPattern.MatchString(c.Ticker) {
		return fmt.Errorf("%w: bad ticker %q", ErrInvalidContract,
			c.Ticker)
	}

	pub, err := hex.DecodeString(c.IssuerPubKey)
	if err != nil || len(pub) != 33 {
		return fmt.Errorf("%w: issuer pubkey must be 33 hex bytes",
			ErrInvalidContract)
	}

	domain := c.Entity.Domain
	if !strings.Contains(domain, ".") || strings.ContainsAny(domain, " /") {
		return fmt.Errorf("%w: bad domain %q", ErrInvalidContract,
			domain)
	}

	return nil
}

// JSON returns the canonical serialization of the contract.
func (c *Contract) JSON() ([]byte, error) {
	return json.Marshal(c)
}

// Hash returns the contract hash committed to by the issuance.
func (c *Contract) Hash() (ContractHash, error) {
	if err := c.Validate(); err != nil {
		return ContractHash{}, err
	}

	b, err := c.JSON()
	if err != nil {
		return ContractHash{}, err
	}

	return sha256.Sum256(b), nil
}
