package jade

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/ok300/lwk/descriptor"
	"github.com/ok300/lwk/network"
)

// MaxMultisigNameLen is the longest multisig name the device stores.
const MaxMultisigNameLen = 16

// ErrInvalidName is returned for empty or too long multisig names.
var ErrInvalidName = errors.New("invalid multisig name")

// RegisterMultisigParams is the registration request sent to the device.
type RegisterMultisigParams struct {
	Network      string     `json:"network"`
	MultisigName string     `json:"multisig_name"`
	Descriptor   Descriptor `json:"descriptor"`
}

// NewRegisterMultisigParams validates the name and converts the descriptor
// into a registration request for the given network.
func NewRegisterMultisigParams(params *network.Params, name string,
	desc *descriptor.Descriptor) (*RegisterMultisigParams, error) {

	if err := validateName(name); err != nil {
		return nil, err
	}

	if _, err := network.ByName(params.Name); err != nil {
		return nil, err
	}

	record, err := FromDescriptor(desc)
	if err != nil {
		return nil, err
	}

	return &RegisterMultisigParams{
		Network:      params.Name,
		MultisigName: name,
		Descriptor:   *record,
	}, nil
}

func validateName(name string) error {
	n := utf8.RuneCountInString(name)
	if n == 0 || n > MaxMultisigNameLen {
		return fmt.Errorf("%w: %q must have 1 to %d characters",
			ErrInvalidName, name, MaxMultisigNameLen)
	}

	return nil
}
