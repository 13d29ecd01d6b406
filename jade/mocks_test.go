package jade

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// mockDevice is a mock implementation of the Device interface.
type mockDevice struct {
	mock.Mock
}

// A compile-time assertion to ensure mockDevice implements Device.
var _ Device = (*mockDevice)(nil)

func (m *mockDevice) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockDevice) GetMasterXpub(ctx context.Context,
	network string) (string, error) {

	args := m.Called(ctx, network)
	return args.String(0), args.Error(1)
}

func (m *mockDevice) GetXpub(ctx context.Context, network string,
	path []uint32) (string, error) {

	args := m.Called(ctx, network, path)
	return args.String(0), args.Error(1)
}

func (m *mockDevice) RegisterMultisig(ctx context.Context,
	params *RegisterMultisigParams) error {

	args := m.Called(ctx, params)
	return args.Error(0)
}

func (m *mockDevice) GetRegisteredMultisigs(
	ctx context.Context) ([]string, error) {

	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]string), args.Error(1)
}

func (m *mockDevice) SignPset(ctx context.Context, network string,
	pset []byte) ([]byte, error) {

	args := m.Called(ctx, network, pset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]byte), args.Error(1)
}
