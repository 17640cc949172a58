// Package mocks holds testify mocks for the perms interfaces.
package mocks

import (
	"github.com/stretchr/testify/mock"
)

// MockProvider is a testify mock of perms.Provider.
type MockProvider struct {
	mock.Mock
}

// NewMockProvider creates a MockProvider and asserts its expectations when
// the test ends.
func NewMockProvider(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockProvider {
	m := &MockProvider{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// IsGranted provides a mock function.
func (m *MockProvider) IsGranted(permission string) bool {
	args := m.Called(permission)
	return args.Bool(0)
}

// ShouldShowRationale provides a mock function.
func (m *MockProvider) ShouldShowRationale(permission string) bool {
	args := m.Called(permission)
	return args.Bool(0)
}

// RequestPermissions provides a mock function.
func (m *MockProvider) RequestPermissions(permissions []string, requestCode int) error {
	args := m.Called(permissions, requestCode)
	return args.Error(0)
}
