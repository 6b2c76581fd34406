package database

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockDocumentStore struct {
	mock.Mock
}

func (m *MockDocumentStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
func (m *MockDocumentStore) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if b, ok := args.Get(0).([]byte); ok {
		return b, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockDocumentStore) Put(ctx context.Context, key string, value []byte) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}
func (m *MockDocumentStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}
func (m *MockDocumentStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
