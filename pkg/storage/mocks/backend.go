// Code generated manually. DO NOT EDIT.

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/williamokano/dbb/pkg/storage"
)

// MockObjectStore is a mock implementation of the storage.ObjectStore interface
type MockObjectStore struct {
	mock.Mock
}

// Name provides a mock function with given fields:
func (m *MockObjectStore) Name() string {
	ret := m.Called()

	var r0 string
	if rf, ok := ret.Get(0).(func() string); ok {
		r0 = rf()
	} else {
		r0 = ret.Get(0).(string)
	}

	return r0
}

// Type provides a mock function with given fields:
func (m *MockObjectStore) Type() string {
	ret := m.Called()

	var r0 string
	if rf, ok := ret.Get(0).(func() string); ok {
		r0 = rf()
	} else {
		r0 = ret.Get(0).(string)
	}

	return r0
}

// Put provides a mock function with given fields: ctx, sourcePath, key, vis
func (m *MockObjectStore) Put(ctx context.Context, sourcePath string, key string, vis storage.Visibility) error {
	ret := m.Called(ctx, sourcePath, key, vis)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, string, string, storage.Visibility) error); ok {
		r0 = rf(ctx, sourcePath, key, vis)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// Stat provides a mock function with given fields: ctx, key
func (m *MockObjectStore) Stat(ctx context.Context, key string) (*storage.ObjectInfo, error) {
	ret := m.Called(ctx, key)

	var r0 *storage.ObjectInfo
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*storage.ObjectInfo, error)); ok {
		return rf(ctx, key)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) *storage.ObjectInfo); ok {
		r0 = rf(ctx, key)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*storage.ObjectInfo)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, key)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// Close provides a mock function with given fields:
func (m *MockObjectStore) Close() error {
	ret := m.Called()

	var r0 error
	if rf, ok := ret.Get(0).(func() error); ok {
		r0 = rf()
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// Opener returns a storage.Opener that hands out m and records the config it was asked for
func (m *MockObjectStore) Opener(seen *storage.Config) storage.Opener {
	return func(ctx context.Context, cfg storage.Config) (storage.ObjectStore, error) {
		if seen != nil {
			*seen = cfg
		}
		return m, nil
	}
}

// NewMockObjectStore creates a new instance of MockObjectStore
func NewMockObjectStore(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockObjectStore {
	mock_1 := &MockObjectStore{}
	mock_1.Mock.Test(t)

	t.Cleanup(func() { mock_1.AssertExpectations(t) })

	return mock_1
}
