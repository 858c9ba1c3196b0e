// Package service provides testify mocks for the domain service interfaces.
package service

import (
	"context"

	mock "github.com/stretchr/testify/mock"

	service "tourplanner/internal/domain/service"
)

// MockEventPublisher is a mock type for the EventPublisher type
type MockEventPublisher struct {
	mock.Mock
}

type MockEventPublisher_Expecter struct {
	mock *mock.Mock
}

func (_m *MockEventPublisher) EXPECT() *MockEventPublisher_Expecter {
	return &MockEventPublisher_Expecter{mock: &_m.Mock}
}

// Close provides a mock function with no fields
func (_m *MockEventPublisher) Close() error {
	ret := _m.Called()

	var r0 error
	if rf, ok := ret.Get(0).(func() error); ok {
		r0 = rf()
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// MockEventPublisher_Close_Call is a *mock.Call that shadows Run/Return methods with type explicit version for method 'Close'
type MockEventPublisher_Close_Call struct {
	*mock.Call
}

// Close is a helper method to define mock.On call
func (_e *MockEventPublisher_Expecter) Close() *MockEventPublisher_Close_Call {
	return &MockEventPublisher_Close_Call{Call: _e.mock.On("Close")}
}

func (_c *MockEventPublisher_Close_Call) Run(run func()) *MockEventPublisher_Close_Call {
	_c.Call.Run(func(args mock.Arguments) {
		run()
	})

	return _c
}

func (_c *MockEventPublisher_Close_Call) Return(_a0 error) *MockEventPublisher_Close_Call {
	_c.Call.Return(_a0)

	return _c
}

// PublishTourChanged provides a mock function with given fields: ctx, event
func (_m *MockEventPublisher) PublishTourChanged(ctx context.Context, event *service.TourChangedEvent) error {
	ret := _m.Called(ctx, event)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, *service.TourChangedEvent) error); ok {
		r0 = rf(ctx, event)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// MockEventPublisher_PublishTourChanged_Call is a *mock.Call that shadows Run/Return methods with type explicit version for method 'PublishTourChanged'
type MockEventPublisher_PublishTourChanged_Call struct {
	*mock.Call
}

// PublishTourChanged is a helper method to define mock.On call
//   - ctx context.Context
//   - event *service.TourChangedEvent
func (_e *MockEventPublisher_Expecter) PublishTourChanged(ctx interface{}, event interface{}) *MockEventPublisher_PublishTourChanged_Call {
	return &MockEventPublisher_PublishTourChanged_Call{Call: _e.mock.On("PublishTourChanged", ctx, event)}
}

func (_c *MockEventPublisher_PublishTourChanged_Call) Run(run func(ctx context.Context, event *service.TourChangedEvent)) *MockEventPublisher_PublishTourChanged_Call {
	_c.Call.Run(func(args mock.Arguments) {
		run(args[0].(context.Context), args[1].(*service.TourChangedEvent))
	})

	return _c
}

func (_c *MockEventPublisher_PublishTourChanged_Call) Return(_a0 error) *MockEventPublisher_PublishTourChanged_Call {
	_c.Call.Return(_a0)

	return _c
}

// NewMockEventPublisher creates a new instance of MockEventPublisher. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewMockEventPublisher(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockEventPublisher {
	m := &MockEventPublisher{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
