// SPDX-License-Identifier: GPL-3.0-or-later

package module

import (
	"context"
	"errors"
)

type MockConfiguration struct {
	OptionStr string `yaml:"option_str" json:"option_str"`
	OptionInt int    `yaml:"option_int" json:"option_int"`
}

// MockModule MockModule.
type MockModule struct {
	Base

	Config MockConfiguration `yaml:",inline" json:""`

	FailOnInit bool

	InitFunc    func(context.Context) error
	CheckFunc   func(context.Context) error
	CollectFunc func(context.Context) error
	CleanupFunc func(context.Context)
	CleanupDone bool
}

// Init returns mock init or nil.
func (m *MockModule) Init(ctx context.Context) error {
	if m.FailOnInit {
		return errors.New("mock init error")
	}
	if m.InitFunc == nil {
		return nil
	}
	return m.InitFunc(ctx)
}

// Check returns mock check or nil.
func (m *MockModule) Check(ctx context.Context) error {
	if m.CheckFunc == nil {
		return nil
	}
	return m.CheckFunc(ctx)
}

// Collect returns mock collect or nil.
func (m *MockModule) Collect(ctx context.Context) error {
	if m.CollectFunc == nil {
		return nil
	}
	return m.CollectFunc(ctx)
}

// Cleanup sets CleanupDone to true.
func (m *MockModule) Cleanup(ctx context.Context) {
	if m.CleanupFunc != nil {
		m.CleanupFunc(ctx)
	}
	m.CleanupDone = true
}

func (m *MockModule) Configuration() any {
	return m.Config
}
