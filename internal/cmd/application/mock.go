package application

import (
	"io"

	"github.com/rs/zerolog"

	"github.com/agentstation/queuelink"
)

// Mock provides a mock implementation of Application for testing.
// Each method can be customized by setting the corresponding function field.
// If a function field is nil, the method returns a default/zero value.
//
// Example Usage:
//
//	mock := &application.Mock{
//	    ClientFunc: func() (queuelink.Client, error) {
//	        return testClient, nil
//	    },
//	    OutWriter: &buf,
//	}
//	cmd := cmd.NewWhoamiCommand(mock)
type Mock struct {
	ClientFunc  func() (queuelink.Client, error)
	LoggerFunc  func() *zerolog.Logger
	OutWriter   io.Writer
	VersionFunc func() string
}

// Client returns a client using the mock function or nil.
func (m *Mock) Client() (queuelink.Client, error) {
	if m.ClientFunc != nil {
		return m.ClientFunc()
	}
	return nil, nil
}

// Logger returns a logger using the mock function or a no-op logger.
func (m *Mock) Logger() *zerolog.Logger {
	if m.LoggerFunc != nil {
		return m.LoggerFunc()
	}
	logger := zerolog.Nop()
	return &logger
}

// Out returns the mock writer or io.Discard.
func (m *Mock) Out() io.Writer {
	if m.OutWriter != nil {
		return m.OutWriter
	}
	return io.Discard
}

// Version returns the version using the mock function or "dev".
func (m *Mock) Version() string {
	if m.VersionFunc != nil {
		return m.VersionFunc()
	}
	return "dev"
}
