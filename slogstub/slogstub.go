// SPDX-License-Identifier: GPL-3.0-or-later

// Package slogstub provides a function-field test double for [slog.Handler],
// adapted from the upstream bassosimone/slogstub module used by the
// rdmnet package's teacher. Tests use it to capture emitted log records
// without depending on a specific handler implementation.
package slogstub

import (
	"context"
	"log/slog"
)

// FuncHandler is a [slog.Handler] test double backed by function fields.
type FuncHandler struct {
	EnabledFunc   func(ctx context.Context, level slog.Level) bool
	HandleFunc    func(ctx context.Context, record slog.Record) error
	WithAttrsFunc func(attrs []slog.Attr) slog.Handler
	WithGroupFunc func(name string) slog.Handler
}

var _ slog.Handler = &FuncHandler{}

func (h *FuncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if h.EnabledFunc == nil {
		return true
	}
	return h.EnabledFunc(ctx, level)
}

func (h *FuncHandler) Handle(ctx context.Context, record slog.Record) error {
	if h.HandleFunc == nil {
		panic("slogstub: FuncHandler.HandleFunc not set")
	}
	return h.HandleFunc(ctx, record)
}

func (h *FuncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if h.WithAttrsFunc == nil {
		return h
	}
	return h.WithAttrsFunc(attrs)
}

func (h *FuncHandler) WithGroup(name string) slog.Handler {
	if h.WithGroupFunc == nil {
		return h
	}
	return h.WithGroupFunc(name)
}
