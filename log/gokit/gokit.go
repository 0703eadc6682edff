// Package gokit adapts a go-kit logger to tiercache.Logger, tagging each line
// with go-kit/log/level.
package gokit

import (
	"maps"
	"slices"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/unkn0wn-root/tiercache"
)

var _ tiercache.Logger = Logger{}

type Logger struct{ L log.Logger }

func (g Logger) Debug(msg string, f tiercache.Fields) { _ = level.Debug(g.L).Log(keyvals(msg, f)...) }
func (g Logger) Info(msg string, f tiercache.Fields)  { _ = level.Info(g.L).Log(keyvals(msg, f)...) }
func (g Logger) Warn(msg string, f tiercache.Fields)  { _ = level.Warn(g.L).Log(keyvals(msg, f)...) }
func (g Logger) Error(msg string, f tiercache.Fields) { _ = level.Error(g.L).Log(keyvals(msg, f)...) }

func keyvals(msg string, f tiercache.Fields) []any {
	out := make([]any, 0, 2+2*len(f))
	out = append(out, "msg", msg)
	for _, k := range slices.Sorted(maps.Keys(f)) {
		out = append(out, k, f[k])
	}
	return out
}
