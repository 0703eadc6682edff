// Package charm adapts a charmbracelet/log logger to tiercache.Logger.
package charm

import (
	"maps"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/unkn0wn-root/tiercache"
)

var _ tiercache.Logger = Logger{}

type Logger struct{ L *log.Logger }

func (c Logger) Debug(msg string, f tiercache.Fields) { c.L.Debug(msg, keyvals(f)...) }
func (c Logger) Info(msg string, f tiercache.Fields)  { c.L.Info(msg, keyvals(f)...) }
func (c Logger) Warn(msg string, f tiercache.Fields)  { c.L.Warn(msg, keyvals(f)...) }
func (c Logger) Error(msg string, f tiercache.Fields) { c.L.Error(msg, keyvals(f)...) }

func keyvals(f tiercache.Fields) []any {
	if len(f) == 0 {
		return nil
	}
	out := make([]any, 0, 2*len(f))
	for _, k := range slices.Sorted(maps.Keys(f)) {
		out = append(out, k, f[k])
	}
	return out
}
