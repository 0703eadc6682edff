package gokit

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/unkn0wn-root/tiercache"
)

func TestLogfmtWithLevels(t *testing.T) {
	var buf bytes.Buffer
	base := level.NewFilter(log.NewLogfmtLogger(&buf), level.AllowInfo())
	l := Logger{L: base}

	l.Debug("hidden", nil)
	l.Warn("store read failed", tiercache.Fields{"key": "t1", "err": errors.New("boom")})

	got := strings.TrimSpace(buf.String())
	want := `level=warn msg="store read failed" err=boom key=t1`
	if got != want {
		t.Fatalf("got  %q\nwant %q", got, want)
	}
}
