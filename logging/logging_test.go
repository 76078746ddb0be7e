package logging

import (
	"testing"

	"go.viam.com/test"
)

func TestSubloggerName(t *testing.T) {
	root := NewLogger("navstack")
	child := root.Sublogger("mapper")

	impl, ok := child.(*impl)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, impl.name, test.ShouldEqual, "navstack.mapper")
}

func TestLoggerDoesNotPanicOnCalls(t *testing.T) {
	l := NewLogger("navstack-test")
	l.Debugw("tick", "frame", 1)
	l.Infow("started", "host", "0.0.0.0")
	l.Warnw("slow tick", "ms", 42)
	l.Errorw("ingress failed", "err", "eof")
}
